package crud

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Field is a single column with its value
type Field struct {
	Column string
	Value  Value
}

// Fields is an ordered list of columns with values. It is used both as a
// field map (values to insert or assign) and as a filter set (values to match
// on). Values are always bound to the statement in the order of the list.
type Fields []Field

// Record is one row returned from the database, with columns in the order of
// the result set
type Record = Fields

// Get returns value of a column and false if the column is not present
func (f Fields) Get(column string) (Value, bool) {
	for _, fld := range f {
		if fld.Column == column {
			return fld.Value, true
		}
	}
	return Value{}, false
}

// Set replaces value of an existing column or appends a new one
func (f Fields) Set(column string, v Value) Fields {
	for i := range f {
		if f[i].Column == column {
			f[i].Value = v
			return f
		}
	}
	return append(f, Field{Column: column, Value: v})
}

// Columns returns column names in order
func (f Fields) Columns() []string {
	xs := make([]string, 0, len(f))
	for _, fld := range f {
		xs = append(xs, fld.Column)
	}
	return xs
}

// Values returns query arguments in the same order as Columns
func (f Fields) Values() []interface{} {
	xi := make([]interface{}, 0, len(f))
	for _, fld := range f {
		xi = append(xi, fld.Value.Interface())
	}
	return xi
}

// MarshalJSON writes fields as a JSON object keeping column order
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fld := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(fld.Column)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(fld.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping the order of its keys
func (f *Fields) UnmarshalJSON(data []byte) error {
	parsed, err := ParseFields(data)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFields decodes a JSON object into Fields, preserving key order.
// Values must be scalars, keys must not repeat and nothing may follow the
// object. JSON null or an empty input yields empty Fields.
func ParseFields(data []byte) (Fields, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Fields{}, nil
	}

	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()

	tok, err := d.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValue, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected JSON object", ErrInvalidValue)
	}

	f := Fields{}
	for d.More() {
		tok, err = d.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidValue, err)
		}
		k, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected object key", ErrInvalidValue)
		}
		if _, dup := f.Get(k); dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, k)
		}

		var raw interface{}
		if err := d.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidValue, err)
		}
		v, err := valueFromJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", k, err)
		}
		f = append(f, Field{Column: k, Value: v})
	}
	if _, err := d.Token(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValue, err)
	}
	if _, err := d.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after JSON object", ErrInvalidValue)
	}
	return f, nil
}
