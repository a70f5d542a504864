package crud

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ValueType is the type of a column value
type ValueType int

// Supported column value types
const (
	TypeNull ValueType = iota
	TypeInt
	TypeText
	TypeFloat
	TypeBool
)

func (t ValueType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeText:
		return "text"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	default:
		return "null"
	}
}

// Value holds a single column value. The zero Value is null.
type Value struct {
	typ ValueType
	i   int64
	f   float64
	s   string
	b   bool
}

func IntValue(v int64) Value {
	return Value{typ: TypeInt, i: v}
}

func TextValue(v string) Value {
	return Value{typ: TypeText, s: v}
}

func FloatValue(v float64) Value {
	return Value{typ: TypeFloat, f: v}
}

func BoolValue(v bool) Value {
	return Value{typ: TypeBool, b: v}
}

func NullValue() Value {
	return Value{}
}

// Type returns type of the value
func (v Value) Type() ValueType {
	return v.typ
}

// IsNull returns true when value is null
func (v Value) IsNull() bool {
	return v.typ == TypeNull
}

// Interface returns value in a form that can be passed to database/sql as
// a query argument
func (v Value) Interface() interface{} {
	switch v.typ {
	case TypeInt:
		return v.i
	case TypeText:
		return v.s
	case TypeFloat:
		return v.f
	case TypeBool:
		return v.b
	default:
		return nil
	}
}

// Int returns integer value and false if value is not an integer
func (v Value) Int() (int64, bool) {
	return v.i, v.typ == TypeInt
}

// Text returns string value and false if value is not a text
func (v Value) Text() (string, bool) {
	return v.s, v.typ == TypeText
}

// Float returns floating point value and false if value is not a float
func (v Value) Float() (float64, bool) {
	return v.f, v.typ == TypeFloat
}

// Bool returns boolean value and false if value is not a boolean
func (v Value) Bool() (bool, bool) {
	return v.b, v.typ == TypeBool
}

func (v Value) String() string {
	switch v.typ {
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeText:
		return v.s
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeBool:
		return strconv.FormatBool(v.b)
	default:
		return "NULL"
	}
}

// MarshalJSON writes the native JSON scalar. NaN and infinities have no JSON
// number form and are written as strings "NaN", "+Inf" and "-Inf".
func (v Value) MarshalJSON() ([]byte, error) {
	if v.typ == TypeFloat && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
		return json.Marshal(v.String())
	}
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	var raw interface{}
	if err := d.Decode(&raw); err != nil {
		return err
	}
	nv, err := valueFromJSON(raw)
	if err != nil {
		return err
	}
	*v = nv
	return nil
}

// valueFromJSON converts a token decoded with UseNumber into a Value. Objects
// and arrays are not valid column values.
func valueFromJSON(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case string:
		return TextValue(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s", ErrInvalidValue, t.String())
		}
		return FloatValue(f), nil
	default:
		return Value{}, fmt.Errorf("%w: %T is not a scalar", ErrInvalidValue, raw)
	}
}

// valueFromDriver converts a value scanned from database/sql into a Value
func valueFromDriver(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return NullValue()
	case int64:
		return IntValue(t)
	case int32:
		return IntValue(int64(t))
	case int:
		return IntValue(int64(t))
	case float64:
		return FloatValue(t)
	case float32:
		return FloatValue(float64(t))
	case bool:
		return BoolValue(t)
	case string:
		return TextValue(t)
	case []byte:
		return TextValue(string(t))
	case time.Time:
		return TextValue(t.Format(time.RFC3339Nano))
	default:
		return TextValue(fmt.Sprint(t))
	}
}
