package crud

import (
	"fmt"
	"regexp"
	"sort"
)

// DefaultIDColumn is the column returned by Create when Table does not name one
const DefaultIDColumn = "id"

const maxIdentifierLen = 63

var identifierRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Table describes a table that the store is allowed to work on
type Table struct {
	// Name is the logical table name used by callers
	Name string
	// IDColumn is the generated identifier column returned by Create
	IDColumn string
	// Columns, when not empty, is the list of the only columns that callers
	// can use in fields and filters
	Columns []string
}

// Tables is an allow-list of tables. Table names that are not on the list are
// rejected before any statement is built.
type Tables struct {
	prefix  string
	helpers map[string]*Helper
}

// NewTables validates table definitions and creates a Helper for each of them.
// Logical names must be valid identifiers on their own, prefix or not.
// The prefix is prepended to every table name in generated statements.
func NewTables(dialect Dialect, prefix string, tables ...Table) (*Tables, error) {
	ts := &Tables{
		prefix:  prefix,
		helpers: make(map[string]*Helper, len(tables)),
	}
	for _, t := range tables {
		if !IsValidIdentifier(t.Name) {
			return nil, HelperError{Op: "NewTables", Table: t.Name, Err: fmt.Errorf("invalid table name %q", t.Name)}
		}
		if _, ok := ts.helpers[t.Name]; ok {
			return nil, HelperError{Op: "NewTables", Table: t.Name, Err: fmt.Errorf("table defined twice")}
		}
		h, err := NewHelper(dialect, prefix, t)
		if err != nil {
			return nil, err
		}
		ts.helpers[t.Name] = h
	}
	return ts, nil
}

// Names returns sorted list of allowed table names
func (ts *Tables) Names() []string {
	xs := make([]string, 0, len(ts.helpers))
	for n := range ts.helpers {
		xs = append(xs, n)
	}
	sort.Strings(xs)
	return xs
}

// Get returns Helper for a table and false when the table is not allowed
func (ts *Tables) Get(name string) (*Helper, bool) {
	h, ok := ts.helpers[name]
	return h, ok
}

// IsValidIdentifier checks if s can be safely used as a table or column name
// in statement text
func IsValidIdentifier(s string) bool {
	return len(s) <= maxIdentifierLen && identifierRegexp.MatchString(s)
}
