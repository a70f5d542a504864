package crud

import (
	"fmt"
	"strconv"
)

// Dialect selects placeholder syntax of generated statements
type Dialect int

const (
	// DialectPostgres uses $1, $2... placeholders
	DialectPostgres Dialect = iota
	// DialectSQLite uses ? placeholders
	DialectSQLite
)

// ParseDialect returns Dialect for a database/sql driver name
func ParseDialect(driverName string) (Dialect, error) {
	switch driverName {
	case "postgres", "pq":
		return DialectPostgres, nil
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	default:
		return 0, fmt.Errorf("unsupported driver: %q (supported: postgres, sqlite3)", driverName)
	}
}

// DriverName returns name of the database/sql driver for the dialect
func (d Dialect) DriverName() string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return "postgres"
}

func (d Dialect) placeholder(i int) string {
	if d == DialectSQLite {
		return "?"
	}
	return "$" + strconv.Itoa(i)
}

// Order is a single ORDER BY column
type Order struct {
	Column string
	Desc   bool
}

// Page limits and sorts rows returned by a select. Zero Page means all rows in
// the order database returns them.
type Page struct {
	Order  []Order
	Limit  int
	Offset int
}

// Helper generates PostgreSQL or SQLite queries (INSERT, SELECT, UPDATE and
// DELETE) for a single allowed table and validates column names given by the
// caller. Column names are never quoted, which is why every one of them has to
// pass IsValidIdentifier first.
// Helper is created within Tables and there is no need to instantiate it
type Helper struct {
	dialect     Dialect
	dbTbl       string
	dbIDCol     string
	dbCols      map[string]bool
	querySelect string
}

// NewHelper validates table definition and returns Helper instance
func NewHelper(dialect Dialect, dbTblPrefix string, t Table) (*Helper, error) {
	h := &Helper{
		dialect: dialect,
		dbTbl:   dbTblPrefix + t.Name,
		dbIDCol: t.IDColumn,
		dbCols:  make(map[string]bool, len(t.Columns)),
	}
	if h.dbIDCol == "" {
		h.dbIDCol = DefaultIDColumn
	}

	if !IsValidIdentifier(h.dbTbl) {
		return nil, HelperError{Op: "ValidateTable", Table: t.Name, Err: fmt.Errorf("invalid table name %q", h.dbTbl)}
	}
	if !IsValidIdentifier(h.dbIDCol) {
		return nil, HelperError{Op: "ValidateTable", Table: t.Name, Err: fmt.Errorf("invalid id column %q", h.dbIDCol)}
	}
	for _, c := range t.Columns {
		if !IsValidIdentifier(c) {
			return nil, HelperError{Op: "ValidateTable", Table: t.Name, Err: fmt.Errorf("invalid column %q", c)}
		}
		h.dbCols[c] = true
	}
	if len(h.dbCols) > 0 {
		h.dbCols[h.dbIDCol] = true
	}

	h.querySelect = "SELECT * FROM " + h.dbTbl
	return h, nil
}

// GetTable returns table name used in queries (with prefix)
func (h *Helper) GetTable() string {
	return h.dbTbl
}

// GetIDColumn returns name of the generated identifier column
func (h *Helper) GetIDColumn() string {
	return h.dbIDCol
}

// IsAllowedColumn checks if column can be used in a query on this table
func (h *Helper) IsAllowedColumn(c string) bool {
	if !IsValidIdentifier(c) {
		return false
	}
	return len(h.dbCols) == 0 || h.dbCols[c]
}

// ValidateFields checks that all column names are allowed and unique
func (h *Helper) ValidateFields(f Fields) error {
	invalid := []string{}
	seen := make(map[string]bool, len(f))
	for _, fld := range f {
		if !h.IsAllowedColumn(fld.Column) {
			invalid = append(invalid, fld.Column)
			continue
		}
		if seen[fld.Column] {
			return ErrValidation{Fields: []string{fld.Column}, Err: ErrDuplicateColumn}
		}
		seen[fld.Column] = true
	}
	if len(invalid) > 0 {
		return ErrValidation{Fields: invalid, Err: ErrInvalidColumn}
	}
	return nil
}

// ValidatePage checks that ordering columns are allowed and limits are not
// negative
func (h *Helper) ValidatePage(p Page) error {
	invalid := []string{}
	for _, o := range p.Order {
		if !h.IsAllowedColumn(o.Column) {
			invalid = append(invalid, o.Column)
		}
	}
	if len(invalid) > 0 {
		return ErrValidation{Fields: invalid, Err: ErrInvalidColumn}
	}
	if p.Limit < 0 || p.Offset < 0 {
		return fmt.Errorf("%w: negative limit or offset", ErrInvalidValue)
	}
	return nil
}

// GetQueryInsert returns insert query for fields and its arguments
func (h *Helper) GetQueryInsert(fields Fields) (string, []interface{}) {
	cols := ""
	vals := ""
	for i, f := range fields {
		cols = h.addWithComma(cols, f.Column)
		vals = h.addWithComma(vals, h.dialect.placeholder(i+1))
	}
	return "INSERT INTO " + h.dbTbl + "(" + cols + ") VALUES (" + vals + ") RETURNING " + h.dbIDCol, fields.Values()
}

// GetQuerySelect returns select query with optional filters, order, limit
// and offset, and its arguments
func (h *Helper) GetQuerySelect(filters Fields, page Page) (string, []interface{}) {
	s := h.querySelect

	qWhere, args := h.getWhere(filters, 1)
	if qWhere != "" {
		s += " WHERE " + qWhere
	}

	qOrder := ""
	for _, o := range page.Order {
		d := "ASC"
		if o.Desc {
			d = "DESC"
		}
		qOrder = h.addWithComma(qOrder, o.Column+" "+d)
	}
	if qOrder != "" {
		s += " ORDER BY " + qOrder
	}

	if page.Limit > 0 {
		s += fmt.Sprintf(" LIMIT %d", page.Limit)
		if page.Offset > 0 {
			s += fmt.Sprintf(" OFFSET %d", page.Offset)
		}
	} else if page.Offset > 0 {
		// SQLite does not accept OFFSET without LIMIT
		if h.dialect == DialectSQLite {
			s += fmt.Sprintf(" LIMIT -1 OFFSET %d", page.Offset)
		} else {
			s += fmt.Sprintf(" OFFSET %d", page.Offset)
		}
	}
	return s, args
}

// GetQueryUpdate returns update query and its arguments: values of fields
// followed by values of filters
func (h *Helper) GetQueryUpdate(fields Fields, filters Fields) (string, []interface{}) {
	qSet := ""
	for i, f := range fields {
		qSet = h.addWithComma(qSet, f.Column+"="+h.dialect.placeholder(i+1))
	}
	qWhere, args := h.getWhere(filters, len(fields)+1)

	s := "UPDATE " + h.dbTbl + " SET " + qSet
	if qWhere != "" {
		s += " WHERE " + qWhere
	}
	return s, append(fields.Values(), args...)
}

// GetQueryDelete returns delete query and its arguments
func (h *Helper) GetQueryDelete(filters Fields) (string, []interface{}) {
	s := "DELETE FROM " + h.dbTbl
	qWhere, args := h.getWhere(filters, 1)
	if qWhere != "" {
		s += " WHERE " + qWhere
	}
	return s, args
}

// getWhere builds equality conjunction for filters with placeholders starting
// at i. A null filter value matches with IS NULL and takes no argument.
func (h *Helper) getWhere(filters Fields, i int) (string, []interface{}) {
	qWhere := ""
	args := make([]interface{}, 0, len(filters))
	for _, f := range filters {
		if f.Value.IsNull() {
			qWhere = h.addWithAnd(qWhere, f.Column+" IS NULL")
			continue
		}
		qWhere = h.addWithAnd(qWhere, f.Column+"="+h.dialect.placeholder(i))
		args = append(args, f.Value.Interface())
		i++
	}
	return qWhere, args
}

func (h *Helper) addWithComma(s string, v string) string {
	if s != "" {
		s += ","
	}
	s += v
	return s
}

func (h *Helper) addWithAnd(s string, v string) string {
	if s != "" {
		s += " AND "
	}
	s += v
	return s
}
