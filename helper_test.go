package crud

import (
	"errors"
	"reflect"
	"testing"
)

func newHelper(t *testing.T, dialect Dialect) *Helper {
	h, err := NewHelper(dialect, "", Table{Name: "items"})
	if err != nil {
		t.Fatalf("NewHelper failed: %v", err)
	}
	return h
}

func TestSQLInsertQueries(t *testing.T) {
	h := newHelper(t, DialectPostgres)
	fields := Fields{
		{Column: "name", Value: TextValue("a")},
		{Column: "value", Value: IntValue(1)},
		{Column: "note", Value: NullValue()},
	}

	got, args := h.GetQueryInsert(fields)
	want := "INSERT INTO items(name,value,note) VALUES ($1,$2,$3) RETURNING id"
	if got != want {
		t.Fatalf("Want %v, got %v", want, got)
	}
	wantArgs := []interface{}{"a", int64(1), nil}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Fatalf("Want %v, got %v", wantArgs, args)
	}

	h = newHelper(t, DialectSQLite)
	got, _ = h.GetQueryInsert(fields)
	want = "INSERT INTO items(name,value,note) VALUES (?,?,?) RETURNING id"
	if got != want {
		t.Fatalf("Want %v, got %v", want, got)
	}
}

func TestSQLUpdateQueries(t *testing.T) {
	h := newHelper(t, DialectPostgres)
	fields := Fields{{Column: "value", Value: IntValue(2)}, {Column: "name", Value: TextValue("b")}}
	filters := Fields{{Column: "name", Value: TextValue("a")}, {Column: "active", Value: BoolValue(true)}}

	got, args := h.GetQueryUpdate(fields, filters)
	want := "UPDATE items SET value=$1,name=$2 WHERE name=$3 AND active=$4"
	if got != want {
		t.Fatalf("Want %v, got %v", want, got)
	}
	wantArgs := []interface{}{int64(2), "b", "a", true}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Fatalf("Want %v, got %v", wantArgs, args)
	}

	h = newHelper(t, DialectSQLite)
	got, _ = h.GetQueryUpdate(fields, filters)
	want = "UPDATE items SET value=?,name=? WHERE name=? AND active=?"
	if got != want {
		t.Fatalf("Want %v, got %v", want, got)
	}
}

func TestSQLDeleteQueries(t *testing.T) {
	h := newHelper(t, DialectPostgres)

	got, args := h.GetQueryDelete(Fields{{Column: "id", Value: IntValue(5)}})
	want := "DELETE FROM items WHERE id=$1"
	if got != want {
		t.Fatalf("Want %v, got %v", want, got)
	}
	if !reflect.DeepEqual(args, []interface{}{int64(5)}) {
		t.Fatalf("Want [5], got %v", args)
	}
}

func TestSQLSelectQueries(t *testing.T) {
	h := newHelper(t, DialectPostgres)

	got, args := h.GetQuerySelect(nil, Page{})
	want := "SELECT * FROM items"
	if got != want {
		t.Fatalf("Want %v, got %v", want, got)
	}
	if len(args) != 0 {
		t.Fatalf("Want no args, got %v", args)
	}

	got, _ = h.GetQuerySelect(Fields{{Column: "name", Value: TextValue("a")}, {Column: "value", Value: IntValue(1)}}, Page{})
	want = "SELECT * FROM items WHERE name=$1 AND value=$2"
	if got != want {
		t.Fatalf("Want %v, got %v", want, got)
	}

	got, _ = h.GetQuerySelect(nil, Page{Order: []Order{{Column: "name"}, {Column: "value", Desc: true}}, Limit: 67, Offset: 13})
	want = "SELECT * FROM items ORDER BY name ASC,value DESC LIMIT 67 OFFSET 13"
	if got != want {
		t.Fatalf("want %v, got %v", want, got)
	}

	got, _ = h.GetQuerySelect(nil, Page{Offset: 13})
	want = "SELECT * FROM items OFFSET 13"
	if got != want {
		t.Fatalf("want %v, got %v", want, got)
	}

	h = newHelper(t, DialectSQLite)
	got, _ = h.GetQuerySelect(Fields{{Column: "name", Value: TextValue("a")}}, Page{Offset: 13})
	want = "SELECT * FROM items WHERE name=? LIMIT -1 OFFSET 13"
	if got != want {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestSQLNullFilter(t *testing.T) {
	h := newHelper(t, DialectPostgres)

	got, args := h.GetQueryUpdate(
		Fields{{Column: "note", Value: TextValue("x")}},
		Fields{{Column: "note", Value: NullValue()}, {Column: "name", Value: TextValue("a")}},
	)
	want := "UPDATE items SET note=$1 WHERE note IS NULL AND name=$2"
	if got != want {
		t.Fatalf("Want %v, got %v", want, got)
	}
	wantArgs := []interface{}{"x", "a"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Fatalf("Want %v, got %v", wantArgs, args)
	}
}

func TestTablePrefixAndIDColumn(t *testing.T) {
	h, err := NewHelper(DialectPostgres, "app_", Table{Name: "items", IDColumn: "item_id"})
	if err != nil {
		t.Fatalf("NewHelper failed: %v", err)
	}
	if h.GetTable() != "app_items" {
		t.Fatalf("Want app_items, got %v", h.GetTable())
	}
	got, _ := h.GetQueryInsert(Fields{{Column: "name", Value: TextValue("a")}})
	want := "INSERT INTO app_items(name) VALUES ($1) RETURNING item_id"
	if got != want {
		t.Fatalf("Want %v, got %v", want, got)
	}
}

func TestValidateFields(t *testing.T) {
	h := newHelper(t, DialectPostgres)

	err := h.ValidateFields(Fields{{Column: "name", Value: TextValue("a")}, {Column: "value", Value: IntValue(1)}})
	if err != nil {
		t.Fatalf("ValidateFields failed: %v", err)
	}

	err = h.ValidateFields(Fields{
		{Column: "name", Value: TextValue("a")},
		{Column: "name=name OR 1", Value: TextValue("a")},
		{Column: "x\"", Value: TextValue("a")},
	})
	var errValidation ErrValidation
	if !errors.As(err, &errValidation) || !errors.Is(err, ErrInvalidColumn) {
		t.Fatalf("ValidateFields should fail with ErrInvalidColumn, got %v", err)
	}
	if !reflect.DeepEqual(errValidation.Fields, []string{"name=name OR 1", "x\""}) {
		t.Fatalf("ValidateFields returned wrong fields: %v", errValidation.Fields)
	}

	err = h.ValidateFields(Fields{{Column: "name", Value: TextValue("a")}, {Column: "name", Value: TextValue("b")}})
	if !errors.Is(err, ErrDuplicateColumn) {
		t.Fatalf("ValidateFields should fail with ErrDuplicateColumn, got %v", err)
	}
}

func TestValidateFieldsWithColumnList(t *testing.T) {
	h, err := NewHelper(DialectPostgres, "", Table{Name: "items", Columns: []string{"name", "value"}})
	if err != nil {
		t.Fatalf("NewHelper failed: %v", err)
	}

	if err := h.ValidateFields(Fields{{Column: "id", Value: IntValue(1)}, {Column: "name", Value: TextValue("a")}}); err != nil {
		t.Fatalf("id and name should be allowed, got %v", err)
	}
	if err := h.ValidateFields(Fields{{Column: "note", Value: TextValue("a")}}); !errors.Is(err, ErrInvalidColumn) {
		t.Fatalf("note should not be allowed, got %v", err)
	}
	if err := h.ValidatePage(Page{Order: []Order{{Column: "note"}}}); !errors.Is(err, ErrInvalidColumn) {
		t.Fatalf("ordering by note should not be allowed, got %v", err)
	}
	if err := h.ValidatePage(Page{Limit: -1}); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("negative limit should not be allowed, got %v", err)
	}
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"items", "_x", "Item2", "a_b_c"}
	for _, s := range valid {
		if !IsValidIdentifier(s) {
			t.Fatalf("%q should be valid", s)
		}
	}
	invalid := []string{"", "2items", "items;", "a b", "a-b", "a.b", "\"a\"", string(make([]byte, 64))}
	for _, s := range invalid {
		if IsValidIdentifier(s) {
			t.Fatalf("%q should be invalid", s)
		}
	}
}

func TestNewTables(t *testing.T) {
	ts, err := NewTables(DialectPostgres, "", Table{Name: "items"}, Table{Name: "orders"})
	if err != nil {
		t.Fatalf("NewTables failed: %v", err)
	}
	if !reflect.DeepEqual(ts.Names(), []string{"items", "orders"}) {
		t.Fatalf("Want [items orders], got %v", ts.Names())
	}
	if _, ok := ts.Get("users"); ok {
		t.Fatalf("users should not be allowed")
	}

	_, err = NewTables(DialectPostgres, "", Table{Name: "items"}, Table{Name: "items"})
	var errHelper HelperError
	if !errors.As(err, &errHelper) || errHelper.Table != "items" {
		t.Fatalf("NewTables should fail on duplicate table, got %v", err)
	}

	_, err = NewTables(DialectPostgres, "", Table{Name: "items; DROP TABLE x"})
	if !errors.As(err, &errHelper) {
		t.Fatalf("NewTables should fail on invalid table name, got %v", err)
	}

	_, err = NewTables(DialectPostgres, "app_", Table{Name: ""})
	if !errors.As(err, &errHelper) {
		t.Fatalf("NewTables should fail on empty table name, got %v", err)
	}

	_, err = NewTables(DialectPostgres, "app_", Table{Name: "1"})
	if !errors.As(err, &errHelper) {
		t.Fatalf("NewTables should fail on table name that is valid only with prefix, got %v", err)
	}

	_, err = NewTables(DialectPostgres, "", Table{Name: "items", Columns: []string{"ok", "not ok"}})
	if !errors.As(err, &errHelper) {
		t.Fatalf("NewTables should fail on invalid column name, got %v", err)
	}
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("postgres")
	if err != nil || d != DialectPostgres {
		t.Fatalf("Want postgres dialect, got %v %v", d, err)
	}
	d, err = ParseDialect("sqlite3")
	if err != nil || d != DialectSQLite || d.DriverName() != "sqlite3" {
		t.Fatalf("Want sqlite dialect, got %v %v", d, err)
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Fatalf("mysql should not be supported")
	}
}
