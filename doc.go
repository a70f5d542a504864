// Package crud is a generic record store: it builds INSERT, SELECT, UPDATE and
// DELETE statements from a table name and ordered column/value lists, runs
// them on PostgreSQL or SQLite and returns ids, records or whether anything
// was affected. On top of the store there are HTTP and websocket handlers.
//
// Only tables on the allow-list can be used, and every column name must be a
// plain identifier, since both are written into the statement text.
//
//	tables, _ := crud.NewTables(crud.DialectPostgres, "", crud.Table{Name: "items"})
//	store := crud.NewStore(crud.NewDSNConnector("postgres", dsn), tables)
//
//	id, err := store.Create(ctx, "items", crud.Fields{
//		{Column: "name", Value: crud.TextValue("a")},
//		{Column: "value", Value: crud.IntValue(1)},
//	}) // runs INSERT ... RETURNING id
//
//	records, err := store.Read(ctx, "items", crud.Fields{
//		{Column: "name", Value: crud.TextValue("a")},
//	}) // runs SELECT * FROM items WHERE name=$1
//
//	ok, err := store.Update(ctx, "items",
//		crud.Fields{{Column: "value", Value: crud.IntValue(2)}},
//		crud.Fields{{Column: "id", Value: crud.IntValue(id)}},
//	) // runs UPDATE, ok is false when no row matched
//
//	ok, err = store.Delete(ctx, "items", crud.Fields{
//		{Column: "id", Value: crud.IntValue(id)},
//	}) // runs DELETE
//
// Update and Delete refuse empty filters. Errors are *StoreError values and
// FaultOf tells caller errors, connectivity problems and statements rejected
// by the database apart. No matching rows is never an error.
//
// Here is how to expose a table over HTTP:
//
//	http.HandleFunc("/items/", store.GetHTTPHandler("items", "/items/"))
//	http.HandleFunc("/ws", store.GetWSHandler())
//	log.Fatal(http.ListenAndServe(":9001", nil))
package crud
