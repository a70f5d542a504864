package crud

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// Names of store operations, as used in StoreError.Op and in log entries
const (
	OpCreate = "Create"
	OpRead   = "Read"
	OpUpdate = "Update"
	OpDelete = "Delete"
)

// Store runs create, read, update and delete statements against allowed
// tables. Every call takes its own connection from the Connector and releases
// it before returning. Store holds no other state, so it is safe to use from
// many goroutines at once.
type Store struct {
	connector Connector
	tables    *Tables
	log       logrus.FieldLogger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets logger that store faults are written to
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// NewStore returns new Store object
func NewStore(connector Connector, tables *Tables, opts ...Option) *Store {
	s := &Store{
		connector: connector,
		tables:    tables,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.log = l
	}
	return s
}

// Tables returns allow-list the store was created with
func (s *Store) Tables() *Tables {
	return s.tables
}

// Create inserts a row with fields into table and returns value of the
// generated identifier column
func (s *Store) Create(ctx context.Context, table string, fields Fields) (int64, error) {
	h, err := s.getHelper(OpCreate, table)
	if err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 0, s.fail(OpCreate, table, FaultInput, ErrEmptyFields)
	}
	if err := h.ValidateFields(fields); err != nil {
		return 0, s.fail(OpCreate, table, FaultInput, err)
	}

	q, args := h.GetQueryInsert(fields)
	s.log.WithFields(logrus.Fields{"op": OpCreate, "table": table}).Debug(q)
	var id int64
	err = s.withTx(ctx, OpCreate, table, func(tx txRunner) error {
		return tx.QueryRowContext(ctx, q, args...).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Read returns all rows matching filters. Empty filters match every row.
// Zero matching rows is not an error: the result is an empty slice.
func (s *Store) Read(ctx context.Context, table string, filters Fields) ([]Record, error) {
	return s.ReadPage(ctx, table, filters, Page{})
}

// ReadPage works like Read and additionally sorts and limits the rows
func (s *Store) ReadPage(ctx context.Context, table string, filters Fields, page Page) ([]Record, error) {
	h, err := s.getHelper(OpRead, table)
	if err != nil {
		return nil, err
	}
	if err := h.ValidateFields(filters); err != nil {
		return nil, s.fail(OpRead, table, FaultInput, err)
	}
	if err := h.ValidatePage(page); err != nil {
		return nil, s.fail(OpRead, table, FaultInput, err)
	}

	q, args := h.GetQuerySelect(filters, page)

	conn, err := s.connect(ctx, OpRead, table)
	if err != nil {
		return nil, err
	}
	defer s.release(conn, OpRead, table)

	s.log.WithFields(logrus.Fields{"op": OpRead, "table": table}).Debug(q)
	rows, err := conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, s.fail(OpRead, table, classify(err), err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, s.fail(OpRead, table, classify(err), err)
	}
	return records, nil
}

// Update sets fields on rows matching filters. It returns true when at least
// one row was changed and false when nothing matched. Filters must not be
// empty: an update of the whole table is refused before anything is run.
func (s *Store) Update(ctx context.Context, table string, fields Fields, filters Fields) (bool, error) {
	h, err := s.getHelper(OpUpdate, table)
	if err != nil {
		return false, err
	}
	if len(fields) == 0 {
		return false, s.fail(OpUpdate, table, FaultInput, ErrEmptyFields)
	}
	if len(filters) == 0 {
		return false, s.fail(OpUpdate, table, FaultInput, ErrEmptyFilters)
	}
	if err := h.ValidateFields(fields); err != nil {
		return false, s.fail(OpUpdate, table, FaultInput, err)
	}
	if err := h.ValidateFields(filters); err != nil {
		return false, s.fail(OpUpdate, table, FaultInput, err)
	}

	q, args := h.GetQueryUpdate(fields, filters)
	return s.execAffected(ctx, OpUpdate, table, q, args)
}

// Delete removes rows matching filters. It returns true when at least one row
// was removed. Filters must not be empty.
func (s *Store) Delete(ctx context.Context, table string, filters Fields) (bool, error) {
	h, err := s.getHelper(OpDelete, table)
	if err != nil {
		return false, err
	}
	if len(filters) == 0 {
		return false, s.fail(OpDelete, table, FaultInput, ErrEmptyFilters)
	}
	if err := h.ValidateFields(filters); err != nil {
		return false, s.fail(OpDelete, table, FaultInput, err)
	}

	q, args := h.GetQueryDelete(filters)
	return s.execAffected(ctx, OpDelete, table, q, args)
}

func (s *Store) execAffected(ctx context.Context, op string, table string, q string, args []interface{}) (bool, error) {
	s.log.WithFields(logrus.Fields{"op": op, "table": table}).Debug(q)
	var n int64
	err := s.withTx(ctx, op, table, func(tx txRunner) error {
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// getHelper returns Helper of an allowed table
func (s *Store) getHelper(op string, table string) (*Helper, error) {
	h, ok := s.tables.Get(table)
	if !ok {
		return nil, s.fail(op, table, FaultInput, ErrTableNotAllowed)
	}
	return h, nil
}

func (s *Store) connect(ctx context.Context, op string, table string) (Conn, error) {
	conn, err := s.connector.Connect(ctx)
	if err != nil {
		return nil, s.fail(op, table, classify(err), err)
	}
	return conn, nil
}

func (s *Store) release(conn Conn, op string, table string) {
	if err := conn.Close(); err != nil {
		s.log.WithFields(logrus.Fields{"op": op, "table": table}).WithError(err).Warn("closing connection failed")
	}
}

// withTx runs fn in a transaction on a fresh connection and commits it.
// The transaction is rolled back and the connection closed on every path.
func (s *Store) withTx(ctx context.Context, op string, table string, fn func(tx txRunner) error) error {
	conn, err := s.connect(ctx, op, table)
	if err != nil {
		return err
	}
	defer s.release(conn, op, table)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return s.fail(op, table, classify(err), err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return s.fail(op, table, classify(err), err)
	}
	if err := tx.Commit(); err != nil {
		return s.fail(op, table, classify(err), err)
	}
	return nil
}

// fail logs the fault and wraps err into StoreError
func (s *Store) fail(op string, table string, fault Fault, err error) error {
	s.log.WithFields(logrus.Fields{
		"op":    op,
		"table": table,
		"fault": fault.String(),
	}).WithError(err).Error("store operation failed")
	return &StoreError{
		Op:    op,
		Table: table,
		Fault: fault,
		Err:   err,
	}
}
