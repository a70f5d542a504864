package crud

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Fault tells what kind of failure a store operation ran into
type Fault int

const (
	// FaultNone means there was no failure
	FaultNone Fault = iota
	// FaultInput is a caller error detected before anything was executed, eg.
	// table that is not allowed, invalid column name or empty filters
	FaultInput
	// FaultConnectivity means database could not be reached or connection
	// broke during the operation
	FaultConnectivity
	// FaultStatement means database rejected the statement: unknown column,
	// type mismatch, constraint violation etc.
	FaultStatement
)

func (f Fault) String() string {
	switch f {
	case FaultInput:
		return "input"
	case FaultConnectivity:
		return "connectivity"
	case FaultStatement:
		return "statement"
	default:
		return "none"
	}
}

// Errors returned (wrapped) for invalid input
var (
	ErrTableNotAllowed = errors.New("table is not allowed")
	ErrInvalidColumn   = errors.New("invalid column name")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrEmptyFields     = errors.New("fields are empty")
	ErrEmptyFilters    = errors.New("filters are empty")
	ErrInvalidValue    = errors.New("invalid value")
)

// StoreError wraps original error that occurred in Err with name of the
// operation that failed (Op), the table it was run against and kind of the
// failure
type StoreError struct {
	Op    string
	Table string
	Fault Fault
	Err   error
}

func (e *StoreError) Error() string {
	return e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// FaultOf returns kind of failure carried by err. Errors not coming from the
// store are treated as statement faults, nil as FaultNone.
func FaultOf(err error) Fault {
	if err == nil {
		return FaultNone
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se.Fault
	}
	return classify(err)
}

// IsConnectivity returns true when err is a connectivity fault
func IsConnectivity(err error) bool {
	return FaultOf(err) == FaultConnectivity
}

// classify maps a database/sql or driver error to a Fault
func classify(err error) Fault {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FaultConnectivity
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		// connection exception, invalid authorization, invalid catalog name,
		// insufficient resources, operator intervention
		case "08", "28", "3D", "53", "57":
			return FaultConnectivity
		}
		return FaultStatement
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrPerm, sqlite3.ErrAuth,
			sqlite3.ErrBusy, sqlite3.ErrLocked:
			return FaultConnectivity
		}
		return FaultStatement
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return FaultConnectivity
	}
	return FaultStatement
}
