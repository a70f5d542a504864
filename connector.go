package crud

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Conn is a single database connection used by one store operation. It is
// closed by the store when the operation returns, whatever the outcome.
type Conn interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	Close() error
}

// Connector hands out connections to the store
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// DSNConnector opens a brand new database handle for every Connect call and
// closes it together with the connection. Nothing is pooled or reused.
type DSNConnector struct {
	driverName string
	dsn        string
}

// NewDSNConnector returns DSNConnector for a database/sql driver name and
// a connection string
func NewDSNConnector(driverName string, dsn string) *DSNConnector {
	return &DSNConnector{
		driverName: driverName,
		dsn:        dsn,
	}
}

// Connect opens database handle and dials a single connection on it
func (c *DSNConnector) Connect(ctx context.Context) (Conn, error) {
	db, err := sql.Open(c.driverName, c.dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &dsnConn{Conn: conn, db: db}, nil
}

type dsnConn struct {
	*sql.Conn
	db *sql.DB
}

func (c *dsnConn) Close() error {
	return errors.Join(c.Conn.Close(), c.db.Close())
}

// PoolConnector takes connections from an injected *sql.DB. Closing the
// connection returns it to the pool.
type PoolConnector struct {
	db *sql.DB
}

// NewPoolConnector returns PoolConnector for db
func NewPoolConnector(db *sql.DB) *PoolConnector {
	return &PoolConnector{db: db}
}

// Connect takes a connection from the pool
func (c *PoolConnector) Connect(ctx context.Context) (Conn, error) {
	return c.db.Conn(ctx)
}

// RetryConnector retries Connect of another Connector with exponential backoff
// for as long as it fails with a connectivity fault and MaxElapsed has not
// passed. Zero MaxElapsed means a single attempt. Any other failure is
// returned straight away.
type RetryConnector struct {
	Connector  Connector
	MaxElapsed time.Duration
}

// Connect calls wrapped Connector until it succeeds or gives up
func (c *RetryConnector) Connect(ctx context.Context) (Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = c.MaxElapsed
	var policy backoff.BackOff = b
	if c.MaxElapsed <= 0 {
		// backoff treats zero MaxElapsedTime as no limit
		policy = backoff.WithMaxRetries(b, 0)
	}

	var conn Conn
	err := backoff.Retry(func() error {
		var err error
		conn, err = c.Connector.Connect(ctx)
		if err != nil && classify(err) != FaultConnectivity {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, err
	}
	return conn, nil
}
