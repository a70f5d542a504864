package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	crud "github.com/gen64/go-recordstore"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

var createTableQueries = map[crud.Dialect]string{
	crud.DialectPostgres: "CREATE TABLE IF NOT EXISTS %s (id SERIAL PRIMARY KEY,name VARCHAR(255),value BIGINT,price DOUBLE PRECISION,active BOOLEAN,note TEXT,code VARCHAR(50) UNIQUE)",
	crud.DialectSQLite:   "CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT,name TEXT,value INTEGER,price REAL,active BOOLEAN,note TEXT,code TEXT UNIQUE)",
}

type db struct {
	conn    *sql.DB
	dialect crud.Dialect
	dsn     string
	cfg     *Config
	log     logrus.FieldLogger
}

func NewDB(cfg *Config, log logrus.FieldLogger) (*db, error) {
	dialect, err := crud.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	return &db{
		dialect: dialect,
		dsn:     cfg.GetDSN(),
		cfg:     cfg,
		log:     log,
	}, nil
}

// GetConn opens the database handle and waits until the database answers
// ping, retrying with exponential backoff for cfg.ConnectRetry. Zero
// ConnectRetry pings once.
func (d *db) GetConn(ctx context.Context) (*sql.DB, error) {
	sqlDB, err := sql.Open(d.dialect.DriverName(), d.dsn)
	if err != nil {
		return nil, fmt.Errorf("error with sql.Open in db.GetConn: %w", err)
	}
	sqlDB.SetConnMaxLifetime(d.cfg.ConnMaxLifetime)
	sqlDB.SetMaxOpenConns(d.cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(d.cfg.MaxIdleConns)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = d.cfg.ConnectRetry
	var policy backoff.BackOff = b
	if d.cfg.ConnectRetry <= 0 {
		policy = backoff.WithMaxRetries(b, 0)
	}
	err = backoff.RetryNotify(func() error {
		return sqlDB.PingContext(ctx)
	}, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		d.log.WithError(err).WithField("retry_in", next.String()).Warn("database is not ready")
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("error with sqlDB.Ping in db.GetConn: %w", err)
	}

	d.conn = sqlDB
	return sqlDB, nil
}

// CreateTables creates the sample items table for every allowed table name
func (d *db) CreateTables(ctx context.Context, tables *crud.Tables) error {
	for _, n := range tables.Names() {
		h, _ := tables.Get(n)
		if _, err := d.conn.ExecContext(ctx, fmt.Sprintf(createTableQueries[d.dialect], h.GetTable())); err != nil {
			return fmt.Errorf("error creating table %s: %w", h.GetTable(), err)
		}
	}
	return nil
}

// GetConnector returns connector for the store: a pool on the opened handle
// or a fresh connection per operation
func (d *db) GetConnector() crud.Connector {
	var c crud.Connector
	if d.cfg.Pool {
		c = crud.NewPoolConnector(d.conn)
	} else {
		c = crud.NewDSNConnector(d.dialect.DriverName(), d.dsn)
	}
	if d.cfg.ConnectRetry > 0 {
		c = &crud.RetryConnector{Connector: c, MaxElapsed: d.cfg.ConnectRetry}
	}
	return c
}

func (d *db) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}
