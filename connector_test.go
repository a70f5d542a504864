package crud

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenConn fails every call with err and counts Close calls
type brokenConn struct {
	err    error
	closed *int32
}

func (c *brokenConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return nil, c.err
}

func (c *brokenConn) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, c.err
}

func (c *brokenConn) Close() error {
	atomic.AddInt32(c.closed, 1)
	return nil
}

type brokenConnector struct {
	err    error
	closed int32
}

func (c *brokenConnector) Connect(ctx context.Context) (Conn, error) {
	return &brokenConn{err: c.err, closed: &c.closed}, nil
}

// countingConnector counts connections given out and closed
type countingConnector struct {
	Connector
	opened int32
	closed int32
}

func (c *countingConnector) Connect(ctx context.Context) (Conn, error) {
	conn, err := c.Connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	atomic.AddInt32(&c.opened, 1)
	return &countingConn{Conn: conn, closed: &c.closed}, nil
}

type countingConn struct {
	Conn
	closed *int32
}

func (c *countingConn) Close() error {
	atomic.AddInt32(c.closed, 1)
	return c.Conn.Close()
}

// flakyConnector fails with err the first failures times
type flakyConnector struct {
	Connector
	err      error
	failures int32
	attempts int32
}

func (c *flakyConnector) Connect(ctx context.Context) (Conn, error) {
	n := atomic.AddInt32(&c.attempts, 1)
	if n <= c.failures {
		return nil, c.err
	}
	return c.Connector.Connect(ctx)
}

func TestConnectionIsReleasedOnEveryPath(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b *testBackend, _ *Store) {
		ctx := context.Background()
		c := &countingConnector{Connector: NewDSNConnector(b.dialect.DriverName(), b.dsn)}
		s := NewStore(c, newTestTables(t, b.dialect))

		id, err := s.Create(ctx, testTableName, item("a", 1))
		require.NoError(t, err)
		_, err = s.Read(ctx, testTableName, nil)
		require.NoError(t, err)
		_, err = s.Update(ctx, testTableName, item("b", 2), Fields{{Column: "id", Value: IntValue(id)}})
		require.NoError(t, err)
		_, err = s.Delete(ctx, testTableName, Fields{{Column: "name", Value: TextValue("missing")}})
		require.NoError(t, err)

		_, err = s.Create(ctx, testTableName, Fields{{Column: "no_such_column", Value: IntValue(1)}})
		require.Error(t, err)
		_, err = s.Read(ctx, testTableName, Fields{{Column: "no_such_column", Value: IntValue(1)}})
		require.Error(t, err)

		// input faults never reach the connector
		_, err = s.Delete(ctx, testTableName, nil)
		require.Error(t, err)

		assert.Equal(t, int32(6), atomic.LoadInt32(&c.opened))
		assert.Equal(t, int32(6), atomic.LoadInt32(&c.closed))
	})
}

func TestBrokenConnectionIsConnectivityFault(t *testing.T) {
	c := &brokenConnector{err: driver.ErrBadConn}
	s := NewStore(c, newTestTables(t, DialectSQLite))
	ctx := context.Background()

	_, err := s.Create(ctx, testTableName, item("a", 1))
	assert.Equal(t, FaultConnectivity, FaultOf(err))
	assert.True(t, IsConnectivity(err))

	_, err = s.Read(ctx, testTableName, nil)
	assert.Equal(t, FaultConnectivity, FaultOf(err))

	_, err = s.Update(ctx, testTableName, item("a", 1), item("b", 2))
	assert.Equal(t, FaultConnectivity, FaultOf(err))

	_, err = s.Delete(ctx, testTableName, item("b", 2))
	assert.Equal(t, FaultConnectivity, FaultOf(err))

	assert.Equal(t, int32(4), atomic.LoadInt32(&c.closed))
}

func TestUnreachableSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "no", "such", "dir", "test.db")
	s := NewStore(NewDSNConnector("sqlite3", dsn), newTestTables(t, DialectSQLite))

	_, err := s.Create(context.Background(), testTableName, item("a", 1))
	require.Error(t, err)
	assert.Equal(t, FaultConnectivity, FaultOf(err))

	_, err = s.Read(context.Background(), testTableName, nil)
	assert.Equal(t, FaultConnectivity, FaultOf(err))
}

func TestUnreachablePostgres(t *testing.T) {
	dsn := "host=127.0.0.1 port=1 user=nobody dbname=nothing sslmode=disable connect_timeout=2"
	s := NewStore(NewDSNConnector("postgres", dsn), newTestTables(t, DialectPostgres))

	_, err := s.Create(context.Background(), testTableName, item("a", 1))
	require.Error(t, err)
	assert.Equal(t, FaultConnectivity, FaultOf(err))

	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, OpCreate, se.Op)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewStore(NewDSNConnector("sqlite3", ":memory:"), newTestTables(t, DialectSQLite))
	_, err := s.Read(ctx, testTableName, nil)
	assert.Equal(t, FaultConnectivity, FaultOf(err))
}

func TestRetryConnectorRecovers(t *testing.T) {
	b := testBackends[0]
	c := &flakyConnector{
		Connector: NewDSNConnector(b.dialect.DriverName(), b.dsn),
		err:       driver.ErrBadConn,
		failures:  2,
	}
	s := NewStore(&RetryConnector{Connector: c, MaxElapsed: 5 * time.Second}, newTestTables(t, b.dialect))

	_, err := s.Read(context.Background(), testTableName, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&c.attempts))
}

func TestRetryConnectorGivesUp(t *testing.T) {
	c := &flakyConnector{err: driver.ErrBadConn, failures: 1 << 30}
	r := &RetryConnector{Connector: c, MaxElapsed: 300 * time.Millisecond}

	_, err := r.Connect(context.Background())
	assert.ErrorIs(t, err, driver.ErrBadConn)
	assert.Greater(t, atomic.LoadInt32(&c.attempts), int32(1))
}

func TestRetryConnectorDoesNotRetryOtherFaults(t *testing.T) {
	failure := errors.New("password authentication failed")
	c := &flakyConnector{err: failure, failures: 1 << 30}
	r := &RetryConnector{Connector: c, MaxElapsed: 5 * time.Second}

	_, err := r.Connect(context.Background())
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, int32(1), atomic.LoadInt32(&c.attempts))
}

func TestRetryConnectorZeroLimitTriesOnce(t *testing.T) {
	c := &flakyConnector{err: driver.ErrBadConn, failures: 1 << 30}
	r := &RetryConnector{Connector: c}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	_, err := r.Connect(ctx)
	assert.ErrorIs(t, err, driver.ErrBadConn)
	assert.Equal(t, int32(1), atomic.LoadInt32(&c.attempts))
	assert.Less(t, time.Since(start), time.Second)
}
