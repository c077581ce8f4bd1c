package conn

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pheller/sqlpilot/internal/driver"
	"github.com/pheller/sqlpilot/internal/schema"
)

// fakeConn is a scriptable driver.Conn. When block is set, Execute
// signals started and waits for release or context cancellation.
type fakeConn struct {
	closed   atomic.Bool
	block    bool
	started  chan struct{}
	release  chan struct{}
	execErr  error
	database string
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		started:  make(chan struct{}, 8),
		release:  make(chan struct{}),
		database: "main",
	}
}

func (c *fakeConn) Databases(ctx context.Context) ([]string, error) {
	return []string{"main"}, nil
}

func (c *fakeConn) Schemas(ctx context.Context, db string) ([]string, error) {
	return []string{"public"}, nil
}

func (c *fakeConn) Tables(ctx context.Context, db, schemaName string) ([]schema.Table, error) {
	return nil, nil
}

func (c *fakeConn) Views(ctx context.Context, db, schemaName string) ([]schema.View, error) {
	return nil, nil
}

func (c *fakeConn) Procedures(ctx context.Context, db, schemaName string) ([]schema.Procedure, error) {
	return nil, nil
}

func (c *fakeConn) Columns(ctx context.Context, db, schemaName, table string) ([]schema.Column, error) {
	return nil, nil
}

func (c *fakeConn) Indexes(ctx context.Context, db, schemaName, table string) ([]schema.Index, error) {
	return nil, nil
}

func (c *fakeConn) Execute(ctx context.Context, query string, maxRows int) (*driver.QueryResult, error) {
	if c.block {
		c.started <- struct{}{}
		select {
		case <-c.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.execErr != nil {
		return nil, c.execErr
	}
	return &driver.QueryResult{RowCount: 1, IsSelect: true, Message: query}, nil
}

func (c *fakeConn) UseDatabase(ctx context.Context, name string) error {
	c.database = name
	return nil
}

func (c *fakeConn) Ping(ctx context.Context) error { return nil }

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *fakeConn) DatabaseName() string { return c.database }
func (c *fakeConn) DriverName() string   { return "fake" }

// fakeDriver fails the first len(connectErrs) attempts, then hands out
// its conn.
type fakeDriver struct {
	name        string
	conn        *fakeConn
	connectErrs []error
	attempts    atomic.Int32
}

func (d *fakeDriver) Connect(ctx context.Context, target driver.Target) (driver.Conn, error) {
	n := int(d.attempts.Add(1))
	if n <= len(d.connectErrs) {
		return nil, d.connectErrs[n-1]
	}
	return d.conn, nil
}

func (d *fakeDriver) Name() string     { return d.name }
func (d *fakeDriver) DefaultPort() int { return 0 }

var driverSeq atomic.Int32

// registerFake installs a uniquely named fake driver in the registry.
func registerFake(connectErrs ...error) *fakeDriver {
	d := &fakeDriver{
		name:        fmt.Sprintf("fake-%d", driverSeq.Add(1)),
		conn:        newFakeConn(),
		connectErrs: connectErrs,
	}
	driver.Register(d)
	return d
}

func newTestManager() *Manager {
	return NewManager(Options{RetryBase: time.Millisecond})
}

func mustConnect(t *testing.T, m *Manager, d *fakeDriver) {
	t.Helper()
	if err := m.Connect(context.Background(), d.name, driver.Target{}); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func TestConnectSuccess(t *testing.T) {
	d := registerFake()
	m := newTestManager()

	mustConnect(t, m, d)

	if m.State() != Connected {
		t.Fatalf("state = %v, want connected", m.State())
	}
	if m.SchemaCache() == nil {
		t.Fatal("no schema cache after connect")
	}
	if m.Generation() != 1 {
		t.Fatalf("generation = %d, want 1", m.Generation())
	}
	if m.DriverName() != d.name {
		t.Fatalf("driver name = %q", m.DriverName())
	}
}

func TestConnectUnknownDriver(t *testing.T) {
	m := newTestManager()
	err := m.Connect(context.Background(), "no-such-driver", driver.Target{})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestConnectRetriesNetworkErrors(t *testing.T) {
	netErr := newError(ClassNetwork, "connect", errors.New("connection refused"))
	d := registerFake(netErr, netErr)
	m := newTestManager()

	mustConnect(t, m, d)

	if got := d.attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	if m.State() != Connected {
		t.Fatalf("state = %v, want connected", m.State())
	}
}

func TestConnectAuthErrorNotRetried(t *testing.T) {
	authErr := errors.New("password authentication failed for user \"app\"")
	d := registerFake(authErr, nil, nil, nil)
	m := newTestManager()

	err := m.Connect(context.Background(), d.name, driver.Target{})
	if err == nil {
		t.Fatal("expected auth failure")
	}
	if got := d.attempts.Load(); got != 1 {
		t.Fatalf("attempts = %d, want 1 (auth must not retry)", got)
	}

	var ce *Error
	if !errors.As(err, &ce) || ce.Class != ClassAuth {
		t.Fatalf("err = %v, want auth class", err)
	}
	if m.State() != Failed {
		t.Fatalf("state = %v, want failed", m.State())
	}
	if m.LastError() == nil {
		t.Fatal("LastError not recorded")
	}
}

func TestExecuteNotConnected(t *testing.T) {
	m := newTestManager()
	_, err := m.Execute(context.Background(), "SELECT 1")
	if err == nil || !errors.Is(err, driver.ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestSecondExecutionFailsFastWithBusy(t *testing.T) {
	d := registerFake()
	d.conn.block = true
	m := newTestManager()
	mustConnect(t, m, d)

	done := make(chan error, 1)
	go func() {
		_, err := m.Execute(context.Background(), "SELECT pg_sleep(10)")
		done <- err
	}()
	<-d.conn.started

	if m.State() != Executing {
		t.Fatalf("state = %v, want executing", m.State())
	}
	_, err := m.Execute(context.Background(), "SELECT 2")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("second submit err = %v, want ErrBusy", err)
	}

	close(d.conn.release)
	if err := <-done; err != nil {
		t.Fatalf("first execution: %v", err)
	}
	if m.State() != Connected {
		t.Fatalf("state after drain = %v, want connected", m.State())
	}
}

func TestCancelFlipsStateAndDropsLateResult(t *testing.T) {
	d := registerFake()
	d.conn.block = true
	m := newTestManager()
	mustConnect(t, m, d)

	done := make(chan error, 1)
	go func() {
		_, err := m.Execute(context.Background(), "SELECT slow()")
		done <- err
	}()
	<-d.conn.started

	m.Cancel()
	if m.State() != Connected {
		t.Fatalf("state after cancel = %v, want connected immediately", m.State())
	}

	if err := <-done; !errors.Is(err, ErrCancelled) {
		t.Fatalf("execution err = %v, want ErrCancelled", err)
	}

	hist := m.History()
	if len(hist) != 1 {
		t.Fatalf("history = %d entries, want 1", len(hist))
	}
	if !errors.Is(hist[0].Err, ErrCancelled) {
		t.Fatalf("history err = %v, want cancelled", hist[0].Err)
	}
	if hist[0].ID == "" {
		t.Fatal("cancelled execution has no id")
	}
}

func TestExecuteRecordsHistory(t *testing.T) {
	d := registerFake()
	m := newTestManager()
	mustConnect(t, m, d)

	exec, err := m.Execute(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if exec.ID == "" || exec.Result == nil {
		t.Fatalf("execution = %+v", exec)
	}
	if exec.FinishedAt.Before(exec.StartedAt) {
		t.Fatal("finished before started")
	}

	hist := m.History()
	if len(hist) != 1 || hist[0].Query != "SELECT 1" {
		t.Fatalf("history = %+v", hist)
	}
}

func TestHistoryBounded(t *testing.T) {
	d := registerFake()
	m := NewManager(Options{RetryBase: time.Millisecond, MaxHistory: 3})
	mustConnect(t, m, d)

	for i := 0; i < 5; i++ {
		if _, err := m.Execute(context.Background(), fmt.Sprintf("SELECT %d", i)); err != nil {
			t.Fatalf("execute %d: %v", i, err)
		}
	}

	hist := m.History()
	if len(hist) != 3 {
		t.Fatalf("history = %d entries, want 3", len(hist))
	}
	if hist[2].Query != "SELECT 4" {
		t.Fatalf("newest = %q, want SELECT 4", hist[2].Query)
	}
	if hist[0].Query != "SELECT 2" {
		t.Fatalf("oldest = %q, want SELECT 2", hist[0].Query)
	}
}

func TestQueryErrorClassified(t *testing.T) {
	d := registerFake()
	d.conn.execErr = errors.New("syntax error at or near \"SELEC\"")
	m := newTestManager()
	mustConnect(t, m, d)

	_, err := m.Execute(context.Background(), "SELEC 1")
	var ce *Error
	if !errors.As(err, &ce) || ce.Class != ClassQuery {
		t.Fatalf("err = %v, want query class", err)
	}
	if m.State() != Connected {
		t.Fatalf("state = %v, want connected after failed query", m.State())
	}

	hist := m.History()
	if len(hist) != 1 || hist[0].Err == nil {
		t.Fatalf("failed execution missing from history: %+v", hist)
	}
}

func TestDisconnectInvalidatesCacheAndClosesConn(t *testing.T) {
	d := registerFake()
	m := newTestManager()
	mustConnect(t, m, d)

	cache := m.SchemaCache()
	if _, err := cache.Children(context.Background(), ""); err != nil {
		t.Fatalf("load root: %v", err)
	}
	if !cache.Loaded("") {
		t.Fatal("root not loaded")
	}

	if err := m.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if m.State() != Disconnected {
		t.Fatalf("state = %v, want disconnected", m.State())
	}
	if cache.Loaded("") {
		t.Fatal("schema cache still loaded after disconnect")
	}
	if m.SchemaCache() != nil {
		t.Fatal("manager still exposes a cache after disconnect")
	}
	if !d.conn.closed.Load() {
		t.Fatal("driver connection not closed")
	}
}

func TestProbeReturnsDatabases(t *testing.T) {
	d := registerFake()
	m := newTestManager()
	mustConnect(t, m, d)

	dbs, err := m.Probe(context.Background())
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if len(dbs) != 1 || dbs[0] != "main" {
		t.Fatalf("probe = %v", dbs)
	}
}

func TestUseDatabaseInvalidatesCache(t *testing.T) {
	d := registerFake()
	m := newTestManager()
	mustConnect(t, m, d)

	cache := m.SchemaCache()
	if _, err := cache.Children(context.Background(), ""); err != nil {
		t.Fatalf("load root: %v", err)
	}

	if err := m.UseDatabase(context.Background(), "analytics"); err != nil {
		t.Fatalf("use: %v", err)
	}
	if m.DatabaseName() != "analytics" {
		t.Fatalf("database = %q", m.DatabaseName())
	}
	if cache.Loaded("") {
		t.Fatal("cache not invalidated by USE")
	}
}

func TestConnectWhileExecutingIsBusy(t *testing.T) {
	d := registerFake()
	d.conn.block = true
	m := newTestManager()
	mustConnect(t, m, d)

	done := make(chan error, 1)
	go func() {
		_, err := m.Execute(context.Background(), "SELECT slow()")
		done <- err
	}()
	<-d.conn.started

	if err := m.Connect(context.Background(), d.name, driver.Target{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("connect during execution = %v, want ErrBusy", err)
	}

	m.Cancel()
	<-done
}
