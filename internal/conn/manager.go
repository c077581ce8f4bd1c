package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/pheller/sqlpilot/internal/driver"
	"github.com/pheller/sqlpilot/internal/schema"
)

// State is the connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
	Executing
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	case Executing:
		return "executing"
	default:
		return "disconnected"
	}
}

// Execution records one finished query run.
type Execution struct {
	ID         string
	Query      string
	StartedAt  time.Time
	FinishedAt time.Time
	Result     *driver.QueryResult
	Err        error
}

// Options tune a Manager. Zero values pick sensible defaults.
type Options struct {
	QueryTimeout   time.Duration // per-execution deadline, default 30s
	ConnectTimeout time.Duration // per-attempt connect deadline, default 10s
	MaxRows        int           // result row cap, default driver.DefaultMaxRows
	MaxHistory     int           // finished executions kept, default 50
	MaxRetries     uint64        // connect retries for network errors, default 3
	RetryBase      time.Duration // backoff base, default 500ms
}

func (o *Options) fill() {
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 30 * time.Second
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.MaxRows <= 0 {
		o.MaxRows = driver.DefaultMaxRows
	}
	if o.MaxHistory <= 0 {
		o.MaxHistory = 50
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
}

// Manager owns one driver connection and its lifecycle. At most one
// execution runs at a time; a second submission fails fast with
// ErrBusy. Cancel is cooperative: local state flips immediately and a
// generation counter drops the late driver result when it arrives.
type Manager struct {
	opts Options

	mu       sync.Mutex
	state    State
	drv      driver.Driver
	conn     driver.Conn
	cache    *schema.Cache
	lastErr  error
	connGen  uint64
	execGen  uint64
	cancel   context.CancelFunc
	history  []Execution
	curID    string
	curQuery string
	curStart time.Time
}

// NewManager creates a disconnected manager.
func NewManager(opts Options) *Manager {
	opts.fill()
	return &Manager{opts: opts, state: Disconnected}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the failure that produced a Failed state, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// SchemaCache returns the cache for the live connection, or nil when
// disconnected. Each connect builds a fresh cache.
func (m *Manager) SchemaCache() *schema.Cache {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache
}

// DriverName returns the active driver's name, or "".
func (m *Manager) DriverName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.drv == nil {
		return ""
	}
	return m.drv.Name()
}

// DatabaseName returns the connected database's name, or "".
func (m *Manager) DatabaseName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return ""
	}
	return m.conn.DatabaseName()
}

// Connect establishes a connection with the named driver. Network
// failures are retried with bounded exponential backoff; auth and
// driver failures fail immediately. Any previous connection is torn
// down first. Blocks until connected or failed; run it from a
// goroutine or tea.Cmd.
func (m *Manager) Connect(ctx context.Context, driverName string, target driver.Target) error {
	drv, ok := driver.Lookup(driverName)
	if !ok {
		return newError(ClassDriver, "connect", fmt.Errorf("unknown driver %q", driverName))
	}

	m.mu.Lock()
	if m.state == Connecting || m.state == Executing {
		m.mu.Unlock()
		return ErrBusy
	}
	m.teardownLocked()
	m.state = Connecting
	m.lastErr = nil
	m.mu.Unlock()

	var c driver.Conn
	backoff := retry.WithMaxRetries(m.opts.MaxRetries, retry.NewExponential(m.opts.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
		defer cancel()

		conn, err := drv.Connect(attemptCtx, target)
		if err != nil {
			cls := Classify(err, "connect", ClassDriver)
			if cls.Class == ClassNetwork {
				return retry.RetryableError(cls)
			}
			return cls
		}
		c = conn
		return nil
	})
	if err != nil {
		cls := Classify(err, "connect", ClassDriver)
		m.mu.Lock()
		m.state = Failed
		m.lastErr = cls
		m.mu.Unlock()
		return cls
	}

	m.mu.Lock()
	m.drv = drv
	m.conn = c
	m.connGen++
	m.state = Connected
	m.cache = schema.NewCache(driver.NewNodeFetcher(c))
	m.mu.Unlock()
	return nil
}

// Generation returns the connection generation. It increments on every
// successful connect so consumers can drop results from a previous
// connection.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connGen
}

// Probe fetches the database list on the live connection. It is the
// lightweight check scheduled right after connect; a failure here
// surfaces broken connections before the first query does.
func (m *Manager) Probe(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	c := m.conn
	m.mu.Unlock()
	if c == nil {
		return nil, newError(ClassDriver, "probe", driver.ErrNotConnected)
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	dbs, err := c.Databases(probeCtx)
	if err != nil {
		return nil, Classify(err, "probe", ClassDriver)
	}
	return dbs, nil
}

// Execute runs one query. Submitting while another execution is
// running fails fast with ErrBusy. The finished execution, including
// failures, lands in the bounded history. Blocks until done; run it
// from a goroutine or tea.Cmd.
func (m *Manager) Execute(ctx context.Context, query string) (*Execution, error) {
	m.mu.Lock()
	switch m.state {
	case Executing:
		m.mu.Unlock()
		return nil, ErrBusy
	case Connected:
	default:
		m.mu.Unlock()
		return nil, newError(ClassDriver, "execute", driver.ErrNotConnected)
	}

	m.execGen++
	gen := m.execGen
	m.state = Executing
	m.curID = uuid.NewString()
	m.curQuery = query
	m.curStart = time.Now()

	execCtx, cancel := context.WithTimeout(ctx, m.opts.QueryTimeout)
	m.cancel = cancel
	c := m.conn
	maxRows := m.opts.MaxRows
	m.mu.Unlock()

	result, err := c.Execute(execCtx, query, maxRows)
	ctxErr := execCtx.Err()
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.execGen {
		// A cancel or disconnect already settled this execution; the
		// late driver result is dropped.
		return nil, ErrCancelled
	}

	exec := Execution{
		ID:         m.curID,
		Query:      query,
		StartedAt:  m.curStart,
		FinishedAt: time.Now(),
		Result:     result,
	}
	if err != nil {
		if errors.Is(ctxErr, context.Canceled) || errors.Is(err, context.Canceled) {
			exec.Err = ErrCancelled
		} else {
			exec.Err = Classify(err, "execute", ClassQuery)
		}
	}

	if m.state == Executing {
		m.state = Connected
	}
	m.cancel = nil
	m.pushHistoryLocked(exec)

	if exec.Err != nil {
		return nil, exec.Err
	}
	return &exec, nil
}

// Cancel aborts the running execution. The local state flips back to
// Connected immediately; the in-flight driver call is cancelled
// cooperatively and its eventual result is dropped. A cancelled
// execution is recorded in history.
func (m *Manager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Executing {
		return
	}

	m.execGen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.pushHistoryLocked(Execution{
		ID:         m.curID,
		Query:      m.curQuery,
		StartedAt:  m.curStart,
		FinishedAt: time.Now(),
		Err:        ErrCancelled,
	})
	m.state = Connected
}

// UseDatabase switches the connection's database scope, invalidating
// the schema cache so the explorer and completion reload.
func (m *Manager) UseDatabase(ctx context.Context, name string) error {
	m.mu.Lock()
	if m.state != Connected {
		m.mu.Unlock()
		if m.state == Executing {
			return ErrBusy
		}
		return newError(ClassDriver, "use", driver.ErrNotConnected)
	}
	c := m.conn
	cache := m.cache
	m.mu.Unlock()

	if err := c.UseDatabase(ctx, name); err != nil {
		return Classify(err, "use", ClassQuery)
	}
	if cache != nil {
		cache.Invalidate("")
	}
	return nil
}

// RefreshSchema drops all cached schema nodes for the live connection.
func (m *Manager) RefreshSchema() {
	m.mu.Lock()
	cache := m.cache
	m.mu.Unlock()
	if cache != nil {
		cache.Invalidate("")
	}
}

// Disconnect cancels in-flight work, closes the connection, and
// invalidates the schema cache.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.teardownLocked()
}

func (m *Manager) teardownLocked() error {
	m.execGen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	var err error
	if m.conn != nil {
		err = m.conn.Close()
		m.conn = nil
	}
	if m.cache != nil {
		m.cache.Invalidate("")
		m.cache = nil
	}
	m.drv = nil
	m.state = Disconnected
	m.lastErr = nil
	return err
}

// History returns finished executions, most recent last.
func (m *Manager) History() []Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Execution, len(m.history))
	copy(out, m.history)
	return out
}

func (m *Manager) pushHistoryLocked(exec Execution) {
	m.history = append(m.history, exec)
	if len(m.history) > m.opts.MaxHistory {
		m.history = m.history[len(m.history)-m.opts.MaxHistory:]
	}
}
