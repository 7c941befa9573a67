package pqclient

import (
	"sync"

	"github.com/jchampio/libpq-test-harness/framework"
	"github.com/jchampio/libpq-test-harness/harness"
)

// Client drives one test's connections through the native driver. Every
// handle it hands out is registered with an internal ResourceStack, so a
// single Close at test teardown releases connections and results in reverse
// order of creation no matter how the test exited.
type Client struct {
	driver Driver
	budget *harness.TimeoutBudget
	logger framework.Logger
	stack  *harness.ResourceStack
}

// NewClient wraps a driver for one test scope.
func NewClient(driver Driver, budget *harness.TimeoutBudget, logger framework.Logger) *Client {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Client{
		driver: driver,
		budget: budget,
		logger: logger,
		stack:  harness.NewResourceStack(logger),
	}
}

// Connect opens a connection with the given parameters. Unless the caller
// supplies an explicit connect_timeout, one is derived from the remaining
// timeout budget (coerced to an integer of at least one second). On failure
// the partially constructed handle is still scheduled for release; nothing
// leaks on the error path.
func (c *Client) Connect(params Params) (*Conn, error) {
	if _, ok := params["connect_timeout"]; !ok {
		seconds := int(c.budget.Remaining().Seconds())
		if seconds < 1 {
			seconds = 1
		}
		params = params.Merge(Params{"connect_timeout": seconds})
	}

	conninfo := params.ConnString()
	c.logger.Printf("connecting: %s", conninfo)

	conn := &Conn{owner: c, raw: c.driver.ConnectDB(conninfo)}

	// Register the release before checking the status, so that a failed
	// connection handle is closed at teardown too.
	c.stack.Push("connection handle", conn.release)

	if status := conn.raw.Status(); status != ConnStatusOK {
		return nil, &ConnectionError{Message: conn.raw.ErrorMessage()}
	}
	return conn, nil
}

// Close releases every handle created through this client, most recent first.
func (c *Client) Close() error {
	return c.stack.ReleaseAll()
}

// Conn wraps a native connection handle.
type Conn struct {
	owner    *Client
	raw      RawConn
	finished sync.Once
}

// Exec sends a simple query and returns its result. The result is scoped to
// the client's stack and released when the stack unwinds, or explicitly via
// Result.Clear, whichever happens first.
func (conn *Conn) Exec(query string) (*Result, error) {
	raw := conn.raw.Exec(query)
	if raw == nil {
		return nil, &QueryError{Message: conn.raw.ErrorMessage()}
	}
	res := &Result{raw: raw}
	conn.owner.stack.Push("query result", res.release)
	return res, nil
}

// Finish releases the native handle early. The scheduled teardown release
// becomes a no-op; the handle is never released twice.
func (conn *Conn) Finish() {
	_ = conn.release()
}

func (conn *Conn) release() error {
	conn.finished.Do(func() {
		conn.raw.Finish()
	})
	return nil
}

// Result wraps a native result handle.
type Result struct {
	raw     RawResult
	cleared sync.Once
}

// Status returns the native result status.
func (r *Result) Status() ResultStatus {
	return r.raw.Status()
}

// Clear releases the native result early; the scheduled teardown release
// becomes a no-op.
func (r *Result) Clear() {
	_ = r.release()
}

func (r *Result) release() error {
	r.cleared.Do(func() {
		r.raw.Clear()
	})
	return nil
}
