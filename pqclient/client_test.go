package pqclient

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchampio/libpq-test-harness/harness"
)

type fakeDriver struct {
	status ConnStatus
	errMsg string
	noExec bool
	conns  []*fakeConn
}

func (d *fakeDriver) ConnectDB(conninfo string) RawConn {
	conn := &fakeConn{
		conninfo: conninfo,
		status:   d.status,
		errMsg:   d.errMsg,
		noExec:   d.noExec,
	}
	d.conns = append(d.conns, conn)
	return conn
}

type fakeConn struct {
	conninfo    string
	status      ConnStatus
	errMsg      string
	noExec      bool
	queries     []string
	results     []*fakeResult
	finishCount int
}

func (c *fakeConn) Status() ConnStatus { return c.status }

func (c *fakeConn) Exec(query string) RawResult {
	c.queries = append(c.queries, query)
	if c.noExec {
		return nil
	}
	res := &fakeResult{status: ResultEmptyQuery}
	c.results = append(c.results, res)
	return res
}

func (c *fakeConn) ErrorMessage() string { return c.errMsg }

func (c *fakeConn) Finish() { c.finishCount++ }

type fakeResult struct {
	status     ResultStatus
	clearCount int
}

func (r *fakeResult) Status() ResultStatus { return r.status }

func (r *fakeResult) Clear() { r.clearCount++ }

func newTestClient(driver Driver) *Client {
	return NewClient(driver, harness.NewTimeoutBudget(30*time.Second), nil)
}

func connTimeoutFromConnString(t *testing.T, conninfo string) int {
	t.Helper()
	for _, setting := range strings.Fields(conninfo) {
		if value, ok := strings.CutPrefix(setting, "connect_timeout="); ok {
			seconds, err := strconv.Atoi(value)
			require.NoError(t, err)
			return seconds
		}
	}
	t.Fatalf("no connect_timeout in %q", conninfo)
	return 0
}

func TestConnectDerivesConnectTimeoutFromBudget(t *testing.T) {
	driver := &fakeDriver{}
	client := newTestClient(driver)
	defer func() { _ = client.Close() }()

	_, err := client.Connect(Params{"host": "/tmp"})
	require.NoError(t, err)

	require.Len(t, driver.conns, 1)
	seconds := connTimeoutFromConnString(t, driver.conns[0].conninfo)
	assert.GreaterOrEqual(t, seconds, 1)
	assert.LessOrEqual(t, seconds, 30)
}

func TestConnectDerivedTimeoutIsAtLeastOneSecond(t *testing.T) {
	driver := &fakeDriver{}
	client := NewClient(driver, harness.NewTimeoutBudget(0), nil)
	defer func() { _ = client.Close() }()

	_, err := client.Connect(Params{"host": "/tmp"})
	require.NoError(t, err)

	require.Len(t, driver.conns, 1)
	assert.Equal(t, 1, connTimeoutFromConnString(t, driver.conns[0].conninfo))
}

func TestConnectKeepsExplicitConnectTimeout(t *testing.T) {
	driver := &fakeDriver{}
	client := newTestClient(driver)
	defer func() { _ = client.Close() }()

	_, err := client.Connect(Params{"host": "/tmp", "connect_timeout": 5})
	require.NoError(t, err)

	require.Len(t, driver.conns, 1)
	assert.Equal(t, 5, connTimeoutFromConnString(t, driver.conns[0].conninfo))
}

func TestConnectFailureStillReleasesHandle(t *testing.T) {
	driver := &fakeDriver{
		status: ConnStatus(1),
		errMsg: "no pg_hba.conf entry for host\n",
	}
	client := newTestClient(driver)

	_, err := client.Connect(Params{"host": "/tmp"})
	require.Error(t, err)

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Contains(t, connErr.Error(), "no pg_hba.conf entry for host")
	assert.NotContains(t, connErr.Error(), "\n")

	require.NoError(t, client.Close())
	require.Len(t, driver.conns, 1)
	assert.Equal(t, 1, driver.conns[0].finishCount)
}

func TestExecReturnsScopedResult(t *testing.T) {
	driver := &fakeDriver{}
	client := newTestClient(driver)

	conn, err := client.Connect(Params{"host": "/tmp"})
	require.NoError(t, err)

	res, err := conn.Exec("")
	require.NoError(t, err)
	assert.Equal(t, ResultEmptyQuery, res.Status())
	assert.Equal(t, []string{""}, driver.conns[0].queries)

	require.NoError(t, client.Close())
	require.Len(t, driver.conns[0].results, 1)
	assert.Equal(t, 1, driver.conns[0].results[0].clearCount)
	assert.Equal(t, 1, driver.conns[0].finishCount)
}

func TestExecFailureWrapsErrorText(t *testing.T) {
	driver := &fakeDriver{
		noExec: true,
		errMsg: "server closed the connection unexpectedly",
	}
	client := newTestClient(driver)
	defer func() { _ = client.Close() }()

	conn, err := client.Connect(Params{"host": "/tmp"})
	require.NoError(t, err)

	_, err = conn.Exec("SELECT 1")
	var queryErr *QueryError
	require.True(t, errors.As(err, &queryErr))
	assert.Contains(t, queryErr.Error(), "server closed the connection unexpectedly")
}

func TestHandlesAreReleasedExactlyOnce(t *testing.T) {
	driver := &fakeDriver{}
	client := newTestClient(driver)

	conn, err := client.Connect(Params{"host": "/tmp"})
	require.NoError(t, err)

	res, err := conn.Exec("")
	require.NoError(t, err)

	// Explicit release first, then the stack unwinds; neither the result nor
	// the connection may be released a second time.
	res.Clear()
	conn.Finish()
	require.NoError(t, client.Close())

	assert.Equal(t, 1, driver.conns[0].results[0].clearCount)
	assert.Equal(t, 1, driver.conns[0].finishCount)
}

func TestCloseReleasesEveryHandle(t *testing.T) {
	driver := &fakeDriver{}
	client := newTestClient(driver)

	conn1, err := client.Connect(Params{"host": "/tmp"})
	require.NoError(t, err)
	_, err = conn1.Exec("")
	require.NoError(t, err)

	_, err = client.Connect(Params{"host": "/tmp"})
	require.NoError(t, err)

	require.NoError(t, client.Close())
	for _, conn := range driver.conns {
		assert.Equal(t, 1, conn.finishCount)
		for _, res := range conn.results {
			assert.Equal(t, 1, res.clearCount)
		}
	}
}
