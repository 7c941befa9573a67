package harnesstests

import (
	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
	"github.com/stretchr/testify/require"

	"github.com/jchampio/libpq-test-harness/framework/pqtest"
	"github.com/jchampio/libpq-test-harness/mockpg"
	"github.com/jchampio/libpq-test-harness/pqclient"
)

func doConnectionTests(t *pqtest.T) {
	t.Run("empty query round trip", testEmptyQueryRoundTrip)
	t.Run("empty query round trip over TCP", testEmptyQueryRoundTripTCP)
	t.Run("server error during startup", testServerStartupError)
	t.Run("unknown connection option is rejected", testUnknownOptionRejected)
}

// The full litany of a successful session, over a UNIX-domain socket: the
// client connects, runs an empty query, observes the empty-query result
// status, and terminates cleanly. The mock server's script asserts the shape
// of every client message; any deviation surfaces when its worker is joined
// at teardown.
func testEmptyQueryRoundTrip(t *pqtest.T) {
	s := newScenario(t)
	runEmptyQueryRoundTrip(t, s, nil)
}

func testEmptyQueryRoundTripTCP(t *pqtest.T) {
	s := newScenario(t, mockpg.ListenTCP())
	runEmptyQueryRoundTrip(t, s, nil)
}

func runEmptyQueryRoundTrip(t *pqtest.T, s *scenario, extra pqclient.Params) {
	t.Helper()
	s.server.Background(mockpg.ServeEmptyQuerySession())

	conn, err := s.client.Connect(s.connParams(extra))
	require.NoError(t, err)

	res, err := conn.Exec("")
	require.NoError(t, err)
	m.In(t).Assert(res.Status(), m.Equal(pqclient.ResultEmptyQuery))
	res.Clear()

	// Finish explicitly so the server's Terminate-then-close assertions run
	// inside the test rather than at teardown.
	conn.Finish()
}

func testServerStartupError(t *pqtest.T) {
	const message = "pg_hba.conf rejects connection for host"

	s := newScenario(t)
	s.server.Background(mockpg.ServeStartupError(message))

	_, err := s.client.Connect(s.connParams(nil))
	require.Error(t, err)
	m.In(t).Assert(err.Error(), m.StringContains(message))
}

func testUnknownOptionRejected(t *pqtest.T) {
	s := newScenario(t)

	// No Background call: the client must fail before ever reaching the
	// listening socket.
	_, err := s.client.Connect(s.connParams(pqclient.Params{
		"some_unknown_option": "value",
	}))
	require.Error(t, err)
	m.In(t).Assert(err.Error(), m.StringContains("invalid connection option"))
}
