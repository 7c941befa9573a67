package harnesstests

import (
	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
	"github.com/stretchr/testify/require"

	"github.com/jchampio/libpq-test-harness/framework/pqtest"
	"github.com/jchampio/libpq-test-harness/mockpg"
	"github.com/jchampio/libpq-test-harness/pqclient"
)

func doSSLTests(t *pqtest.T) {
	t.RequireCapability(ExtraSSL)

	t.Run("connect fails when the server refuses SSL", testServerRefusesSSL)
	t.Run("empty query round trip with verify-full", testVerifyFullRoundTrip)
}

// A client asking for sslmode=require against a peer that answers 'N' must
// fail with an error naming the missing SSL support, and must abandon the
// connection without sending a startup packet.
func testServerRefusesSSL(t *pqtest.T) {
	s := newScenario(t, mockpg.ListenTCP())
	s.server.Background(mockpg.RefuseSSL)

	_, err := s.client.Connect(s.connParams(pqclient.Params{
		"sslmode": "require",
	}))
	require.Error(t, err)
	m.In(t).Assert(err.Error(), m.StringContains("does not support SSL"))
}

// The full session again, this time upgraded to TLS before the startup
// packet. verify-full makes the client check the server name against the
// runtime-generated certificate chain, so the host parameter must name the
// certificate's subject even though the TCP connection targets the loopback
// hostaddr.
func testVerifyFullRoundTrip(t *pqtest.T) {
	ctx := requireContext(t)
	certs, err := ctx.Harness().Certificates()
	require.NoError(t, err)

	s := newScenario(t, mockpg.ListenTCP(), mockpg.WithTLS(certs.ServerTLSConfig()))
	s.server.BackgroundTLS(mockpg.ServeEmptyQuerySession())

	conn, err := s.client.Connect(s.connParams(pqclient.Params{
		"host":        certs.ServerHost,
		"sslmode":     "verify-full",
		"sslrootcert": certs.CACertPath(),
	}))
	require.NoError(t, err)

	res, err := conn.Exec("")
	require.NoError(t, err)
	m.In(t).Assert(res.Status(), m.Equal(pqclient.ResultEmptyQuery))

	conn.Finish()
}
