package harnesstests

import (
	"github.com/stretchr/testify/require"

	"github.com/jchampio/libpq-test-harness/framework/pqtest"
	"github.com/jchampio/libpq-test-harness/harness"
	"github.com/jchampio/libpq-test-harness/mockpg"
	"github.com/jchampio/libpq-test-harness/pqclient"
)

func requireContext(t *pqtest.T) HarnessTestContext {
	if ctx, ok := t.Context().(HarnessTestContext); ok {
		return ctx
	}
	require.Fail(t, "test suite was run without a HarnessTestContext")
	t.FailNow()
	return HarnessTestContext{}
}

// scenario bundles the per-test resources every connection test needs: one
// timeout budget shared by both sides, a mock server, and a client wrapper
// around the driver under test. Teardown is registered on the test scope, so
// a failing or timed-out test still joins the server worker and releases
// every client handle.
type scenario struct {
	budget *harness.TimeoutBudget
	server *mockpg.Server
	client *pqclient.Client
}

func newScenario(t *pqtest.T, options ...mockpg.ServerOption) *scenario {
	ctx := requireContext(t)
	budget := ctx.Harness().NewBudget()

	server, err := mockpg.NewServer(budget, t.DebugLogger(), options...)
	require.NoError(t, err)
	t.Defer(server.Close)

	client := pqclient.NewClient(ctx.Driver(), budget, t.DebugLogger())
	t.Defer(client.Close)

	return &scenario{
		budget: budget,
		server: server,
		client: client,
	}
}

// connParams returns the parameters needed to reach the scenario's mock
// server, merged with any test-specific settings.
func (s *scenario) connParams(extra pqclient.Params) pqclient.Params {
	return pqclient.Params(s.server.ConnInfo()).Merge(extra)
}
