package harnesstests

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchampio/libpq-test-harness/framework"
	"github.com/jchampio/libpq-test-harness/framework/pqtest"
	"github.com/jchampio/libpq-test-harness/harness"
	"github.com/jchampio/libpq-test-harness/pqclient/drivertest"
)

// Runs the whole suite end to end against the scripted wire-speaking driver,
// with every extra enabled. Real sockets, real TLS handshakes.
func TestSuitePassesAgainstScriptedDriver(t *testing.T) {
	config := harness.Config{
		TimeoutDefault: 10 * time.Second,
		Extras:         framework.Capabilities{ExtraSSL},
	}
	testHarness := harness.NewTestHarness(config, nil)
	defer func() { assert.NoError(t, testHarness.Close()) }()

	results := RunTestSuite(testHarness, drivertest.New(), pqtest.RegexFilters{}, nil)
	require.True(t, results.OK(), "unexpected failures: %+v", results.Failures)
	assert.NotEmpty(t, results.Tests)
}

func TestSuiteSkipsSSLGroupWithoutExtra(t *testing.T) {
	config := harness.Config{TimeoutDefault: 10 * time.Second}
	testHarness := harness.NewTestHarness(config, nil)
	defer func() { assert.NoError(t, testHarness.Close()) }()

	results := RunTestSuite(testHarness, drivertest.New(), pqtest.RegexFilters{}, nil)
	require.True(t, results.OK(), "unexpected failures: %+v", results.Failures)

	for _, result := range results.Tests {
		if len(result.TestID) == 0 {
			continue // the root scope
		}
		assert.NotEqual(t, "ssl", result.TestID[0])
	}
}
