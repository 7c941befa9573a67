// Package harnesstests contains the scripted scenarios that the harness runs
// against the client library: each test stands up a mock server with a
// handler built from mockpg primitives, then drives the client under test at
// it and asserts on the observable outcome.
package harnesstests

import (
	"github.com/jchampio/libpq-test-harness/framework/pqtest"
	"github.com/jchampio/libpq-test-harness/harness"
	"github.com/jchampio/libpq-test-harness/pqclient"
)

// ExtraSSL is the PG_TEST_EXTRA keyword that enables the suites performing
// TLS negotiation.
const ExtraSSL = "ssl"

func allExtras() []string {
	return []string{ExtraSSL}
}

// HarnessTestContext is the application-defined context attached to every
// test scope in the suite.
type HarnessTestContext struct {
	harness *harness.TestHarness
	driver  pqclient.Driver
}

func (c HarnessTestContext) Harness() *harness.TestHarness { return c.harness }
func (c HarnessTestContext) Driver() pqclient.Driver       { return c.driver }

// RunTestSuite runs all test suites against the given driver.
func RunTestSuite(
	testHarness *harness.TestHarness,
	driver pqclient.Driver,
	filters pqtest.RegexFilters,
	testLogger pqtest.TestLogger,
) pqtest.Results {
	extras := testHarness.Config().Extras
	pqtest.PrintFilterDescription(filters, allExtras(), extras)

	config := pqtest.TestConfiguration{
		Filter:       filters.AsFilter(),
		Capabilities: extras,
		TestLogger:   testLogger,
		Context: HarnessTestContext{
			harness: testHarness,
			driver:  driver,
		},
	}

	return pqtest.Run(config, func(t *pqtest.T) {
		t.Run("connection", doConnectionTests)
		t.Run("ssl", doSSLTests)
	})
}
