// Package harness implements the core of the libpq test harness: per-test
// timeout budgeting, ordered resource cleanup, environment configuration, and
// the ephemeral certificates used for TLS scenarios.
package harness

import (
	"sync"

	"github.com/jchampio/libpq-test-harness/framework"
)

// TestHarness owns the run-wide state shared by every test: the loaded
// configuration and the lazily generated certificate chain. It contains no
// knowledge of individual test scenarios.
type TestHarness struct {
	config Config
	logger framework.Logger
	stack  *ResourceStack

	certsOnce sync.Once
	certs     *Certificates
	certsErr  error
}

// NewTestHarness creates a harness from a loaded configuration. Close must be
// called at the end of the run to remove any run-wide resources.
func NewTestHarness(config Config, logger framework.Logger) *TestHarness {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &TestHarness{
		config: config,
		logger: logger,
		stack:  NewResourceStack(logger),
	}
}

// Config returns the loaded run configuration.
func (h *TestHarness) Config() Config { return h.config }

// Logger returns the harness-level logger.
func (h *TestHarness) Logger() framework.Logger { return h.logger }

// NewBudget starts a fresh TimeoutBudget for one test, using the configured
// default timeout.
func (h *TestHarness) NewBudget() *TimeoutBudget {
	return NewTimeoutBudget(h.config.TimeoutDefault)
}

// Certificates returns the run-wide ephemeral certificate chain, generating
// it on first use. The PEM files live until Close.
func (h *TestHarness) Certificates() (*Certificates, error) {
	h.certsOnce.Do(func() {
		h.certs, h.certsErr = GenerateCertificates(h.stack)
	})
	return h.certs, h.certsErr
}

// Close releases all run-wide resources.
func (h *TestHarness) Close() error {
	return h.stack.ReleaseAll()
}
