package harness

import "fmt"

// TimeoutError indicates that a blocking operation exceeded its share of the
// test's TimeoutBudget. Timeouts are defects to report, not transient
// conditions; nothing in the harness retries after one.
type TimeoutError struct {
	Operation string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out: %s", e.Operation)
}

// ConfigurationError describes a bad or missing piece of environment
// configuration. These never fail a test run; the harness logs the error and
// falls back to a default.
type ConfigurationError struct {
	Setting string
	Detail  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid setting %s: %s", e.Setting, e.Detail)
}
