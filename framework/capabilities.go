package framework

import "strings"

// Capabilities is a list of strings naming optional features of the test
// environment. For this harness they come from the PG_TEST_EXTRA environment
// variable, which gates whole groups of tests (for instance "ssl" enables the
// suites that open TCP sockets and perform TLS handshakes).
type Capabilities []string

// Has returns true if the specified string appears in the list.
func (cs Capabilities) Has(name string) bool {
	for _, c := range cs {
		if c == name {
			return true
		}
	}
	return false
}

// ParseExtras splits a PG_TEST_EXTRA-style value (whitespace-separated
// keywords) into a Capabilities list.
func ParseExtras(value string) Capabilities {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil
	}
	return Capabilities(fields)
}
