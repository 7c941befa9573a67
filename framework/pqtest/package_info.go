// Package pqtest contains a test runner framework that is similar to Go's
// testing package, but runs as regular application code inside the harness
// binary. It adds per-test cleanup with error propagation (so that failures
// captured by background mock servers surface in the owning test), regex
// filtering, capability gating, and pluggable result reporting.
package pqtest
