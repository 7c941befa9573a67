// Package framework contains the low-level implementation of test harness
// infrastructure that is not specific to what is being tested. The base
// package contains shared types such as Logger and Capabilities; other
// components are in the subpackages helpers, opt, and pqtest.
//
// The general model is:
//
// 1. The test harness drives a client library, reached through a small
// opaque driver boundary, against mock servers that it scripts itself.
//
// 2. Each piece of test logic runs in a test scope that is similar to Go's
// testing.T, accumulating success/failure results and guaranteeing cleanup.
//
// 3. The domain-specific code that knows what is being tested lives in the
// harness, mockpg, pqclient, and harnesstests packages.
package framework
