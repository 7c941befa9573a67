// Package pqclient wraps the native client library under test behind a small
// opaque driver boundary, surfacing connection and query failures as
// structured errors and guaranteeing that every handle is released exactly
// once.
package pqclient

// ConnStatus mirrors the native library's connection status codes. Only OK is
// asserted on; everything else is reported through the error text.
type ConnStatus int

// ConnStatusOK is the native CONNECTION_OK value.
const ConnStatusOK ConnStatus = 0

// ResultStatus mirrors the native library's result status codes.
type ResultStatus int

// Result statuses the harness asserts on, matching the native numbering.
const (
	ResultEmptyQuery ResultStatus = 0
	ResultCommandOK  ResultStatus = 1
	ResultTuplesOK   ResultStatus = 2
)

// Driver is the fixed surface the harness calls on the client library:
// open-connection, get-status, execute-query, get-result-status,
// release-result, get-error-text, close-connection. The library is a
// pre-existing native component; the harness never reimplements it.
type Driver interface {
	// ConnectDB opens a connection using a literal connection string. Like
	// the native call, it always returns a handle; failures are reported via
	// the handle's status and error text.
	ConnectDB(conninfo string) RawConn
}

// RawConn is an opaque native connection handle. It is owned exclusively by
// the Conn that wraps it and must never be aliased elsewhere.
type RawConn interface {
	Status() ConnStatus

	// Exec runs a query and returns its result handle, or nil if the call
	// failed outright (the error text explains why).
	Exec(query string) RawResult

	ErrorMessage() string

	// Finish releases the handle. Callers must not use the handle afterward.
	Finish()
}

// RawResult is an opaque native result handle.
type RawResult interface {
	Status() ResultStatus

	// Clear releases the handle.
	Clear()
}

// newDefaultDriver is installed by the build-tagged native binding, if the
// binary was built with one.
var newDefaultDriver func() (Driver, error)

// DefaultDriver returns the native client driver this binary was built with.
func DefaultDriver() (Driver, error) {
	return newDefaultDriver()
}
