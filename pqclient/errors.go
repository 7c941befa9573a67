package pqclient

import "strings"

// ConnectionError wraps the native error text reported when a connection
// attempt ends with a non-OK status.
type ConnectionError struct {
	Message string
}

func (e *ConnectionError) Error() string {
	return "connection failed: " + strings.TrimRight(e.Message, "\n")
}

// QueryError wraps the native error text reported when a query execution
// fails outright.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string {
	return "query failed: " + strings.TrimRight(e.Message, "\n")
}
