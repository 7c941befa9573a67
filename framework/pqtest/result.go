package pqtest

import (
	"fmt"
	"strings"
)

// Results accumulates the outcome of an entire test run.
type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

// TestResult is the outcome of a single test scope.
type TestResult struct {
	TestID TestID
	Failed bool
	Errors []error
}

// OK returns true if no test failed.
func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// TestID is the path of a test scope: each Run nesting level appends one
// component.
type TestID []string

func (t TestID) String() string {
	return strings.Join(t, "/")
}

// Plus returns a copy of the ID with one more component appended.
func (t TestID) Plus(name string) TestID {
	return append(append(TestID(nil), t...), name)
}

// TestFailure pairs a test ID with one of its errors, for summary output.
type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}
