package pqtest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePackageAndFunctionName(t *testing.T) {
	pkg, fn := parsePackageAndFunctionName("github.com/jchampio/libpq-test-harness/framework/pqtest.(*T).run")
	assert.Equal(t, "github.com/jchampio/libpq-test-harness/framework/pqtest", pkg)
	assert.Equal(t, "(*T).run", fn)

	pkg, fn = parsePackageAndFunctionName("main.main")
	assert.Equal(t, "main", pkg)
	assert.Equal(t, "main", fn)
}

func TestGetStacktraceStartsAtCaller(t *testing.T) {
	stack := getStacktrace(true, nil)
	require.NotEmpty(t, stack)
	assert.Equal(t, currentPackageName(), stack[0].Package)
	assert.Contains(t, stack[0].Function, "TestGetStacktraceStartsAtCaller")
}

func TestTransformErrorStripsTestifyTrace(t *testing.T) {
	raw := errors.New("\n\tError Trace:\tserver.go:10\n\tError:      \texpected a FramingError")
	err := transformError(raw, nil)
	assert.Equal(t, "expected a FramingError", err.Error())
}

func TestTransformErrorAttachesStacktrace(t *testing.T) {
	stacktrace := []StacktraceInfo{{FileName: "connection.go", Package: "p", Function: "f", Line: 12}}
	err := transformError(errors.New("boom"), stacktrace)

	var withStack ErrorWithStacktrace
	require.True(t, errors.As(err, &withStack))
	assert.Equal(t, "boom", withStack.Message)
	assert.Equal(t, stacktrace, withStack.Stacktrace)
}

func TestReformatErrorPassesThroughPlainErrors(t *testing.T) {
	assert.Nil(t, reformatError(nil))

	plain := errors.New("timed out: accepting a client connection")
	assert.Equal(t, plain, reformatError(plain))
}

func TestReformatErrorPutsMessageFirst(t *testing.T) {
	raw := errors.New("\n\tError Trace:\tserver.go:10\n\t\t\t\tconnection.go:20\n" +
		"\tError:      \tsomething bad happened")
	out := reformatError(raw).Error()

	lines := strings.Split(out, "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "something bad happened", lines[0])
	assert.Contains(t, out, "Error trace:")
	assert.Contains(t, out, "server.go:10")
	assert.Contains(t, out, "connection.go:20")
}
