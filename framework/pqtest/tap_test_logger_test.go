package pqtest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTAPTestLoggerOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.tap")
	logger := NewTAPTestLogger(path)

	passID := TestID{"connection", "empty query round trip"}
	failID := TestID{"connection", "server error during startup"}
	skipID := TestID{"ssl", "verify-full"}

	logger.TestStarted(passID)
	logger.TestFinished(passID, TestResult{TestID: passID}, nil)

	logger.TestStarted(failID)
	logger.TestError(failID, errors.New("expected an error mentioning the message\nsecond line"))
	logger.TestFinished(failID, TestResult{TestID: failID, Failed: true}, nil)

	logger.TestSkipped(skipID, `requires "ssl" to be set in PG_TEST_EXTRA`)

	require.NoError(t, logger.EndLog(Results{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	expected := "ok 1 - connection/empty query round trip\n" +
		"not ok 2 - connection/server error during startup\n" +
		"# expected an error mentioning the message\n" +
		"# second line\n" +
		"ok 3 - ssl/verify-full # skip requires \"ssl\" to be set in PG_TEST_EXTRA\n" +
		"1..3\n"
	assert.Equal(t, expected, string(data))
}

func TestTAPTestLoggerEndsExactlyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.tap")
	logger := NewTAPTestLogger(path)

	id := TestID{"a"}
	logger.TestFinished(id, TestResult{TestID: id}, nil)
	require.NoError(t, logger.EndLog(Results{}))
	require.NoError(t, logger.EndLog(Results{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ok 1 - a\n1..1\n", string(data))
}
