package pqtest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jchampio/libpq-test-harness/framework"
)

func TestTestScopeInheritsConfiguration(t *testing.T) {
	myContextValue := "hi"
	myCapabilities := framework.Capabilities{"a", "b"}
	config := TestConfiguration{
		Context:      myContextValue,
		Capabilities: myCapabilities,
	}
	_ = Run(config, func(pt *T) {
		assert.Equal(t, myContextValue, pt.Context())
		assert.Equal(t, myCapabilities, pt.Capabilities())

		pt.Run("subtest", func(pt1 *T) {
			assert.Equal(t, myContextValue, pt1.Context())
			assert.Equal(t, myCapabilities, pt1.Capabilities())
		})
	})
}

func TestTestScopeExitsImmediatelyOnFailNow(t *testing.T) {
	executed1 := false
	executed2 := false
	executed3 := false
	_ = Run(TestConfiguration{}, func(pt *T) {
		pt.Run("", func(pt *T) {
			executed1 = true
			pt.FailNow()
			executed2 = true
		})
		executed3 = true
	})
	assert.True(t, executed1)
	assert.False(t, executed2)
	assert.True(t, executed3)
}

func TestTestScopeExitsImmediatelyOnSkip(t *testing.T) {
	executed1 := false
	executed2 := false
	executed3 := false
	_ = Run(TestConfiguration{}, func(pt *T) {
		pt.Run("", func(pt *T) {
			executed1 = true
			pt.Skip()
			executed2 = true
		})
		executed3 = true
	})
	assert.True(t, executed1)
	assert.False(t, executed2)
	assert.True(t, executed3)
}

func TestTestScopeFailedResult(t *testing.T) {
	result := Run(TestConfiguration{}, func(pt *T) {
		pt.Run("parent", func(pt0 *T) {
			pt0.Run("subtest1", func(pt1 *T) {
				// this test passes
			})
			pt0.Run("subtest2", func(pt2 *T) {
				pt2.Errorf("failed because %s", "reasons")
				pt2.Errorf("and failed some more")
			})
			pt0.Errorf("and parent failed")
		})
	})

	assert.False(t, result.OK())
	assert.Len(t, result.Tests, 4)
	assert.Len(t, result.Failures, 2)

	assert.Equal(t, TestID{"parent", "subtest1"}, result.Tests[0].TestID)
	assert.Len(t, result.Tests[0].Errors, 0)

	assert.Equal(t, TestID{"parent", "subtest2"}, result.Tests[1].TestID)
	assert.Len(t, result.Tests[1].Errors, 2)
	assert.Equal(t, "failed because reasons", result.Tests[1].Errors[0].Error())
	assert.Equal(t, "and failed some more", result.Tests[1].Errors[1].Error())

	assert.Equal(t, TestID{"parent"}, result.Tests[2].TestID)
	assert.Len(t, result.Tests[2].Errors, 1)
	assert.Equal(t, "and parent failed", result.Tests[2].Errors[0].Error())
}

func TestTestScopeSkippedResult(t *testing.T) {
	result := Run(TestConfiguration{}, func(pt *T) {
		pt.Run("parent", func(pt0 *T) {
			pt0.Run("subtest1", func(pt1 *T) {
				pt1.Skip()
			})
			pt0.Run("subtest2", func(pt2 *T) {
				pt2.SkipWithReason("why not")
			})
		})
	})

	assert.True(t, result.OK())
	assert.Len(t, result.Tests, 2)
	assert.Len(t, result.Failures, 0)
}

func TestTestScopeFilter(t *testing.T) {
	filter := Filter(func(id TestID) bool {
		return len(id) == 0 || id[0] == "b"
	})

	result := Run(TestConfiguration{Filter: filter}, func(pt *T) {
		pt.Run("a", func(pt0 *T) {
			pt0.Run("sub1a", func(pt1 *T) {})
		})
		pt.Run("b", func(pt0 *T) {
			pt0.Run("sub1b", func(pt1 *T) {})
		})
	})

	assert.True(t, result.OK())
	assert.Len(t, result.Tests, 3)
	assert.Equal(t, TestID{"b", "sub1b"}, result.Tests[0].TestID)
	assert.Equal(t, TestID{"b"}, result.Tests[1].TestID)
	assert.Equal(t, TestID(nil), result.Tests[2].TestID)
}

func TestTestScopeRunsCleanupsInReverseOrderOnEveryExitPath(t *testing.T) {
	var order []string
	record := func(name string) func() error {
		return func() error {
			order = append(order, name)
			return nil
		}
	}

	_ = Run(TestConfiguration{}, func(pt *T) {
		pt.Run("passes", func(pt0 *T) {
			pt0.Defer(record("pass-1"))
			pt0.Defer(record("pass-2"))
		})
		pt.Run("fails", func(pt0 *T) {
			pt0.Defer(record("fail-1"))
			pt0.Defer(record("fail-2"))
			pt0.FailNow()
		})
		pt.Run("skips", func(pt0 *T) {
			pt0.Defer(record("skip-1"))
			pt0.Skip()
		})
	})

	assert.Equal(t, []string{"pass-2", "pass-1", "fail-2", "fail-1", "skip-1"}, order)
}

func TestTestScopeCleanupFailureFailsTheTest(t *testing.T) {
	cleanupErr := errors.New("the mock server saw a protocol violation")

	result := Run(TestConfiguration{}, func(pt *T) {
		pt.Run("looks fine until teardown", func(pt0 *T) {
			pt0.Defer(func() error { return cleanupErr })
		})
	})

	assert.False(t, result.OK())
	assert.Len(t, result.Failures, 1)
	assert.Equal(t, TestID{"looks fine until teardown"}, result.Failures[0].TestID)
	assert.Len(t, result.Failures[0].Errors, 1)
	assert.Contains(t, result.Failures[0].Errors[0].Error(), "protocol violation")
}

func TestTestScopeCleanupFailureDoesNotFailSkippedTest(t *testing.T) {
	result := Run(TestConfiguration{}, func(pt *T) {
		pt.Run("skipped", func(pt0 *T) {
			pt0.Defer(func() error { return errors.New("ignored") })
			pt0.Skip()
		})
	})
	assert.True(t, result.OK())
}

func TestTestScopeRequireCapability(t *testing.T) {
	ranGated := false
	ranOpen := false

	result := Run(TestConfiguration{Capabilities: framework.Capabilities{"ssl"}}, func(pt *T) {
		pt.Run("needs kerberos", func(pt0 *T) {
			pt0.RequireCapability("kerberos")
			ranGated = true
		})
		pt.Run("needs ssl", func(pt0 *T) {
			pt0.RequireCapability("ssl")
			ranOpen = true
		})
	})

	assert.True(t, result.OK())
	assert.False(t, ranGated)
	assert.True(t, ranOpen)
}

func TestTestScopeRecoversFromUnexpectedPanic(t *testing.T) {
	result := Run(TestConfiguration{}, func(pt *T) {
		pt.Run("panics", func(pt0 *T) {
			panic("boom")
		})
		pt.Run("still runs", func(pt0 *T) {})
	})

	assert.False(t, result.OK())
	assert.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Errors[0].Error(), "boom")
	assert.Len(t, result.Tests, 3)
}

func TestTestScopeDebugOutputIsSharedWithSubtests(t *testing.T) {
	var childOutput framework.CapturedOutput

	logger := testCapturingTestLogger{}
	_ = Run(TestConfiguration{TestLogger: &logger}, func(pt *T) {
		pt.Run("parent", func(pt0 *T) {
			pt0.Debug("before subtest")
			pt0.Run("child", func(pt1 *T) {
				pt1.Debug("inside subtest")
			})
		})
	})

	for _, f := range logger.finished {
		if f.id.String() == "parent/child" {
			childOutput = f.output
		}
	}
	if assert.Len(t, childOutput, 2) {
		assert.Equal(t, "before subtest", childOutput[0].Message)
		assert.Equal(t, "inside subtest", childOutput[1].Message)
	}
}

type finishedTest struct {
	id     TestID
	output framework.CapturedOutput
}

type testCapturingTestLogger struct {
	finished []finishedTest
}

func (l *testCapturingTestLogger) TestStarted(TestID)      {}
func (l *testCapturingTestLogger) TestError(TestID, error) {}
func (l *testCapturingTestLogger) TestFinished(id TestID, result TestResult, output framework.CapturedOutput) {
	l.finished = append(l.finished, finishedTest{id: id, output: output})
}
func (l *testCapturingTestLogger) TestSkipped(TestID, string) {}
func (l *testCapturingTestLogger) EndLog(Results) error       { return nil }
