package pqtest

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/jchampio/libpq-test-harness/framework"
	"github.com/jchampio/libpq-test-harness/framework/opt"
)

// TAPTestLogger emits Test Anything Protocol output: one "ok"/"not ok" line
// per test, failure details as "#" diagnostic lines, and the plan line at the
// end of the session (the test tree is discovered while running, so the total
// is not known up front). It writes nothing until the first test finishes and
// flushes the plan exactly once, at EndLog.
type TAPTestLogger struct {
	filePath string

	w      io.Writer
	count  int
	errors map[string][]error
	ended  bool
	lock   sync.Mutex
}

// NewTAPTestLogger writes TAP output to the given file path, or to stdout if
// the path is "-".
func NewTAPTestLogger(filePath string) *TAPTestLogger {
	return &TAPTestLogger{
		filePath: filePath,
		errors:   map[string][]error{},
	}
}

func (l *TAPTestLogger) TestStarted(id TestID) {}

func (l *TAPTestLogger) TestError(id TestID, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.errors[id.String()] = append(l.errors[id.String()], err)
}

func (l *TAPTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	if result.Failed {
		l.emit(id, false, opt.None[string]())
	} else {
		l.emit(id, true, opt.None[string]())
	}
}

func (l *TAPTestLogger) TestSkipped(id TestID, reason string) {
	l.emit(id, true, opt.Some(reason))
}

func (l *TAPTestLogger) emit(id TestID, ok bool, skipReason opt.Maybe[string]) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if err := l.open(); err != nil {
		return
	}

	l.count++
	switch {
	case !ok:
		fmt.Fprintf(l.w, "not ok %d - %s\n", l.count, id)
		for _, err := range l.errors[id.String()] {
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Fprintf(l.w, "# %s\n", line)
			}
		}
	case skipReason.IsDefined():
		fmt.Fprintf(l.w, "ok %d - %s # skip %s\n", l.count, id, skipReason.Value())
	default:
		fmt.Fprintf(l.w, "ok %d - %s\n", l.count, id)
	}
	delete(l.errors, id.String())
}

// EndLog writes the trailing plan line and closes the output file.
func (l *TAPTestLogger) EndLog(results Results) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.ended {
		return nil
	}
	l.ended = true

	if err := l.open(); err != nil {
		return err
	}
	fmt.Fprintf(l.w, "1..%d\n", l.count)

	if closer, ok := l.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (l *TAPTestLogger) open() error {
	if l.w != nil {
		return nil
	}
	if l.filePath == "-" {
		l.w = os.Stdout
		return nil
	}
	f, err := os.Create(l.filePath)
	if err != nil {
		return err
	}
	l.w = f
	return nil
}
