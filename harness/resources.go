package harness

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jchampio/libpq-test-harness/framework"
)

// ResourceStack is an ordered collection of release actions for OS and native
// resources. Releases run in strict reverse order of registration, on every
// exit path, and each registered action runs exactly once. Registering more
// resources from within a release function is unsupported.
type ResourceStack struct {
	logger   framework.Logger
	releases []stackEntry
	released bool
	lock     sync.Mutex
}

type stackEntry struct {
	name    string
	release func() error
}

// NewResourceStack creates an empty stack. The logger may be nil.
func NewResourceStack(logger framework.Logger) *ResourceStack {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &ResourceStack{logger: logger}
}

// Push registers a release function to be run during ReleaseAll. The name is
// used only for log and error messages.
func (s *ResourceStack) Push(name string, release func() error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.releases = append(s.releases, stackEntry{name: name, release: release})
}

// Callback is a convenience form of Push for release functions that cannot
// fail.
func (s *ResourceStack) Callback(name string, release func()) {
	s.Push(name, func() error {
		release()
		return nil
	})
}

// ReleaseAll runs every registered release function in LIFO order. A failed
// release does not stop later releases from being attempted; all errors are
// aggregated and returned together, with the first one encountered leading
// the aggregate. Calling ReleaseAll again is a no-op.
func (s *ResourceStack) ReleaseAll() error {
	s.lock.Lock()
	releases := s.releases
	alreadyReleased := s.released
	s.releases = nil
	s.released = true
	s.lock.Unlock()

	if alreadyReleased {
		return nil
	}

	var errs []error
	for i := len(releases) - 1; i >= 0; i-- {
		entry := releases[i]
		if err := entry.release(); err != nil {
			s.logger.Printf("failed to release %s: %s", entry.name, err)
			errs = append(errs, fmt.Errorf("releasing %s: %w", entry.name, err))
		}
	}
	return errors.Join(errs...)
}
