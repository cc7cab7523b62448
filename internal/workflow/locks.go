package workflow

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"racefeed/internal/textutil"
)

// PlatformLocks hands out one advisory file lock per platform so a daemon
// lane and a run-once command never pick candidates concurrently.
type PlatformLocks struct {
	dir string
}

// NewPlatformLocks keeps lock files in dir.
func NewPlatformLocks(dir string) *PlatformLocks {
	return &PlatformLocks{dir: dir}
}

// Path returns the lock file of platform.
func (l *PlatformLocks) Path(platform string) string {
	return filepath.Join(l.dir, "platform-"+textutil.FileToken(platform)+".lock")
}

// TryLock acquires the platform lock without blocking. When ok is false the
// lock is held elsewhere and unlock is nil.
func (l *PlatformLocks) TryLock(platform string) (unlock func() error, ok bool, err error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, false, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(l.Path(platform))
	ok, err = lock.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", platform, err)
	}
	if !ok {
		return nil, false, nil
	}
	return lock.Unlock, true, nil
}
