package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLocked means another live process holds the build lock.
var ErrLocked = errors.New("index build already running")

// LockStaleAfter is how long a lock may go without a heartbeat before it is
// treated as abandoned, even when its pid belongs to a live process.
const LockStaleAfter = 10 * time.Minute

// Lock is a pid file next to the index directory. It keeps two builders from
// overwriting the same index and lets readers see a rebuild in progress.
// The holder refreshes the file mtime with Touch so a pid reused after a
// crash does not keep the lock alive.
type Lock struct {
	path string
}

// LockPath returns the lock file used for an index directory.
func LockPath(indexPath string) string {
	return strings.TrimRight(indexPath, `/\`) + ".lock"
}

func NewLock(indexPath string) *Lock {
	return &Lock{path: LockPath(indexPath)}
}

// isProcessRunning is implemented in platform-specific files:
// - process_unix.go for Unix/Linux/macOS
// - process_windows.go for Windows

// Acquire takes the lock or fails with ErrLocked. Locks left by dead
// processes are removed first.
func (l *Lock) Acquire() error {
	ourPID := os.Getpid()
	pid, err := l.owner()
	switch {
	case err == nil && pid == ourPID:
		return nil
	case err == nil && l.live(pid):
		return fmt.Errorf("%w (pid %d holds %s)", ErrLocked, pid, l.path)
	case err == nil || errors.Is(err, errCorruptLock):
		log.Printf("Stale lock detected at %s, cleaning...", l.path)
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale lock: %w", err)
		}
	case !os.IsNotExist(err):
		return err
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w (lock %s created concurrently)", ErrLocked, l.path)
		}
		return fmt.Errorf("create lock file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(strconv.Itoa(ourPID)); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	log.Printf("✓ Index lock acquired (PID %d)", ourPID)
	return nil
}

// Release removes the lock if this process owns it.
func (l *Lock) Release() error {
	pid, err := l.owner()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if !errors.Is(err, errCorruptLock) {
			return err
		}
	} else if pid != os.Getpid() {
		log.Printf("Warning: Lock file contains different PID (%d vs %d), not removing", pid, os.Getpid())
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	log.Printf("✓ Index lock released")
	return nil
}

// Held reports whether a live process other than this one holds the lock.
func (l *Lock) Held() bool {
	pid, err := l.owner()
	return err == nil && pid != os.Getpid() && l.live(pid)
}

// Touch refreshes the heartbeat of a lock this process holds.
func (l *Lock) Touch() error {
	now := time.Now()
	return os.Chtimes(l.path, now, now)
}

// Heartbeat calls Touch every interval until ctx is done.
func (l *Lock) Heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Touch(); err != nil && !os.IsNotExist(err) {
				log.Printf("Warning: refresh index lock: %v", err)
			}
		}
	}
}

// live reports whether pid is running and the lock was refreshed recently.
func (l *Lock) live(pid int) bool {
	if !isProcessRunning(pid) {
		return false
	}
	info, err := os.Stat(l.path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < LockStaleAfter
}

var errCorruptLock = errors.New("corrupted lock file")

func (l *Lock) owner() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, errCorruptLock
	}
	return pid, nil
}
