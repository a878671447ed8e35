package distribution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	lockPollInterval = 100 * time.Millisecond
	// staleLockAge is how long a lock may go untouched before a waiter
	// treats its holder as dead. Holders refresh the file well within it.
	staleLockAge = 2 * time.Minute
)

// acquireLock creates path exclusively, polling until it can or ctx ends.
// A lock file older than staleLockAge is removed and taken over. The
// returned func releases the lock.
func acquireLock(ctx context.Context, path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare lock dir: %w", err)
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			_ = f.Close()
			return holdLock(path), nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if removeStaleLock(path) {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w", path, ctx.Err())
		case <-ticker.C:
		}
	}
}

// holdLock keeps path fresh until the returned release func is called.
func holdLock(path string) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		t := time.NewTicker(staleLockAge / 3)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-t.C:
				_ = os.Chtimes(path, now, now)
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
		_ = os.Remove(path)
	}
}

func removeStaleLock(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		// Released between our attempt and the stat.
		return errors.Is(err, os.ErrNotExist)
	}
	if time.Since(info.ModTime()) < staleLockAge {
		return false
	}
	err = os.Remove(path)
	return err == nil || errors.Is(err, os.ErrNotExist)
}
