package distribution

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireLockHonoursContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lck")
	unlock, err := acquireLock(context.Background(), path)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := acquireLock(ctx, path); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected second acquire to time out, got %v", err)
	}
}

func TestAcquireLockTakesOverStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lck")
	if err := os.WriteFile(path, []byte("99999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * staleLockAge)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := acquireLock(ctx, path)
	if err != nil {
		t.Fatalf("expected stale lock to be taken over, got %v", err)
	}
	unlock()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected lock removed on release, got %v", err)
	}
}

func TestHeldLockStaysFresh(t *testing.T) {
	prevAge, prevPoll := staleLockAge, lockPollInterval
	staleLockAge, lockPollInterval = 150*time.Millisecond, 10*time.Millisecond
	t.Cleanup(func() { staleLockAge, lockPollInterval = prevAge, prevPoll })

	path := filepath.Join(t.TempDir(), "x.lck")
	unlock, err := acquireLock(context.Background(), path)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer unlock()

	// Wait past the stale age; the holder keeps the file fresh meanwhile.
	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	if _, err := acquireLock(ctx, path); err == nil {
		t.Fatal("expected a live lock not to be taken over")
	}
}
