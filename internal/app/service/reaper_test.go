package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yunhaishang/Mallorn-sub002/tests/testutil"
	"github.com/yunhaishang/Mallorn-sub002/tests/testutil/mocks"
)

func TestReaper_Sweep(t *testing.T) {
	t.Run("purges expired credentials", func(t *testing.T) {
		repo := mocks.NewCredentialRepository()
		principalID := uuid.New()
		repo.Seed(
			testutil.Fixtures.ExpiredCredential(principalID),
			testutil.Fixtures.ExpiredCredential(principalID),
			testutil.Fixtures.Credential(principalID),
		)

		reaper := NewReaper(repo, ReaperConfig{Interval: time.Hour, Retention: 30 * time.Minute}, nil)

		purged := reaper.Sweep(context.Background())
		if purged != 2 {
			t.Errorf("purged = %d, want 2", purged)
		}
		if repo.Calls.DeleteExpired != 1 {
			t.Errorf("DeleteExpired calls = %d, want 1", repo.Calls.DeleteExpired)
		}
	})

	t.Run("failure logs and continues", func(t *testing.T) {
		repo := mocks.NewCredentialRepository()
		repo.Errors.DeleteExpired = errors.New("db down")

		reaper := NewReaper(repo, DefaultReaperConfig(), nil)

		if purged := reaper.Sweep(context.Background()); purged != 0 {
			t.Errorf("purged = %d, want 0", purged)
		}

		// A later sweep proceeds normally.
		repo.Errors.DeleteExpired = nil
		reaper.Sweep(context.Background())
		if repo.Calls.DeleteExpired != 2 {
			t.Errorf("DeleteExpired calls = %d, want 2", repo.Calls.DeleteExpired)
		}
	})

	t.Run("concurrent sweeps never overlap", func(t *testing.T) {
		repo := mocks.NewCredentialRepository()
		reaper := NewReaper(repo, DefaultReaperConfig(), nil)

		// Hold the running flag to simulate a sweep in flight.
		if !reaper.running.CompareAndSwap(false, true) {
			t.Fatal("failed to acquire running flag")
		}

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				reaper.Sweep(context.Background())
			}()
		}
		wg.Wait()

		if repo.Calls.DeleteExpired != 0 {
			t.Errorf("DeleteExpired calls = %d during in-flight sweep, want 0", repo.Calls.DeleteExpired)
		}

		reaper.running.Store(false)
		reaper.Sweep(context.Background())
		if repo.Calls.DeleteExpired != 1 {
			t.Errorf("DeleteExpired calls = %d, want 1", repo.Calls.DeleteExpired)
		}
	})
}

func TestReaper_RunStopsOnCancel(t *testing.T) {
	repo := mocks.NewCredentialRepository()
	reaper := NewReaper(repo, ReaperConfig{Interval: 5 * time.Millisecond, Retention: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	// Let a few ticks land, then stop.
	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancellation")
	}

	if repo.Calls.DeleteExpired == 0 {
		t.Error("expected at least one sweep before cancellation")
	}
}
