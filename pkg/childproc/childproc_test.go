package childproc

import (
	"context"
	"testing"
	"time"
)

func TestSupervisor_StartAndNaturalExit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s, err := Start(ctx, "sh", "-c", "exit 0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-s.Done():
		if s.Err() != nil {
			t.Errorf("expected clean exit, got %v", s.Err())
		}
	case <-time.After(time.Second):
		t.Fatal("child did not exit in time")
	}
}

func TestSupervisor_StopOnLongRunningChild(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Start(ctx, "sh", "-c", "read line; exit 0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	start := time.Now()
	s.Stop()
	if time.Since(start) > killGrace {
		t.Errorf("expected Stop to return promptly once stdin read unblocked, took %v", time.Since(start))
	}
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("expected child to have exited after Stop")
	}
}

func TestSupervisor_StopEscalatesToKill(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Start(ctx, "sh", "-c", "trap '' TERM; sleep 30")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(killGrace + 2*time.Second):
		t.Fatal("Stop did not escalate to Kill within the grace window")
	}
}

func TestSupervisor_ErrReflectsNonZeroExit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s, err := Start(ctx, "sh", "-c", "exit 1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-s.Done()
	if s.Err() == nil {
		t.Error("expected a non-nil error for a non-zero exit")
	}
}
