package mediarouter

import (
	"testing"

	"github.com/lmig/csserver/pkg/config"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	pool, err := NewPool(map[string]config.FeederConfig{
		"feeder_1": {Stream: "feed1", IP: "127.0.0.1", Port: 9001, Type: "M"},
		"feeder_2": {Stream: "feed2", IP: "127.0.0.1", Port: 9002, Type: "M"},
		"feeder_3": {Stream: "feed3", IP: "127.0.0.1", Port: 9003, Type: "S"},
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return pool
}

func TestPool_ReserveAssignsFreeFeederOfType(t *testing.T) {
	pool := newTestPool(t)

	f, ok := pool.Reserve(100, TypeMono)
	if !ok || f.Type != TypeMono {
		t.Fatalf("expected a free mono feeder, got %v ok=%v", f, ok)
	}

	s, ok := pool.Reserve(200, TypeStereo)
	if !ok || s.Type != TypeStereo {
		t.Fatalf("expected a free stereo feeder, got %v ok=%v", s, ok)
	}
}

func TestPool_ReserveFailsWhenExhausted(t *testing.T) {
	pool := newTestPool(t)

	if _, ok := pool.Reserve(1, TypeMono); !ok {
		t.Fatal("expected first mono reservation to succeed")
	}
	if _, ok := pool.Reserve(2, TypeMono); !ok {
		t.Fatal("expected second mono reservation to succeed")
	}
	if _, ok := pool.Reserve(3, TypeMono); ok {
		t.Fatal("expected third mono reservation to fail, only two mono feeders configured")
	}
}

func TestPool_ReservedForReturnsExistingReservation(t *testing.T) {
	pool := newTestPool(t)
	want, _ := pool.Reserve(42, TypeMono)

	got, ok := pool.ReservedFor(42)
	if !ok || got.Name != want.Name {
		t.Fatalf("expected to find existing reservation for call 42, got %v ok=%v", got, ok)
	}
	if _, ok := pool.ReservedFor(999); ok {
		t.Fatal("expected no reservation for an unreserved call id")
	}
}

func TestPool_ReleaseFreesTheFeederForReuse(t *testing.T) {
	pool := newTestPool(t)
	pool.Reserve(1, TypeMono)
	pool.Reserve(2, TypeMono)

	pool.Release(1)
	if _, ok := pool.Reserve(3, TypeMono); !ok {
		t.Fatal("expected a reservation to succeed after releasing one mono feeder")
	}
}

func TestInterleave_ProducesExpectedByteOrder(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{10, 20, 30}
	got := interleave(a, b)
	want := []byte{1, 10, 2, 20, 3, 30}
	if len(got) != len(want) {
		t.Fatalf("expected %d bytes, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestInterleave_TruncatesToShorterBuffer(t *testing.T) {
	got := interleave([]byte{1, 2, 3}, []byte{10, 20})
	if len(got) != 4 {
		t.Fatalf("expected truncation to the shorter buffer's length, got %d bytes", len(got))
	}
}
