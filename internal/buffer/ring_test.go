package buffer

import (
	"fmt"
	"testing"
)

func TestRingBuffer_EvictsOldest(t *testing.T) {
	ring := NewRingBuffer[string](2)

	ring.Put("req1", "A")
	ring.Put("req2", "B")
	ring.Put("req3", "C")

	if _, ok := ring.Get("req1"); ok {
		t.Error("Get(req1) should be not found after eviction")
	}
	if v, ok := ring.Get("req2"); !ok || v != "B" {
		t.Errorf("Get(req2) = %q, %v; want B, true", v, ok)
	}
	if v, ok := ring.Get("req3"); !ok || v != "C" {
		t.Errorf("Get(req3) = %q, %v; want C, true", v, ok)
	}
}

func TestRingBuffer_LastKRetained(t *testing.T) {
	tests := []struct {
		capacity int
		extra    int
	}{
		{1, 1},
		{2, 5},
		{10, 1},
		{10, 25},
		{500, 3},
	}

	for _, tt := range tests {
		ring := NewRingBuffer[int](tt.capacity)
		total := tt.capacity + tt.extra
		for i := 0; i < total; i++ {
			ring.Put(fmt.Sprintf("k%d", i), i)
		}

		for i := 0; i < total; i++ {
			v, ok := ring.Get(fmt.Sprintf("k%d", i))
			if i < tt.extra {
				if ok {
					t.Errorf("cap=%d extra=%d: k%d should be evicted", tt.capacity, tt.extra, i)
				}
				continue
			}
			if !ok || v != i {
				t.Errorf("cap=%d extra=%d: Get(k%d) = %d, %v; want %d, true", tt.capacity, tt.extra, i, v, ok, i)
			}
		}

		if ring.Len() != tt.capacity {
			t.Errorf("Len() = %d, want %d", ring.Len(), tt.capacity)
		}
	}
}

func TestRingBuffer_DuplicateKey(t *testing.T) {
	ring := NewRingBuffer[string](2)

	ring.Put("a", "first")
	ring.Put("a", "second")
	if v, _ := ring.Get("a"); v != "second" {
		t.Errorf("Get(a) = %q, want second", v)
	}

	// Evicts the first "a" slot; the newer one must survive.
	ring.Put("b", "B")
	if v, ok := ring.Get("a"); !ok || v != "second" {
		t.Errorf("Get(a) = %q, %v; want second, true", v, ok)
	}
}

func TestRingBuffer_AddAndValues(t *testing.T) {
	ring := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		ring.Add(i)
	}

	got := ring.Values()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Values()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRingBuffer_Resize(t *testing.T) {
	ring := NewRingBuffer[int](4)
	for i := 0; i < 4; i++ {
		ring.Put(fmt.Sprintf("k%d", i), i)
	}

	ring.Resize(2)
	if ring.Cap() != 2 {
		t.Errorf("Cap() = %d, want 2", ring.Cap())
	}
	if _, ok := ring.Get("k1"); ok {
		t.Error("k1 should be dropped by shrink")
	}
	if v, ok := ring.Get("k3"); !ok || v != 3 {
		t.Errorf("Get(k3) = %d, %v; want 3, true", v, ok)
	}

	ring.Resize(3)
	ring.Put("k4", 4)
	got := ring.Values()
	want := []int{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Values() = %v, want %v", got, want)
		}
	}
}

func TestNewRingBuffer_MinCapacity(t *testing.T) {
	ring := NewRingBuffer[int](0)
	if ring.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", ring.Cap())
	}
}
