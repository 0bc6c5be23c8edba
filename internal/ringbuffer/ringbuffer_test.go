package ringbuffer

import (
	"testing"
	"time"
)

func TestTryWriteAndReadN(t *testing.T) {
	r := New[int](4)
	if r.Cap() != 4 {
		t.Fatalf("Cap() = %d, want 4", r.Cap())
	}
	for i := 0; i < 4; i++ {
		if !r.TryWrite(i) {
			t.Fatalf("TryWrite(%d) failed unexpectedly", i)
		}
	}
	if r.TryWrite(99) {
		t.Fatal("TryWrite should fail on a full buffer")
	}
	got := r.ReadN(4)
	for i, v := range got {
		if v != i {
			t.Errorf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestCapRoundsUpToPowerOfTwo(t *testing.T) {
	r := New[byte](5)
	if r.Cap() != 8 {
		t.Fatalf("Cap() = %d, want 8", r.Cap())
	}
}

func TestWriteBlocksUntilRoom(t *testing.T) {
	r := New[int](2)
	r.Write(1)
	r.Write(2)

	done := make(chan struct{})
	go func() {
		r.Write(3)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Write should have blocked on a full buffer")
	case <-time.After(20 * time.Millisecond):
	}

	r.ReadN(1)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Write did not unblock after a read freed space")
	}
}

func TestFlush(t *testing.T) {
	r := New[int](4)
	r.TryWrite(1)
	r.TryWrite(2)
	r.Flush()
	if r.Available() != 0 {
		t.Fatalf("Available() = %d after Flush, want 0", r.Available())
	}
	if !r.TryWrite(3) {
		t.Fatal("TryWrite after Flush should succeed")
	}
}
