package events

import (
	"fmt"
	"testing"
)

func TestPublishAssignsIncreasingSequence(t *testing.T) {
	b := NewBus(10)

	first := b.Publish(Event{Type: TypeEnqueued, JobID: "j1"})
	second := b.Publish(Event{Type: TypeStarted, JobID: "j1"})

	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("seqs = %d, %d, want 1, 2", first.Seq, second.Seq)
	}
	if first.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
}

func TestSinceReturnsOnlyNewerEvents(t *testing.T) {
	b := NewBus(10)
	for i := 0; i < 5; i++ {
		b.Publish(Event{Type: TypeStarted, JobID: fmt.Sprintf("j%d", i)})
	}

	got := b.Since(3)
	if len(got) != 2 {
		t.Fatalf("since(3) = %d events, want 2", len(got))
	}
	if got[0].Seq != 4 || got[1].Seq != 5 {
		t.Fatalf("seqs = %d, %d, want 4, 5", got[0].Seq, got[1].Seq)
	}

	if got := b.Since(5); len(got) != 0 {
		t.Fatalf("since(5) = %d events, want 0", len(got))
	}
}

func TestBusTrimsPastCapacity(t *testing.T) {
	b := NewBus(3)
	for i := 0; i < 7; i++ {
		b.Publish(Event{Type: TypeCompleted})
	}

	got := b.Since(0)
	if len(got) != 3 {
		t.Fatalf("retained %d events, want 3", len(got))
	}
	// Sequence numbers keep counting even though old events are gone.
	if got[0].Seq != 5 || got[2].Seq != 7 {
		t.Fatalf("seqs = %d..%d, want 5..7", got[0].Seq, got[2].Seq)
	}
}
