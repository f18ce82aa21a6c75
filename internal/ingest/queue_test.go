package ingest

import "testing"

func TestDropOldestQueueEvictsOldest(t *testing.T) {
	q := NewDropOldestQueue(2)
	q.Push(Frame{SourceTag: "a"})
	q.Push(Frame{SourceTag: "b"})
	q.Push(Frame{SourceTag: "c"}) // should evict "a"

	first := <-q.Frames()
	second := <-q.Frames()
	if first.SourceTag != "b" || second.SourceTag != "c" {
		t.Fatalf("expected b,c after eviction; got %s,%s", first.SourceTag, second.SourceTag)
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped frame, got %d", q.Dropped())
	}
}

func TestDropOldestQueueNoDropUnderCapacity(t *testing.T) {
	q := NewDropOldestQueue(4)
	q.Push(Frame{SourceTag: "a"})
	q.Push(Frame{SourceTag: "b"})
	if q.Dropped() != 0 {
		t.Fatalf("expected no drops, got %d", q.Dropped())
	}
}
