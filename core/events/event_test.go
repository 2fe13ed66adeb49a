package events

import (
	"testing"

	"rwavault/core/types"
)

type testEvent struct{ name string }

func (e testEvent) EventType() string { return e.name }

func (e testEvent) Event() *types.Event {
	return &types.Event{Type: e.name, Attributes: map[string]string{"k": "v"}}
}

type recorder struct{ seen []string }

func (r *recorder) Emit(evt Event) { r.seen = append(r.seen, evt.EventType()) }

func TestBufferFlushPreservesOrder(t *testing.T) {
	var buf Buffer
	buf.Emit(testEvent{"a"})
	buf.Emit(nil)
	buf.Emit(testEvent{"b"})
	if buf.Len() != 2 {
		t.Fatalf("expected 2 pending events, got %d", buf.Len())
	}
	rec := &recorder{}
	buf.Flush(rec)
	if len(rec.seen) != 2 || rec.seen[0] != "a" || rec.seen[1] != "b" {
		t.Fatalf("unexpected flush order %v", rec.seen)
	}
	if buf.Len() != 0 {
		t.Fatalf("buffer should be empty after flush")
	}
}

func TestBufferResetDropsEvents(t *testing.T) {
	var buf Buffer
	buf.Emit(testEvent{"a"})
	buf.Reset()
	rec := &recorder{}
	buf.Flush(rec)
	if len(rec.seen) != 0 {
		t.Fatalf("reset buffer leaked events: %v", rec.seen)
	}
}

func TestFanoutAndPayload(t *testing.T) {
	r1, r2 := &recorder{}, &recorder{}
	Fanout{r1, nil, r2}.Emit(testEvent{"x"})
	if len(r1.seen) != 1 || len(r2.seen) != 1 {
		t.Fatalf("fanout did not reach all emitters")
	}
	if p := Payload(testEvent{"x"}); p == nil || p.Attr("k") != "v" {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestBroadcasterDropsForSlowSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(1)
	if b.Subscribers() != 1 {
		t.Fatalf("expected one subscriber")
	}
	b.Emit(testEvent{"first"})
	b.Emit(testEvent{"second"})
	evt := <-ch
	if evt.EventType() != "first" {
		t.Fatalf("expected first event, got %s", evt.EventType())
	}
	cancel()
	cancel()
	if b.Subscribers() != 0 {
		t.Fatalf("expected subscriber removed")
	}
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after cancel")
	}
	b.Emit(testEvent{"after"})
}
