package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
}

func (s *recordingSink) Emit(_ context.Context, event Event) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherDelivers(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "recovery.challenge.request"})
	}
	d.Close()

	if sink.count() != 5 {
		t.Fatalf("expected 5 delivered events, got %d", sink.count())
	}
	if d.Dropped() != 0 {
		t.Fatalf("expected no drops, got %d", d.Dropped())
	}
}

func TestDispatcherDisabled(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &recordingSink{})
	if d != nil {
		t.Fatal("disabled config must yield a nil dispatcher")
	}

	// Nil dispatchers are no-ops, not panics.
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// The first event parks the delivery goroutine in the blocked sink; the
	// next fills the buffer; everything after that must be dropped, not
	// block the caller.
	for i := 0; i < 6; i++ {
		d.Emit(context.Background(), Event{EventType: "recovery.challenge.verify"})
	}

	deadline := time.After(2 * time.Second)
	for d.Dropped() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected backpressure drops")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	close(sink.block)
	d.Close()
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 32; i++ {
		d.Emit(context.Background(), Event{EventType: "recovery.reset.finalize"})
	}
	d.Close()

	if sink.count() != 32 {
		t.Fatalf("Close must drain the buffer: got %d of 32", sink.count())
	}

	// Emit after Close is ignored.
	d.Emit(context.Background(), Event{})
	if sink.count() != 32 {
		t.Fatal("events emitted after Close must be discarded")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		EventType: "recovery.challenge.request",
		EmailHash: "abc123",
		Success:   true,
	})

	var decoded Event
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("sink output is not valid JSON: %v", err)
	}
	if decoded.EventType != "recovery.challenge.request" || !decoded.Success {
		t.Fatalf("decoded event mismatch: %+v", decoded)
	}
	if decoded.EmailHash != "abc123" {
		t.Fatalf("email hash mismatch: %q", decoded.EmailHash)
	}
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(2)
	sink.Emit(context.Background(), Event{EventType: "recovery.throttle"})

	select {
	case event := <-sink.Events():
		if event.EventType != "recovery.throttle" {
			t.Fatalf("unexpected event %+v", event)
		}
	default:
		t.Fatal("expected an event on the channel")
	}

	// A full channel with a cancelled context must not block.
	sink.Emit(context.Background(), Event{})
	sink.Emit(context.Background(), Event{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Emit(ctx, Event{})
}
