package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestBufferFullDropIfFullDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	start := time.Now()
	d.Emit(context.Background(), Event{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestBufferFullBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: false}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, DropIfFull: true}, sink)

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{EventType: "e2"})

	if got := sink.count.Load(); got != 1 {
		t.Fatalf("expected the queued event to drain on close, got %d", got)
	}
}

type ctxKey struct{}

type recordingSink struct {
	events chan Event
	values chan interface{}
}

func (s *recordingSink) Emit(ctx context.Context, event Event) {
	s.values <- ctx.Value(ctxKey{})
	s.events <- event
}

func TestEmitStampsRequestIDAndKeepsContextValues(t *testing.T) {
	sink := &recordingSink{events: make(chan Event, 2), values: make(chan interface{}, 2)}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 4,
		RequestID: func(ctx context.Context) string {
			id, _ := ctx.Value(ctxKey{}).(string)
			return id
		},
		Now: func() time.Time { return fixed },
	}, sink)

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "req-1"))
	d.Emit(ctx, Event{EventType: "login_success", Success: true})
	d.Emit(ctx, Event{EventType: "logout", RequestID: "explicit", Timestamp: fixed.Add(time.Minute)})
	cancel()
	d.Close()

	first := <-sink.events
	if first.RequestID != "req-1" {
		t.Fatalf("expected request id from context, got %q", first.RequestID)
	}
	if !first.Timestamp.Equal(fixed) || first.Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp %v, got %v", fixed.UTC(), first.Timestamp)
	}
	second := <-sink.events
	if second.RequestID != "explicit" || !second.Timestamp.Equal(fixed.Add(time.Minute)) {
		t.Fatalf("caller supplied fields must win, got %+v", second)
	}
	for i := 0; i < 2; i++ {
		if v := <-sink.values; v != "req-1" {
			t.Fatalf("sink lost request context value, got %v", v)
		}
	}
}

func TestZerologSinkWritesRequestID(t *testing.T) {
	var buf syncBuffer
	sink := NewZerologSink(zerolog.New(&buf))
	sink.Emit(context.Background(), Event{EventType: "refresh_success", RequestID: "req-9", Success: true})

	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec["request_id"] != "req-9" {
		t.Fatalf("expected request_id in %v", rec)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{
		Timestamp: time.Now().UTC(),
		EventType: "login_success",
		UserID:    "u1",
		IP:        "127.0.0.1",
		Success:   true,
	})

	out := buf.String()
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("expected newline-terminated record")
	}
	var decoded Event
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &decoded); err != nil {
		t.Fatalf("expected valid JSON, got %q: %v", out, err)
	}
	if decoded.EventType != "login_success" || decoded.UserID != "u1" {
		t.Fatalf("unexpected record %+v", decoded)
	}
}

func TestZerologSinkLevels(t *testing.T) {
	var buf syncBuffer
	sink := NewZerologSink(zerolog.New(&buf))

	sink.Emit(context.Background(), Event{EventType: "login_success", UserID: "u1", Success: true})
	sink.Emit(context.Background(), Event{
		EventType: "login_failure",
		Error:     "invalid_credentials",
		Metadata:  map[string]string{"reason": "password_mismatch"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two log lines, got %d: %q", len(lines), buf.String())
	}

	var first, second map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if first["level"] != "info" || first["user_id"] != "u1" || first["component"] != "audit" {
		t.Fatalf("unexpected success record %v", first)
	}
	if second["level"] != "warn" || second["error_code"] != "invalid_credentials" {
		t.Fatalf("unexpected failure record %v", second)
	}
	meta, ok := second["metadata"].(map[string]interface{})
	if !ok || meta["reason"] != "password_mismatch" {
		t.Fatalf("expected metadata dict, got %v", second["metadata"])
	}
}
