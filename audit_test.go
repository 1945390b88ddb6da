package donorAuth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
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

func (b *syncBuffer) Contains(s string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(b.buf.String(), s)
}

func auditController(t *testing.T, enabled bool, sink AuditSink, be *fakeBackend, ip *fakeIdentity) *Controller {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Audit.Enabled = enabled
	cfg.Audit.BufferSize = 32
	cfg.Audit.DropIfFull = false
	return newTestController(t, be, ip, func(b *Builder) {
		b.WithConfig(cfg).WithAuditSink(sink)
	})
}

func collectEvents(sink *ChannelSink, max int, wait time.Duration) []AuditEvent {
	events := make([]AuditEvent, 0, max)
	timeout := time.After(wait)
	for len(events) < max {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-timeout:
			return events
		}
	}
	return events
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	c := auditController(t, false, sink, &fakeBackend{loginErr: &statusError{status: 401}}, &fakeIdentity{})

	_, _ = c.Login(context.Background(), "karim@example.com", "wrong-password")
	c.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditEnabledSinkReceivesEventWithFields(t *testing.T) {
	sink := NewChannelSink(8)
	c := auditController(t, true, sink, &fakeBackend{profile: donorProfile()}, &fakeIdentity{})

	ctx := WithRequestID(context.Background(), "req-7")
	if _, err := c.Register(ctx, validRegistration()); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	events := collectEvents(sink, 1, 2*time.Second)
	if len(events) != 1 {
		t.Fatal("expected audit event to be received")
	}
	ev := events[0]
	if ev.EventType != auditEventRegisterSuccess || !ev.Success {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.UserID != "p-1" || ev.RequestID != "req-7" {
		t.Fatalf("unexpected identity fields: %+v", ev)
	}
	if ev.State != "authenticated" {
		t.Fatalf("expected state authenticated, got %q", ev.State)
	}
	if ev.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be populated")
	}
	if ev.Metadata["role"] != string(RoleDonor) {
		t.Fatalf("unexpected metadata: %v", ev.Metadata)
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
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

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventLoginSuccess,
		UserID:    "p-1",
		State:     "authenticated",
		Success:   true,
	})

	if !buf.Contains("login_success") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains("\"user_id\":\"p-1\"") {
		t.Fatal("expected JSON log line to contain user id")
	}
}

func TestAuditDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{})

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	sink := NewChannelSink(32)
	be := &fakeBackend{profile: donorProfile(), applyUpdate: true}
	c := auditController(t, true, sink, be, &fakeIdentity{})
	ctx := context.Background()

	reg := validRegistration()
	reg.Password = "hunter-secret-9"
	reg.ConfirmPassword = "hunter-secret-9"
	if _, err := c.Register(ctx, reg); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	c.Logout(ctx)

	be.loginErr = &statusError{status: 401}
	_, _ = c.Login(ctx, "karim@example.com", "wrong-secret-7")

	events := collectEvents(sink, 3, 2*time.Second)
	if len(events) != 3 {
		t.Fatalf("expected 3 audit events, got %d", len(events))
	}

	needles := []string{"hunter-secret-9", "wrong-secret-7"}
	for _, ev := range events {
		for _, needle := range needles {
			if strings.Contains(ev.Error, needle) {
				t.Fatalf("sensitive value leaked in audit error field: %q", needle)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("sensitive value leaked in audit metadata: %q", needle)
				}
			}
		}
	}
}

func TestControllerShutdownBoundsAuditDrain(t *testing.T) {
	sink := newGateSink()
	be := &fakeBackend{profile: donorProfile()}
	c := auditController(t, true, sink, be, &fakeIdentity{})

	loggedIn(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded with a stuck sink, got %v", err)
	}

	close(sink.gate)
	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected drain to finish once the sink moves, got %v", err)
	}
}
