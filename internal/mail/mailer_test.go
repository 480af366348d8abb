package mail

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type captureSender struct {
	mu   sync.Mutex
	sent []Message
	gate chan struct{}
}

func (s *captureSender) Send(_ context.Context, msg Message) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *captureSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

func TestEnqueueDelivers(t *testing.T) {
	sender := &captureSender{}
	m := NewMailer(sender, 8, zerolog.Nop())

	m.Enqueue(Message{To: "alice@x", Subject: "hi", Body: "body"})
	m.Close()

	sent := sender.messages()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].To != "alice@x" {
		t.Errorf("to = %q", sent[0].To)
	}
}

func TestEnqueueNeverBlocks(t *testing.T) {
	sender := &captureSender{gate: make(chan struct{})}
	m := NewMailer(sender, 2, zerolog.Nop())
	defer func() {
		close(sender.gate)
		m.Close()
	}()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			m.Enqueue(Message{To: "x@x", Subject: "s"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}

func TestBackpressureDropsOldest(t *testing.T) {
	sender := &captureSender{gate: make(chan struct{})}
	m := NewMailer(sender, 2, zerolog.Nop())

	// worker is gated; fill the queue past capacity
	for i := 0; i < 5; i++ {
		m.Enqueue(Message{To: "x@x", Subject: string(rune('a' + i))})
	}

	close(sender.gate)
	m.Close()

	sent := sender.messages()
	if len(sent) == 0 {
		t.Fatal("nothing delivered")
	}
	// the newest message must have survived the eviction
	last := sent[len(sent)-1]
	if last.Subject != "e" {
		t.Errorf("newest message lost; last delivered subject = %q", last.Subject)
	}
}

func TestEnqueueAfterCloseIsNoOp(t *testing.T) {
	sender := &captureSender{}
	m := NewMailer(sender, 2, zerolog.Nop())
	m.Close()

	m.Enqueue(Message{To: "x@x"})

	if n := len(sender.messages()); n != 0 {
		t.Errorf("message delivered after close: %d", n)
	}
}

func TestResetMessageTemplate(t *testing.T) {
	msg, err := ResetMessage("alice@x", ResetParams{
		Name: "Alice",
		Link: "https://app.example/reset-password?token=raw123",
		TTL:  "30m",
	})
	if err != nil {
		t.Fatalf("ResetMessage failed: %v", err)
	}
	if !strings.Contains(msg.Body, "token=raw123") {
		t.Errorf("reset link missing from body:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Body, "Alice") || !strings.Contains(msg.Body, "30m") {
		t.Errorf("parameters not substituted:\n%s", msg.Body)
	}
}

func TestWelcomeMessageTemplate(t *testing.T) {
	msg, err := WelcomeMessage("bob@x", WelcomeParams{Name: "Bob", Email: "bob@x"})
	if err != nil {
		t.Fatalf("WelcomeMessage failed: %v", err)
	}
	if !strings.Contains(msg.Body, "bob@x") {
		t.Errorf("email missing from body:\n%s", msg.Body)
	}
}
