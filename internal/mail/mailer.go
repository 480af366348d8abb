// Package mail delivers account-lifecycle email on a background worker.
// Delivery is best-effort: enqueue never blocks a request handler, and
// send failures are logged, never surfaced to callers.
package mail

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender is the transport. SMTPSender is the production implementation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer owns a bounded queue drained by one worker goroutine. When the
// queue is full the oldest message is dropped with a warning.
type Mailer struct {
	sender Sender
	queue  chan Message
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	log    zerolog.Logger
}

func NewMailer(sender Sender, queueSize int, log zerolog.Logger) *Mailer {
	if queueSize <= 0 {
		queueSize = 64
	}
	m := &Mailer{
		sender: sender,
		queue:  make(chan Message, queueSize),
		done:   make(chan struct{}),
		log:    log,
	}

	m.wg.Add(1)
	go m.run()

	return m
}

func (m *Mailer) run() {
	defer m.wg.Done()

	for {
		select {
		case msg := <-m.queue:
			m.deliver(msg)
		case <-m.done:
			for {
				select {
				case msg := <-m.queue:
					m.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (m *Mailer) deliver(msg Message) {
	if err := m.sender.Send(context.Background(), msg); err != nil {
		m.log.Warn().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("mail delivery failed")
	}
}

// Enqueue adds msg to the queue without blocking. On a full queue the
// oldest pending message is evicted to make room.
func (m *Mailer) Enqueue(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	for {
		select {
		case m.queue <- msg:
			return
		default:
		}

		select {
		case dropped := <-m.queue:
			m.log.Warn().Str("to", dropped.To).Str("subject", dropped.Subject).Msg("mail queue full, dropping oldest")
		default:
		}
	}
}

// Close stops accepting messages, drains the queue, and waits for the
// worker to finish.
func (m *Mailer) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	close(m.done)
	m.wg.Wait()
}
