package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/bookmyseat/internal/model"
)

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "booking_events"

const (
	publishBuffer  = 1024
	dialTimeout    = 5 * time.Second
	publishTimeout = 5 * time.Second
)

// ErrPublishBufferFull is returned when the broker has fallen publishBuffer
// events behind.
var ErrPublishBufferFull = errors.New("rabbitmq: publish buffer full")

// Publisher sends BookingConcludedEvents to a durable queue.
// PublishConcluded only enqueues; Run delivers the events in order over one
// long-lived connection and redials after a failure.
type Publisher struct {
	url    string
	queue  string
	events chan []byte
	send   func(ctx context.Context, body []byte) error
	retry  time.Duration

	// owned by the Run goroutine
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns nil when url is empty, which callers treat as
// "events disabled".
func NewPublisher(url, queue string) *Publisher {
	if url == "" {
		return nil
	}
	if queue == "" {
		queue = DefaultQueue
	}
	p := &Publisher{url: url, queue: queue, events: make(chan []byte, publishBuffer), retry: time.Second}
	p.send = p.publish
	return p
}

// PublishConcluded implements booking.Publisher.  It never waits on the
// broker.
func (p *Publisher) PublishConcluded(_ context.Context, rec model.BookingRecord) error {
	body, err := json.Marshal(NewBookingConcludedEvent(rec, time.Now()))
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}
	select {
	case p.events <- body:
		return nil
	default:
		return ErrPublishBufferFull
	}
}

// Run delivers queued events until ctx is cancelled.  A failed event is
// retried with exponential backoff capped at 30s, so later events wait
// behind it.  Run must be called from a single goroutine.
func (p *Publisher) Run(ctx context.Context) error {
	defer p.disconnect()
	backoff := p.retry
	for {
		select {
		case <-ctx.Done():
			if n := len(p.events); n > 0 {
				log.Printf("rabbitmq: %d events not delivered at shutdown", n)
			}
			return ctx.Err()
		case body := <-p.events:
			for {
				err := p.send(ctx, body)
				if err == nil {
					backoff = p.retry
					break
				}
				log.Printf("rabbitmq: %v; retrying in %s", err, backoff)
				p.disconnect()
				if !sleep(ctx, backoff) {
					log.Printf("rabbitmq: %d events not delivered at shutdown", len(p.events)+1)
					return ctx.Err()
				}
				if backoff < 30*time.Second {
					backoff *= 2
				}
			}
		}
	}
}

func (p *Publisher) connect() error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout), Locale: "en_US"})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) disconnect() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

func (p *Publisher) publish(ctx context.Context, body []byte) error {
	if p.ch == nil || p.conn.IsClosed() {
		p.disconnect()
		if err := p.connect(); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
