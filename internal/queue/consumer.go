package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	amqp "github.com/rabbitmq/amqp091-go"
)

// seenEvents bounds how many event ids are remembered for dropping
// redeliveries.
const seenEvents = 10000

// LedgerConsumer appends every BookingConcludedEvent to <dir>/bookings.log,
// one line per event.  Redelivered events are skipped by event id while the
// id is among the last seenEvents handled.
type LedgerConsumer struct {
	url   string
	queue string
	dir   string

	mu   sync.Mutex
	seen *lru.Cache[string, struct{}]
}

// NewLedgerConsumer builds a consumer for queue on the broker at url.
func NewLedgerConsumer(url, queue, dir string) *LedgerConsumer {
	if queue == "" {
		queue = DefaultQueue
	}
	if dir == "" {
		dir = "logs"
	}
	return newLedgerConsumer(url, queue, dir, seenEvents)
}

func newLedgerConsumer(url, queue, dir string, remember int) *LedgerConsumer {
	seen, err := lru.New[string, struct{}](remember)
	if err != nil {
		panic(fmt.Sprintf("queue: ledger consumer: %v", err))
	}
	return &LedgerConsumer{url: url, queue: queue, dir: dir, seen: seen}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff capped at 30s.
func (c *LedgerConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Printf("ledger-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("ledger-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *LedgerConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("ledger-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				log.Printf("ledger-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false) // do not requeue poison messages
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *LedgerConsumer) handleMessage(body []byte) error {
	var ev BookingConcludedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.EventID == "" || ev.Status == "" {
		return errors.New("event id and status are required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen.Contains(ev.EventID) {
		return nil
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, "bookings.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	c.seen.Add(ev.EventID, struct{}{})
	return nil
}

func formatLine(ev BookingConcludedEvent) string {
	return fmt.Sprintf("[%s] Booking %s | booking_id=%d | seat=%s | roll=%s | window=%s..%s | duration=%dmin | xp=%d | event=%s\n",
		ev.ConcludedAt, ev.Status, ev.BookingID, ev.SeatNumber, ev.RollNumber,
		ev.StartTime, ev.EndTime, ev.DurationMinutes, ev.XPEarned, ev.EventID)
}
