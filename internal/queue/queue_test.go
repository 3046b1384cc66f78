package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bookmyseat/internal/model"
)

func sampleRecord() model.BookingRecord {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return model.BookingRecord{
		ID:              9,
		SeatNumber:      "F1-07",
		RollNumber:      "R001",
		StartTime:       start,
		EndTime:         start.Add(44 * time.Minute),
		DurationMinutes: 44,
		Status:          model.BookingCompleted,
		XPEarned:        44,
	}
}

func TestNewBookingConcludedEvent(t *testing.T) {
	ev := NewBookingConcludedEvent(sampleRecord(), time.Date(2026, 3, 2, 10, 44, 0, 0, time.UTC))
	_, err := uuid.Parse(ev.EventID)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", ev.Status)
	assert.Equal(t, "2026-03-02T10:00:00Z", ev.StartTime)
	assert.Equal(t, "2026-03-02T10:44:00Z", ev.ConcludedAt)
}

func TestNewPublisherDisabledWithoutURL(t *testing.T) {
	assert.Nil(t, NewPublisher("", "q"))
	p := NewPublisher("amqp://localhost", "")
	require.NotNil(t, p)
	assert.Equal(t, DefaultQueue, p.queue)
}

// captureSends replaces the broker connection of p.  Each send waits on
// gate, and the first fail sends return an error.
type captureSends struct {
	mu   sync.Mutex
	gate chan struct{}
	fail int
	got  []BookingConcludedEvent
}

func (c *captureSends) send(ctx context.Context, body []byte) error {
	select {
	case <-c.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail > 0 {
		c.fail--
		return errors.New("connection reset")
	}
	var ev BookingConcludedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return err
	}
	c.got = append(c.got, ev)
	return nil
}

func (c *captureSends) delivered() []BookingConcludedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]BookingConcludedEvent(nil), c.got...)
}

func TestPublishConcludedDoesNotWaitForBroker(t *testing.T) {
	p := NewPublisher("amqp://127.0.0.1:1", "")
	sends := &captureSends{gate: make(chan struct{})}
	p.send = sends.send

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// The broker is stalled: every publish must still return at once.
	begin := time.Now()
	for i := 0; i < 50; i++ {
		rec := sampleRecord()
		rec.ID = uint64(i + 1)
		require.NoError(t, p.PublishConcluded(ctx, rec))
	}
	assert.Less(t, time.Since(begin), time.Second)
	assert.Empty(t, sends.delivered())

	close(sends.gate)
	require.Eventually(t, func() bool { return len(sends.delivered()) == 50 }, 2*time.Second, 10*time.Millisecond)
	got := sends.delivered()
	assert.Equal(t, uint64(1), got[0].BookingID)
	assert.Equal(t, uint64(50), got[49].BookingID)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPublisherRetriesFailedEvent(t *testing.T) {
	p := NewPublisher("amqp://127.0.0.1:1", "")
	p.retry = 5 * time.Millisecond
	sends := &captureSends{gate: make(chan struct{}), fail: 2}
	close(sends.gate)
	p.send = sends.send

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	require.NoError(t, p.PublishConcluded(ctx, sampleRecord()))
	require.Eventually(t, func() bool { return len(sends.delivered()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "F1-07", sends.delivered()[0].SeatNumber)
}

func TestPublishConcludedReportsFullBuffer(t *testing.T) {
	p := NewPublisher("amqp://127.0.0.1:1", "")
	for i := 0; i < publishBuffer; i++ {
		require.NoError(t, p.PublishConcluded(context.Background(), sampleRecord()))
	}
	assert.ErrorIs(t, p.PublishConcluded(context.Background(), sampleRecord()), ErrPublishBufferFull)
}

func TestLedgerConsumerAppendsOnce(t *testing.T) {
	dir := t.TempDir()
	c := NewLedgerConsumer("", "", dir)
	ev := NewBookingConcludedEvent(sampleRecord(), time.Now())
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, c.handleMessage(body))
	require.NoError(t, c.handleMessage(body))

	data, err := os.ReadFile(filepath.Join(dir, "bookings.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Booking COMPLETED")
	assert.Contains(t, lines[0], "seat=F1-07")
	assert.Contains(t, lines[0], "duration=44min")
}

func TestLedgerConsumerRejectsBadMessages(t *testing.T) {
	c := NewLedgerConsumer("", "", t.TempDir())
	assert.Error(t, c.handleMessage([]byte("{not json")))
	assert.Error(t, c.handleMessage([]byte(`{"status":"COMPLETED"}`)))
}

func TestLedgerConsumerForgetsOldestEventIDs(t *testing.T) {
	dir := t.TempDir()
	c := newLedgerConsumer("", DefaultQueue, dir, 2)
	bodies := make([][]byte, 3)
	for i := range bodies {
		rec := sampleRecord()
		rec.ID = uint64(i + 1)
		body, err := json.Marshal(NewBookingConcludedEvent(rec, time.Now()))
		require.NoError(t, err)
		bodies[i] = body
		require.NoError(t, c.handleMessage(body))
	}
	assert.Equal(t, 2, c.seen.Len())

	// The newest id is still remembered, the oldest was dropped.
	require.NoError(t, c.handleMessage(bodies[2]))
	require.NoError(t, c.handleMessage(bodies[0]))
	assert.Equal(t, 2, c.seen.Len())

	data, err := os.ReadFile(filepath.Join(dir, "bookings.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[3], "booking_id=1 ")
}
