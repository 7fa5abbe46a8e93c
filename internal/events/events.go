// Package events carries the reservation change feed: insert/update/delete
// notifications published by the persistence boundary and consumed, in
// order, by the concurrency coordinator.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"recinto/internal/models"

	"github.com/google/uuid"
)

// Kind classifies a change notification.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// ChangeEvent is one notification from the reservation table. Reservation is
// nil for deletes. Seq is assigned by the feed and strictly increases in
// publish order.
type ChangeEvent struct {
	ID            string              `json:"id"`
	Kind          Kind                `json:"kind"`
	ReservationID int64               `json:"reservation_id"`
	Reservation   *models.Reservation `json:"reservation,omitempty"`
	Seq           uint64              `json:"seq"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

// JSON serializes the event for external sinks.
func (e ChangeEvent) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// Feed fans change events out to subscribers. Each subscriber gets its own
// buffered channel; delivery within a channel preserves publish order. A
// subscriber that falls behind loses events rather than blocking publishers.
type Feed struct {
	mu      sync.RWMutex
	subs    map[int]chan ChangeEvent
	nextSub int
	seq     atomic.Uint64
	dropped atomic.Uint64
	buffer  int
	closed  bool
}

func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = models.DefaultFeedBuffer
	}
	return &Feed{
		subs:   make(map[int]chan ChangeEvent),
		buffer: buffer,
	}
}

// Subscribe registers a consumer. The returned cancel func detaches it and
// closes its channel.
func (f *Feed) Subscribe() (<-chan ChangeEvent, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextSub
	f.nextSub++
	ch := make(chan ChangeEvent, f.buffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish assigns a sequence number and delivers to every subscriber.
func (f *Feed) Publish(kind Kind, reservationID int64, reservation *models.Reservation) ChangeEvent {
	ev := ChangeEvent{
		ID:            uuid.NewString(),
		Kind:          kind,
		ReservationID: reservationID,
		Reservation:   reservation.Clone(),
		Seq:           f.seq.Add(1),
		OccurredAt:    time.Now(),
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ev
	}
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			f.dropped.Add(1)
		}
	}
	return ev
}

// Dropped returns how many events were discarded on full subscriber buffers.
func (f *Feed) Dropped() uint64 {
	return f.dropped.Load()
}

// Close detaches all subscribers and closes their channels.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
