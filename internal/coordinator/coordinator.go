// Package coordinator keeps the locally visible reservation collection
// consistent under optimistic local writes and the asynchronous change feed
// from the persistence layer. All mutation goes through a single mutex, so
// the collection is safe to host in a multi-threaded service; feed events
// are applied by one consuming goroutine per collection.
package coordinator

import (
	"context"
	"sort"
	"sync"

	"recinto/internal/events"
	"recinto/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MutationKind is the shape of an optimistic local write.
type MutationKind string

const (
	MutationInsert MutationKind = "insert"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// Mutation is an optimistic local write. Reservation is required for insert
// and update; delete only needs ReservationID.
type Mutation struct {
	Kind          MutationKind
	ReservationID int64
	Reservation   *models.Reservation
}

// SnapshotHandle identifies the pre-mutation snapshot of one optimistic
// write, for later Commit or Rollback.
type SnapshotHandle string

type snapshot struct {
	reservationID int64
	prior         *models.Reservation // nil when the entry did not exist
	existed       bool
	echoSeq       uint64 // feed seq of the echo observed while pending, 0 if none
}

type Coordinator struct {
	mu      sync.Mutex
	byID    map[int64]*models.Reservation
	pending map[int64]SnapshotHandle // reservation id -> in-flight mutation
	snaps   map[SnapshotHandle]*snapshot
	lastSeq map[int64]uint64 // last applied feed seq per reservation id

	fetches map[string]*fetch // active list fetch per query key

	logger zerolog.Logger
}

func New(logger *zerolog.Logger) *Coordinator {
	var l zerolog.Logger
	if logger != nil {
		l = logger.With().Str("component", "coordinator").Logger()
	}
	return &Coordinator{
		byID:    make(map[int64]*models.Reservation),
		pending: make(map[int64]SnapshotHandle),
		snaps:   make(map[SnapshotHandle]*snapshot),
		lastSeq: make(map[int64]uint64),
		fetches: make(map[string]*fetch),
		logger:  l,
	}
}

// ApplyOptimistic mutates the local collection immediately and returns a
// snapshot handle. It never blocks on network confirmation.
//
// At most one uncommitted mutation may be in flight per reservation: a
// second ApplyOptimistic for the same id replaces the pending handle, so
// the earlier handle's snapshot can no longer be rolled back to. Callers
// resolve each handle with Commit or Rollback before mutating the same
// reservation again.
func (c *Coordinator) ApplyOptimistic(m Mutation) SnapshotHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := m.ReservationID
	if id == 0 && m.Reservation != nil {
		id = m.Reservation.ID
	}

	handle := SnapshotHandle(uuid.NewString())
	prior, existed := c.byID[id]
	c.snaps[handle] = &snapshot{
		reservationID: id,
		prior:         prior.Clone(),
		existed:       existed,
	}
	c.pending[id] = handle

	switch m.Kind {
	case MutationDelete:
		delete(c.byID, id)
	default:
		c.byID[id] = m.Reservation.Clone()
	}

	return handle
}

// Commit reconciles a successful mutation with the server-returned canonical
// record; the server record wins over the optimistic guess for all fields.
// A nil canonical confirms a delete.
func (c *Coordinator) Commit(handle SnapshotHandle, canonical *models.Reservation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.snaps[handle]
	if !ok {
		c.logger.Warn().Str("handle", string(handle)).Msg("commit for unknown snapshot")
		return
	}

	id := snap.reservationID
	if canonical != nil {
		// The optimistic ID may be provisional; the server assigns the real one.
		if canonical.ID != id {
			delete(c.byID, id)
			id = canonical.ID
		}
		c.byID[id] = canonical.Clone()
	} else {
		delete(c.byID, id)
	}

	delete(c.pending, snap.reservationID)
	delete(c.snaps, handle)
}

// Rollback restores the collection to exactly the pre-mutation snapshot. The
// visible collection afterwards is indistinguishable from the collection
// before the mutation was attempted.
func (c *Coordinator) Rollback(handle SnapshotHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.snaps[handle]
	if !ok {
		c.logger.Warn().Str("handle", string(handle)).Msg("rollback for unknown snapshot")
		return
	}

	if snap.existed {
		c.byID[snap.reservationID] = snap.prior.Clone()
	} else {
		delete(c.byID, snap.reservationID)
	}

	delete(c.pending, snap.reservationID)
	delete(c.snaps, handle)
}

// MergeChangeEvent applies one feed notification. Inserts of an existing ID
// are updates; deletes remove by ID; re-applying an already applied event is
// a no-op. An event for an ID with a pending optimistic mutation is the echo
// of our own in-flight write: it is recorded as confirmation and must not
// overwrite the optimistic entry.
func (c *Coordinator) MergeChangeEvent(ev events.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.Seq != 0 && ev.Seq <= c.lastSeq[ev.ReservationID] {
		// Duplicate or stale notification.
		return
	}

	if handle, inFlight := c.pending[ev.ReservationID]; inFlight {
		if snap, ok := c.snaps[handle]; ok {
			snap.echoSeq = ev.Seq
		}
		if ev.Seq != 0 {
			c.lastSeq[ev.ReservationID] = ev.Seq
		}
		c.logger.Debug().Int64("reservation_id", ev.ReservationID).Uint64("seq", ev.Seq).
			Msg("feed echo for in-flight mutation")
		return
	}

	switch ev.Kind {
	case events.KindDelete:
		delete(c.byID, ev.ReservationID)
	case events.KindInsert, events.KindUpdate:
		if ev.Reservation != nil {
			c.byID[ev.ReservationID] = ev.Reservation.Clone()
		}
	}
	if ev.Seq != 0 {
		c.lastSeq[ev.ReservationID] = ev.Seq
	}
}

// Run consumes the feed until ctx is done or the channel closes. It is the
// single serialized applier for this collection.
func (c *Coordinator) Run(ctx context.Context, feed <-chan events.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-feed:
			if !ok {
				return
			}
			c.MergeChangeEvent(ev)
		}
	}
}

// Get returns a copy of one reservation, if locally known.
func (c *Coordinator) Get(id int64) (*models.Reservation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.byID[id]
	return r.Clone(), ok
}

// List returns copies of the collection ordered by ID.
func (c *Coordinator) List() []*models.Reservation {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*models.Reservation, 0, len(c.byID))
	for _, r := range c.byID {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len reports the collection size.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

type fetch struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// BeginFetch registers a list refetch for a query key, cancelling any older
// in-flight fetch for the same key. The returned context must be passed to
// CompleteFetch.
func (c *Coordinator) BeginFetch(parent context.Context, key string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	if prev, ok := c.fetches[key]; ok {
		prev.cancel()
	}
	c.fetches[key] = &fetch{ctx: ctx, cancel: cancel}
	c.mu.Unlock()

	return ctx, cancel
}

// CompleteFetch replaces the collection with a fetched result set, unless the
// fetch was cancelled or superseded, in which case the result is discarded
// and false is returned. Entries with a pending optimistic mutation keep
// their optimistic value.
func (c *Coordinator) CompleteFetch(ctx context.Context, key string, fetched []*models.Reservation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	if active, ok := c.fetches[key]; !ok || active.ctx != ctx {
		return false
	}
	delete(c.fetches, key)

	next := make(map[int64]*models.Reservation, len(fetched))
	for _, r := range fetched {
		next[r.ID] = r.Clone()
	}
	// In-flight optimistic writes win over the fetched view.
	for id := range c.pending {
		if cur, ok := c.byID[id]; ok {
			next[id] = cur
		} else {
			delete(next, id)
		}
	}
	c.byID = next
	return true
}
