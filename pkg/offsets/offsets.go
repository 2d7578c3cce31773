// Package offsets implements the preprocessing offset manager: persisted
// per-element counters plus the transactional request/advance operations
// the rest of the system uses to draw from and replenish the preprocessing
// pool. The counters live behind a transactional Store so the in-memory
// reference implementation and a durable relational one share one Manager.
package offsets

import (
	"errors"
	"sync"

	"github.com/luxfi/mpc/pkg/compile"
)

// ErrNotEnoughElements is returned by Request when advancing committed by
// the requested amount would exceed latest.
var ErrNotEnoughElements = errors.New("offsets: not enough produced elements to satisfy the request")

// Counters is one element kind's persisted state.
type Counters struct {
	Target          int64
	Latest          int64
	Committed       int64
	DeleteCandidate int64
	Deleted         int64
	NextBatchID     uint64
}

// Range is a half-open range of element indices a caller may now fetch the
// backing shares for.
type Range struct {
	Start, End int64
}

// Amount is one (element kind, count) pair in a Request call.
type Amount struct {
	Element compile.ElementKind
	N       int64
}

// Scheduler is notified after a successful Request so it can trigger
// production of replacements. Notification is best-effort: a Notify
// failure is logged by the caller, never propagated as a Request failure.
type Scheduler interface {
	Notify(element compile.ElementKind, consumed int64)
}

// Store is the transactional backing store Manager drives. The in-memory
// implementation below satisfies it directly; a durable implementation
// would wrap a real transaction (e.g. a SQL or KV transaction) instead.
type Store interface {
	// WithTx runs fn with exclusive access to the counters, committing (or
	// rolling back) as a unit. fn returning an error aborts the whole call.
	WithTx(fn func(get func(compile.ElementKind) Counters, set func(compile.ElementKind, Counters)) error) error
}

// Manager coordinates offset tracking for every element kind, backed by a
// Store and optionally notifying a Scheduler.
type Manager struct {
	mu        sync.Mutex
	store     Store
	scheduler Scheduler
}

// NewManager constructs a Manager. scheduler may be nil, in which case
// Request's notification step is skipped.
func NewManager(store Store, scheduler Scheduler) *Manager {
	return &Manager{store: store, scheduler: scheduler}
}

// Request atomically advances committed by n for every (element, n) in
// amounts, failing the whole call with ErrNotEnoughElements if any one of
// them would push committed past latest. Returns the half-open range
// [old_committed, new_committed) per element.
func (m *Manager) Request(amounts []Amount) (map[compile.ElementKind]Range, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ranges := make(map[compile.ElementKind]Range, len(amounts))
	err := m.store.WithTx(func(get func(compile.ElementKind) Counters, set func(compile.ElementKind, Counters)) error {
		for _, a := range amounts {
			c := get(a.Element)
			if c.Committed+a.N > c.Latest {
				return ErrNotEnoughElements
			}
			ranges[a.Element] = Range{Start: c.Committed, End: c.Committed + a.N}
			c.Committed += a.N
			set(a.Element, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.scheduler != nil {
		for _, a := range amounts {
			m.scheduler.Notify(a.Element, a.N)
		}
	}
	return ranges, nil
}

// AdvanceLatest is called by the preprocessing producer when a new batch
// becomes available: it increments latest and bumps next_batch_id.
func (m *Manager) AdvanceLatest(element compile.ElementKind, delta int64, completedBatchID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.WithTx(func(get func(compile.ElementKind) Counters, set func(compile.ElementKind, Counters)) error {
		c := get(element)
		c.Latest += delta
		c.NextBatchID = completedBatchID + 1
		set(element, c)
		return nil
	})
}

// SetTarget, SetDeleteCandidate and SetDeleted are single-row updates to
// the corresponding counter.
func (m *Manager) SetTarget(element compile.ElementKind, value int64) error {
	return m.setField(element, func(c *Counters) { c.Target = value })
}
func (m *Manager) SetDeleteCandidate(element compile.ElementKind, value int64) error {
	return m.setField(element, func(c *Counters) { c.DeleteCandidate = value })
}
func (m *Manager) SetDeleted(element compile.ElementKind, value int64) error {
	return m.setField(element, func(c *Counters) { c.Deleted = value })
}

func (m *Manager) setField(element compile.ElementKind, mutate func(*Counters)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.WithTx(func(get func(compile.ElementKind) Counters, set func(compile.ElementKind, Counters)) error {
		c := get(element)
		mutate(&c)
		set(element, c)
		return nil
	})
}

// Offsets returns the current counters for one element kind.
func (m *Manager) Offsets(element compile.ElementKind) (Counters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out Counters
	err := m.store.WithTx(func(get func(compile.ElementKind) Counters, set func(compile.ElementKind, Counters)) error {
		out = get(element)
		return nil
	})
	return out, err
}

// AllOffsets returns every element kind's counters the store currently
// tracks (an in-memory Store tracks exactly the kinds it has ever been
// asked about).
func (m *Manager) AllOffsets() (map[compile.ElementKind]Counters, error) {
	ms, ok := m.store.(*MemoryStore)
	if !ok {
		return nil, errors.New("offsets: AllOffsets needs a store that can enumerate its keys")
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	out := make(map[compile.ElementKind]Counters, len(ms.counters))
	for k, v := range ms.counters {
		out[k] = v
	}
	return out, nil
}

// RunDeletionSweep implements the periodic per-node sweep: it
// sets delete_candidate = committed - 1 for every tracked element, then
// for any element whose new delete_candidate lands on a batch boundary,
// returns the range [deleted, delete_candidate] the leader should issue a
// CleanupUsedElements broadcast for. Advancing deleted itself happens only
// once every party has acknowledged that broadcast — the caller drives
// that handshake and calls SetDeleted once it completes.
func (m *Manager) RunDeletionSweep(batchSize int64) (map[compile.ElementKind]Range, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	candidates := map[compile.ElementKind]Range{}
	err := m.store.WithTx(func(get func(compile.ElementKind) Counters, set func(compile.ElementKind, Counters)) error {
		ms, ok := m.store.(*MemoryStore)
		if !ok {
			return nil
		}
		for element, c := range ms.counters {
			c.DeleteCandidate = c.Committed - 1
			set(element, c)
			if batchSize > 0 && (c.DeleteCandidate+1)%batchSize == 0 && c.DeleteCandidate > c.Deleted {
				candidates[element] = Range{Start: c.Deleted, End: c.DeleteCandidate}
			}
		}
		return nil
	})
	return candidates, err
}

// MemoryStore is an in-memory Store, sufficient for a single node's local
// view or for tests; a durable deployment swaps this for a real
// transactional backing store without changing Manager's API.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[compile.ElementKind]Counters
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: map[compile.ElementKind]Counters{}}
}

// WithTx stages every set() into a side buffer and only merges it into the
// live counters if fn returns nil; any error (including ErrNotEnoughElements
// mid-loop) discards the staged writes, so a partially-satisfied multi-element
// Request leaves every counter exactly where it started.
func (s *MemoryStore) WithTx(fn func(get func(compile.ElementKind) Counters, set func(compile.ElementKind, Counters)) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged := map[compile.ElementKind]Counters{}
	get := func(k compile.ElementKind) Counters {
		if c, ok := staged[k]; ok {
			return c
		}
		return s.counters[k]
	}
	set := func(k compile.ElementKind, c Counters) { staged[k] = c }
	if err := fn(get, set); err != nil {
		return err
	}
	for k, c := range staged {
		s.counters[k] = c
	}
	return nil
}
