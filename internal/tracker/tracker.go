package tracker

import (
	"log"
	"math"
	"sync"
	"time"
)

// LastViewed records the most recently started viewing, even before the
// session completes.
type LastViewed struct {
	Item string    `json:"item"`
	Ts   time.Time `json:"ts"`
}

// ActivityRecord accumulates completed viewing intervals for one item.
type ActivityRecord struct {
	TotalSeconds int64     `json:"total_seconds"`
	LastTs       time.Time `json:"last_ts"`
	Views        int64     `json:"views"`
}

// Snapshot is the full persisted tracker state.
type Snapshot struct {
	LastViewed   *LastViewed               `json:"last_viewed,omitempty"`
	TotalSeconds int64                     `json:"total_seconds"`
	Activities   map[string]ActivityRecord `json:"activities"`
}

func EmptySnapshot() Snapshot {
	return Snapshot{Activities: make(map[string]ActivityRecord)}
}

// Store persists tracker snapshots. Load may fail on corrupt state; the
// tracker treats any failure as an empty snapshot.
type Store interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
	Reset() error
}

type activeSession struct {
	item    string
	startTs time.Time
}

// Tracker times how long an item stays the currently viewed one. At
// most one session is active; time is attributed only on completed
// start/stop pairs, so a crash mid-session loses that interval.
type Tracker struct {
	// OnStop, when set, receives the snapshot after every completed
	// stop. Set it before the tracker is shared between goroutines.
	OnStop func(Snapshot)

	mu     sync.Mutex
	store  Store
	now    func() time.Time
	active *activeSession
}

func New(store Store) *Tracker {
	return &Tracker{
		store: store,
		now:   time.Now,
	}
}

// StartViewing begins timing item. Starting the already-active item is
// a no-op; starting a different item stops the current session first.
// The last-viewed marker is persisted eagerly, before the session ends.
func (t *Tracker) StartViewing(item string) {
	t.mu.Lock()

	if t.active != nil && t.active.item == item {
		t.mu.Unlock()
		return
	}

	var stopped *Snapshot
	if t.active != nil {
		s := t.stopLocked()
		stopped = &s
	}

	now := t.now()
	t.active = &activeSession{item: item, startTs: now}

	snapshot := t.loadLocked()
	snapshot.LastViewed = &LastViewed{Item: item, Ts: now}
	if _, ok := snapshot.Activities[item]; !ok {
		snapshot.Activities[item] = ActivityRecord{LastTs: now}
	}
	t.saveLocked(snapshot)

	callback := t.OnStop
	t.mu.Unlock()

	if stopped != nil && callback != nil {
		callback(*stopped)
	}
}

// StopViewing ends the active session, attributing the elapsed whole
// seconds to the item and to the global aggregate. No-op when idle.
func (t *Tracker) StopViewing() {
	t.mu.Lock()
	if t.active == nil {
		t.mu.Unlock()
		return
	}

	snapshot := t.stopLocked()
	callback := t.OnStop
	t.mu.Unlock()

	if callback != nil {
		callback(snapshot)
	}
}

// stopLocked completes the active session and persists the updated
// snapshot. Caller holds t.mu and has checked t.active != nil.
func (t *Tracker) stopLocked() Snapshot {
	now := t.now()
	elapsed := int64(math.Round(now.Sub(t.active.startTs).Seconds()))
	if elapsed < 0 {
		elapsed = 0
	}

	item := t.active.item
	t.active = nil

	snapshot := t.loadLocked()
	snapshot.TotalSeconds += elapsed

	record := snapshot.Activities[item]
	record.TotalSeconds += elapsed
	record.LastTs = now
	record.Views++
	snapshot.Activities[item] = record

	snapshot.LastViewed = &LastViewed{Item: item, Ts: now}
	t.saveLocked(snapshot)

	return snapshot
}

// Activity returns the persisted snapshot, self-healing to an empty one
// when the store is missing or corrupt.
func (t *Tracker) Activity() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadLocked()
}

// Active reports the currently timed item, if any.
func (t *Tracker) Active() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return "", false
	}
	return t.active.item, true
}

// Reset clears all persisted state and forces the tracker idle.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active = nil
	if err := t.store.Reset(); err != nil {
		log.Printf("[TRACKER] Reset failed: %v", err)
	}
}

func (t *Tracker) loadLocked() Snapshot {
	snapshot, err := t.store.Load()
	if err != nil {
		log.Printf("[TRACKER] Load failed, treating as empty: %v", err)
		return EmptySnapshot()
	}
	if snapshot.Activities == nil {
		snapshot.Activities = make(map[string]ActivityRecord)
	}
	return snapshot
}

func (t *Tracker) saveLocked(snapshot Snapshot) {
	if err := t.store.Save(snapshot); err != nil {
		log.Printf("[TRACKER] Save failed: %v", err)
	}
}
