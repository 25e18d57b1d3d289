// Package store holds the selection set and export progress behind named,
// synchronous actions. It is the single source of truth for what will be
// exported; every mutation funnels through an action and ends with a
// notification carrying the full current state.
package store

import (
	"sync"

	"github.com/use-agent/adpack/models"
)

// Snapshot is the full state handed to subscribers and the API layer.
// Maps and slices are copies; mutating a snapshot never touches the store.
type Snapshot struct {
	// Selection maps library ID to its record.
	Selection map[string]models.AdRecord

	// Order lists selected IDs in insertion order. Batch sharding
	// depends on this order being stable.
	Order []string

	// Progress is the current export progress model.
	Progress models.ExportProgress

	// PanelVisible mirrors the UI panel visibility flag.
	PanelVisible bool
}

// ProgressPatch is a partial update to the progress model. Nil fields are
// left untouched. Percent is never patched directly; it is recomputed
// from ItemsDone/ItemsTotal at the single mutation point.
type ProgressPatch struct {
	Active        *bool
	CurrentBatch  *int
	TotalBatches  *int
	ItemsDone     *int
	ItemsTotal    *int
	StatusMessage *string
}

// Subscriber receives the full state after every action.
type Subscriber func(Snapshot)

// Store is the reactive state container. Actions are synchronous and
// never fail; the mutex serializes all access, so subscribers always
// observe internally consistent state.
type Store struct {
	mu        sync.Mutex
	selection map[string]models.AdRecord
	order     []string
	progress  models.ExportProgress
	panel     bool

	nextSub     int
	subscribers map[int]Subscriber
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		selection:   make(map[string]models.AdRecord),
		subscribers: make(map[int]Subscriber),
	}
}

// Subscribe registers fn and returns its unsubscribe function.
// fn is invoked synchronously, under the action that triggered it, and
// therefore must not call back into the store.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// ToggleSelection adds the record when absent and removes it when
// present. Toggling an ID the store has never seen is an insert, not an
// error.
func (s *Store) ToggleSelection(id string, rec models.AdRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selection[id]; ok {
		delete(s.selection, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	} else {
		s.selection[id] = rec
		s.order = append(s.order, id)
	}
	s.notifyLocked()
}

// Entry pairs an ID with its record for bulk selection.
type Entry struct {
	ID     string
	Record models.AdRecord
}

// BulkSelect inserts every entry, overwriting records for already
// selected IDs without disturbing their position.
func (s *Store) BulkSelect(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if _, ok := s.selection[e.ID]; !ok {
			s.order = append(s.order, e.ID)
		}
		s.selection[e.ID] = e.Record
	}
	s.notifyLocked()
}

// Clear empties the selection set.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = make(map[string]models.AdRecord)
	s.order = nil
	s.notifyLocked()
}

// SetPanelVisible flips the UI visibility flag.
func (s *Store) SetPanelVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panel = visible
	s.notifyLocked()
}

// UpdateProgress applies a partial progress update and recomputes the
// percentage, keeping the percent invariant at the only place progress
// is mutated.
func (s *Store) UpdateProgress(patch ProgressPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patch.Active != nil {
		s.progress.Active = *patch.Active
	}
	if patch.CurrentBatch != nil {
		s.progress.CurrentBatch = *patch.CurrentBatch
	}
	if patch.TotalBatches != nil {
		s.progress.TotalBatches = *patch.TotalBatches
	}
	if patch.ItemsDone != nil {
		s.progress.ItemsDone = *patch.ItemsDone
	}
	if patch.ItemsTotal != nil {
		s.progress.ItemsTotal = *patch.ItemsTotal
	}
	if patch.StatusMessage != nil {
		s.progress.StatusMessage = *patch.StatusMessage
	}
	s.progress.Percent = models.ProgressPercent(s.progress.ItemsDone, s.progress.ItemsTotal)
	s.notifyLocked()
}

// State returns the current snapshot without mutating anything.
func (s *Store) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	sel := make(map[string]models.AdRecord, len(s.selection))
	for k, v := range s.selection {
		sel[k] = v
	}
	order := make([]string, len(s.order))
	copy(order, s.order)
	return Snapshot{
		Selection:    sel,
		Order:        order,
		Progress:     s.progress,
		PanelVisible: s.panel,
	}
}

func (s *Store) notifyLocked() {
	snap := s.snapshotLocked()
	for _, fn := range s.subscribers {
		fn(snap)
	}
}
