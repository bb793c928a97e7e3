// Package store holds the selected location and the last committed analysis
// result, and notifies observers with immutable snapshots.
package store

import (
	"sync"

	"github.com/couchcryptid/wildfire-analysis/internal/domain"
)

// Snapshot is an immutable view of the store. Versions increase on every
// change to the corresponding slot.
type Snapshot struct {
	Location        *domain.GeoPoint
	Result          *domain.AnalysisResult
	LocationVersion uint64
	ResultVersion   uint64
}

// Store is the shared location and result state. The result slot is written
// only through CommitResult.
type Store struct {
	mu              sync.Mutex
	location        *domain.GeoPoint
	result          *domain.AnalysisResult
	locationVersion uint64
	resultVersion   uint64
	subscribers     map[chan Snapshot]struct{}
}

// New creates an empty store with no location selected.
func New() *Store {
	return &Store{subscribers: make(map[chan Snapshot]struct{})}
}

// Select replaces the selected location and notifies observers. The previous
// result stays visible until a run for the new point commits.
func (s *Store) Select(p domain.GeoPoint) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = &p
	s.locationVersion++
	s.publishLocked()
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// CommitResult stores r if the location is still the one at locationVersion.
// It reports false, writing nothing, when the location has changed since.
func (s *Store) CommitResult(locationVersion uint64, r domain.AnalysisResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.location == nil || s.locationVersion != locationVersion {
		return false
	}
	c := r.Clone()
	s.result = &c
	s.resultVersion++
	s.publishLocked()
	return true
}

// Subscribe returns a channel that receives the current snapshot and then the
// latest snapshot after each change. Slow readers only see the newest state.
// Call cancel to unsubscribe; it closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, ch)
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		LocationVersion: s.locationVersion,
		ResultVersion:   s.resultVersion,
	}
	if s.location != nil {
		loc := *s.location
		snap.Location = &loc
	}
	if s.result != nil {
		r := s.result.Clone()
		snap.Result = &r
	}
	return snap
}

// publishLocked replaces any undelivered snapshot with the current one.
func (s *Store) publishLocked() {
	for ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- s.snapshotLocked()
	}
}
