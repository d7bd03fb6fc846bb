// ABOUTME: Versioned bundle of routing table, settings and worker set
// ABOUTME: Store swaps whole snapshots atomically so readers never see a partial pass

package routing

import (
	"sync/atomic"
	"time"
)

// Snapshot is everything a call needs from one aggregation pass.
type Snapshot struct {
	Version  uint64
	Settings Settings
	Table    *Table
	// Workers names the workers running when the pass finished.
	Workers []string
	// Source is the server list the pass was loaded from, empty if none was found.
	Source  string
	BuiltAt time.Time
}

// Store holds the current snapshot.
type Store struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
}

// NewStore returns a Store holding initial, which becomes version 1.
func NewStore(initial *Snapshot) *Store {
	s := &Store{}
	s.Swap(initial)
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}

// Swap stamps snap with the next version and makes it current.
func (s *Store) Swap(snap *Snapshot) *Snapshot {
	snap.Version = s.version.Add(1)
	if snap.BuiltAt.IsZero() {
		snap.BuiltAt = time.Now()
	}
	s.current.Store(snap)
	return snap
}
