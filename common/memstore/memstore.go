// Package memstore is an in-process implementation of the venue, override and
// hold repositories. It backs STORAGE_DRIVER=memory and the use-case tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/seatmap-services/common/models"
)

type txMarker struct{ s *Store }

// Store keeps every record in maps guarded by one mutex. A transaction holds
// the mutex from start to finish and restores a snapshot when it fails.
type Store struct {
	mu        sync.Mutex
	venues    map[string]models.Venue
	mappings  map[string]models.Mapping
	zones     map[string]models.Zone
	seats     map[string]models.Seat
	overrides map[string]models.Override
	failures  map[string]error
}

func New() *Store {
	return &Store{
		venues:    make(map[string]models.Venue),
		mappings:  make(map[string]models.Mapping),
		zones:     make(map[string]models.Zone),
		seats:     make(map[string]models.Seat),
		overrides: make(map[string]models.Override),
		failures:  make(map[string]error),
	}
}

// FailOn makes the named write operation (for example "UpsertSeat") return
// err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) inTx(ctx context.Context) bool {
	m, ok := ctx.Value(txMarker{}).(txMarker)
	return ok && m.s == s
}

// lock acquires the mutex unless ctx already belongs to a transaction of s.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

// WithTx runs fn with exclusive access to the store.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	return fn(context.WithValue(ctx, txMarker{}, txMarker{s: s}))
}

type snapshot struct {
	venues    map[string]models.Venue
	mappings  map[string]models.Mapping
	zones     map[string]models.Zone
	seats     map[string]models.Seat
	overrides map[string]models.Override
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		venues:    copyMap(s.venues),
		mappings:  copyMap(s.mappings),
		zones:     copyMap(s.zones),
		seats:     copyMap(s.seats),
		overrides: copyMap(s.overrides),
	}
}

func (s *Store) restore(snap snapshot) {
	s.venues = snap.venues
	s.mappings = snap.mappings
	s.zones = snap.zones
	s.seats = snap.seats
	s.overrides = snap.overrides
}

// Records are stored by value; pointer fields are never mutated in place, so
// a shallow copy of each map is a consistent snapshot.
func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedValues[V any](in map[string]V, keep func(V) bool) []V {
	keys := make([]string, 0, len(in))
	for k, v := range in {
		if keep == nil || keep(v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, in[k])
	}
	return out
}

func timeCopy(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
