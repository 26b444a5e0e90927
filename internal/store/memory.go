package store

import (
	"context"
	"sort"
	"sync"

	"voice-gateway/internal/calls"
)

// MemoryStore is an in-memory Store for tests and simulation mode.
//
// A single mutex guards the map and serializes all per-key mutations, which
// trivially satisfies the store's atomicity contract. Records are copied on
// the way in and out so callers never alias stored state.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]calls.CallRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]calls.CallRecord)}
}

func (s *MemoryStore) Create(ctx context.Context, record calls.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.CallID]; ok {
		return ErrDuplicateKey
	}
	s.records[record.CallID] = cloneRecord(record)
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, callID string) (calls.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[callID]
	if !ok {
		return calls.CallRecord{}, ErrNotFound
	}
	return cloneRecord(r), nil
}

func (s *MemoryStore) FindOrCreate(ctx context.Context, callID string, factory Factory) (calls.CallRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[callID]; ok {
		return cloneRecord(r), false, nil
	}
	r := factory()
	r.CallID = callID
	s.records[callID] = cloneRecord(r)
	return r, true, nil
}

func (s *MemoryStore) Update(ctx context.Context, callID string, mutate Mutator) (calls.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[callID]
	if !ok {
		return calls.CallRecord{}, ErrNotFound
	}
	next := cloneRecord(r)
	mutate(&next)
	next.CallID = callID // identity is immutable
	s.records[callID] = cloneRecord(next)
	return next, nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter, limit, offset int) ([]calls.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]calls.CallRecord, 0)
	for _, r := range s.records {
		if !matches(r, f) {
			continue
		}
		out = append(out, cloneRecord(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].CallID > out[j].CallID
		}
		return out[i].StartTime.After(out[j].StartTime)
	})

	if offset >= len(out) {
		return []calls.CallRecord{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, f Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if matches(r, f) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountActive(ctx context.Context) (int, error) {
	return s.Count(ctx, Filter{Status: calls.CallStatusInProgress})
}

func matches(r calls.CallRecord, f Filter) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Direction != "" && r.Direction != f.Direction {
		return false
	}
	return true
}

func cloneRecord(r calls.CallRecord) calls.CallRecord {
	out := r
	if r.Transcript != nil {
		out.Transcript = make([]calls.TranscriptEntry, len(r.Transcript))
		copy(out.Transcript, r.Transcript)
	}
	if r.EndTime != nil {
		t := *r.EndTime
		out.EndTime = &t
	}
	return out
}
