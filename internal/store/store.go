package store

import (
	"context"
	"errors"

	"voice-gateway/internal/calls"
)

var (
	ErrDuplicateKey = errors.New("store: call_id already exists")
	ErrNotFound     = errors.New("store: call not found")
)

// Filter narrows List and Count results. Zero values match everything.
type Filter struct {
	Status    calls.CallStatus
	Direction calls.Direction
}

// Factory builds the initial record when FindOrCreate misses.
type Factory func() calls.CallRecord

// Mutator rewrites a record in place. It runs with the per-key mutation
// path serialized, so it must be quick and must not perform I/O.
type Mutator func(r *calls.CallRecord)

// Store persists call records keyed by call_id.
//
// Concurrency contract:
//   - FindOrCreate is atomic per key: N concurrent callers for one unseen
//     call_id observe exactly one created record.
//   - Update serializes with other mutations of the same key, so transcript
//     appends keep arrival order. An update either fully lands or not at all.
//   - No ordering guarantee across distinct call_ids.
type Store interface {
	Create(ctx context.Context, record calls.CallRecord) error
	Find(ctx context.Context, callID string) (calls.CallRecord, error)
	FindOrCreate(ctx context.Context, callID string, factory Factory) (calls.CallRecord, bool, error)
	Update(ctx context.Context, callID string, mutate Mutator) (calls.CallRecord, error)

	// List returns records matching f ordered by start_time descending.
	List(ctx context.Context, f Filter, limit, offset int) ([]calls.CallRecord, error)
	Count(ctx context.Context, f Filter) (int, error)
	CountActive(ctx context.Context) (int, error)
}
