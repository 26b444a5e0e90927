package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"voice-gateway/internal/calls"
)

func newRecord(id string, start time.Time) calls.CallRecord {
	return calls.CallRecord{
		CallID:      id,
		PhoneNumber: "+15551234567",
		Direction:   calls.DirectionInbound,
		Status:      calls.CallStatusInProgress,
		StartTime:   start,
	}
}

func TestMemoryStore_CreateRejectsDuplicates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	if err := s.Create(ctx, newRecord("c1", now)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := s.Create(ctx, newRecord("c1", now)); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := s.Find(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_FindOrCreateConcurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	const n = 64
	created := make(chan bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, wasCreated, err := s.FindOrCreate(ctx, "c1", func() calls.CallRecord {
				return newRecord("c1", now)
			})
			if err != nil {
				t.Errorf("unexpected err: %v", err)
				return
			}
			created <- wasCreated
		}()
	}
	wg.Wait()
	close(created)

	creations := 0
	for c := range created {
		if c {
			creations++
		}
	}
	if creations != 1 {
		t.Fatalf("expected exactly one creation, got %d", creations)
	}
	if n, _ := s.Count(ctx, Filter{}); n != 1 {
		t.Fatalf("expected one record, got %d", n)
	}
}

func TestMemoryStore_ConcurrentAppendsKeepOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	if err := s.Create(ctx, newRecord("c1", now)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Update(ctx, "c1", func(r *calls.CallRecord) {
				r.Append(calls.SpeakerCustomer, fmt.Sprintf("turn %d", i))
			})
			if err != nil {
				t.Errorf("unexpected err: %v", err)
			}
		}(i)
	}
	wg.Wait()

	r, err := s.Find(ctx, "c1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(r.Transcript) != n {
		t.Fatalf("expected %d transcript entries, got %d", n, len(r.Transcript))
	}
	seen := map[string]bool{}
	for _, e := range r.Transcript {
		if e.Text == "" || seen[e.Text] {
			t.Fatalf("interleaved or duplicated entry: %+v", r.Transcript)
		}
		seen[e.Text] = true
	}
}

func TestMemoryStore_UpdateDoesNotAliasCallerState(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()
	rec := newRecord("c1", now)
	rec.Append(calls.SpeakerAI, "hello")
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	rec.Transcript[0].Text = "tampered"
	got, _ := s.Find(ctx, "c1")
	if got.Transcript[0].Text != "hello" {
		t.Fatalf("stored record aliased caller slice")
	}
}

func TestMemoryStore_ListOrderFilterPagination(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	for i := 0; i < 5; i++ {
		r := newRecord(fmt.Sprintf("c%d", i), base.Add(time.Duration(i)*time.Minute))
		if i%2 == 0 {
			r.Direction = calls.DirectionOutbound
			r.Status = calls.CallStatusCompleted
		}
		if err := s.Create(ctx, r); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}

	all, err := s.List(ctx, Filter{}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 records, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].StartTime.After(all[i-1].StartTime) {
			t.Fatalf("expected start_time descending order")
		}
	}

	page, err := s.List(ctx, Filter{}, 2, 2)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(page) != 2 || page[0].CallID != "c2" {
		t.Fatalf("unexpected page: %+v", page)
	}

	outbound, err := s.List(ctx, Filter{Direction: calls.DirectionOutbound}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(outbound) != 3 {
		t.Fatalf("expected 3 outbound records, got %d", len(outbound))
	}

	active, err := s.CountActive(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if active != 2 {
		t.Fatalf("expected 2 active records, got %d", active)
	}
}
