// Package reporting aggregates call record counts for the query API.
package reporting

import (
	"context"
	"fmt"

	"voice-gateway/internal/calls"
	"voice-gateway/internal/store"
)

// Counter is the slice of the store the aggregator needs.
type Counter interface {
	Count(ctx context.Context, f store.Filter) (int, error)
	CountActive(ctx context.Context) (int, error)
}

// Summary is a point-in-time aggregate over all call records.
type Summary struct {
	TotalCalls  int `json:"total_calls"`
	ActiveCalls int `json:"active_calls"`

	ByStatus    map[calls.CallStatus]int `json:"by_status"`
	ByDirection map[calls.Direction]int  `json:"by_direction"`
}

type Service struct {
	counter Counter
}

func NewService(counter Counter) *Service {
	return &Service{counter: counter}
}

// Summarize runs one count per status and direction bucket. The buckets are
// separate queries, so the numbers may be skewed by writes that land between
// them; callers wanting exact snapshots should query the store directly.
func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	out := Summary{
		ByStatus:    make(map[calls.CallStatus]int, 4),
		ByDirection: make(map[calls.Direction]int, 2),
	}

	total, err := s.counter.Count(ctx, store.Filter{})
	if err != nil {
		return Summary{}, fmt.Errorf("reporting: total count: %w", err)
	}
	out.TotalCalls = total

	active, err := s.counter.CountActive(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("reporting: active count: %w", err)
	}
	out.ActiveCalls = active

	for _, status := range []calls.CallStatus{
		calls.CallStatusInitiated,
		calls.CallStatusInProgress,
		calls.CallStatusCompleted,
		calls.CallStatusFailed,
	} {
		n, err := s.counter.Count(ctx, store.Filter{Status: status})
		if err != nil {
			return Summary{}, fmt.Errorf("reporting: count status %s: %w", status, err)
		}
		out.ByStatus[status] = n
	}

	for _, direction := range []calls.Direction{calls.DirectionInbound, calls.DirectionOutbound} {
		n, err := s.counter.Count(ctx, store.Filter{Direction: direction})
		if err != nil {
			return Summary{}, fmt.Errorf("reporting: count direction %s: %w", direction, err)
		}
		out.ByDirection[direction] = n
	}

	return out, nil
}
