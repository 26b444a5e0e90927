package initiator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"voice-gateway/internal/calls"
	"voice-gateway/internal/store"
	"voice-gateway/internal/telephony"
	"voice-gateway/internal/voice"
)

// recordingDialer captures the dial request and signals completion so tests
// can wait for the background update deterministically.
type recordingDialer struct {
	mu     sync.Mutex
	reqs   []telephony.DialRequest
	result telephony.DialResult
	err    error
	done   chan struct{}
}

func newRecordingDialer(result telephony.DialResult, err error) *recordingDialer {
	return &recordingDialer{result: result, err: err, done: make(chan struct{}, 8)}
}

func (d *recordingDialer) Name() string { return "recording" }

func (d *recordingDialer) Dial(ctx context.Context, req telephony.DialRequest) (telephony.DialResult, error) {
	d.mu.Lock()
	d.reqs = append(d.reqs, req)
	d.mu.Unlock()
	d.done <- struct{}{}
	return d.result, d.err
}

func waitDial(t *testing.T, d *recordingDialer) {
	t.Helper()
	select {
	case <-d.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("dial never happened")
	}
	// Give the post-dial store update a moment to land.
	time.Sleep(20 * time.Millisecond)
}

func TestInitiate_HappyPath(t *testing.T) {
	s := store.NewMemoryStore()
	d := newRecordingDialer(telephony.DialResult{Accepted: true, ProviderCallRef: "CA1"}, nil)
	svc := NewService(s, voice.StaticSynthesizer{Audio: []byte("mp3")}, d, "https://gw/webhooks/voice", slog.Default())

	p, err := svc.Initiate(context.Background(), "+15551234567", "Hi there")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p.CallID == "" || p.Status != calls.CallStatusInitiated || p.AudioBase64 == "" {
		t.Fatalf("unexpected placement %+v", p)
	}

	waitDial(t, d)

	rec, err := s.Find(context.Background(), p.CallID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rec.Status != calls.CallStatusInProgress || rec.ProviderCallRef != "CA1" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Direction != calls.DirectionOutbound {
		t.Fatalf("expected outbound direction")
	}
	if len(rec.Transcript) != 1 || rec.Transcript[0].Speaker != calls.SpeakerAI || rec.Transcript[0].Text != "Hi there" {
		t.Fatalf("expected opening AI line, got %+v", rec.Transcript)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.reqs) != 1 || d.reqs[0].CallID != p.CallID || d.reqs[0].To != "+15551234567" {
		t.Fatalf("unexpected dial request %+v", d.reqs)
	}
}

func TestInitiate_SynthesisFailureKeepsRecordVisible(t *testing.T) {
	s := store.NewMemoryStore()
	synthErr := errors.New("vendor down")
	d := newRecordingDialer(telephony.DialResult{Accepted: true}, nil)
	svc := NewService(s, voice.StaticSynthesizer{Err: synthErr}, d, "https://gw/webhooks/voice", slog.Default())

	placement, err := svc.Initiate(context.Background(), "+15551234567", "Hi there")
	if !errors.Is(err, synthErr) {
		t.Fatalf("expected synthesis error, got %v", err)
	}
	if placement.CallID == "" || placement.Status != calls.CallStatusFailed {
		t.Fatalf("expected failed placement with call_id, got %+v", placement)
	}

	// The record exists and is failed, resolvable by call_id.
	recs, lerr := s.List(context.Background(), store.Filter{Status: calls.CallStatusFailed}, 10, 0)
	if lerr != nil || len(recs) != 1 {
		t.Fatalf("expected one failed record, got %v %+v", lerr, recs)
	}
	if recs[0].EndTime == nil {
		t.Fatalf("expected end_time on failed record")
	}

	// No dial was attempted.
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.reqs) != 0 {
		t.Fatalf("dial should not happen after synthesis failure")
	}
}

func TestInitiate_DialFailureDowngradesRecord(t *testing.T) {
	s := store.NewMemoryStore()
	d := newRecordingDialer(telephony.DialResult{}, telephony.ErrDialFailed)
	svc := NewService(s, voice.StaticSynthesizer{}, d, "https://gw/webhooks/voice", slog.Default())

	p, err := svc.Initiate(context.Background(), "+15551234567", "Hi")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	waitDial(t, d)

	rec, _ := s.Find(context.Background(), p.CallID)
	if rec.Status != calls.CallStatusFailed || rec.EndTime == nil {
		t.Fatalf("expected failed record, got %+v", rec)
	}
}

func TestInitiate_LateDialResolutionDoesNotResurrectTerminalRecord(t *testing.T) {
	s := store.NewMemoryStore()
	d := newRecordingDialer(telephony.DialResult{Accepted: true, ProviderCallRef: "CA1"}, nil)

	base := time.Unix(1700000000, 0).UTC()
	svc := NewService(s, voice.StaticSynthesizer{}, d, "https://gw/webhooks/voice", slog.Default(),
		WithClock(func() time.Time { return base }))

	p, err := svc.Initiate(context.Background(), "+15551234567", "Hi")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// A webhook finishes the call before the dialer's update lands.
	waitDial(t, d)
	if _, err := s.Update(context.Background(), p.CallID, func(rec *calls.CallRecord) {
		rec.Finish(calls.CallStatusCompleted, base.Add(time.Minute))
	}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// Rerun the dial resolution path directly against the terminal record.
	svc.dial(context.Background(), p.CallID, "+15551234567", "Hi")
	rec, _ := s.Find(context.Background(), p.CallID)
	if rec.Status != calls.CallStatusCompleted {
		t.Fatalf("terminal record resurrected: %+v", rec)
	}
}

type fakeCapacity struct {
	mu       sync.Mutex
	acquired int
	released int
	err      error
}

func (c *fakeCapacity) Acquire(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.acquired++
	return nil
}

func (c *fakeCapacity) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
	return nil
}

func TestInitiate_CapacityExhaustedRejectsBeforeCreate(t *testing.T) {
	s := store.NewMemoryStore()
	capErr := errors.New("cap reached")
	svc := NewService(s, voice.StaticSynthesizer{}, newRecordingDialer(telephony.DialResult{Accepted: true}, nil),
		"https://gw/webhooks/voice", slog.Default(), WithCapacity(&fakeCapacity{err: capErr}))

	_, err := svc.Initiate(context.Background(), "+15551234567", "Hi")
	if !errors.Is(err, capErr) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if n, _ := s.Count(context.Background(), store.Filter{}); n != 0 {
		t.Fatalf("no record should exist when capacity is exhausted")
	}
}

func TestInitiate_DialFailureReleasesCapacity(t *testing.T) {
	s := store.NewMemoryStore()
	capacity := &fakeCapacity{}
	d := newRecordingDialer(telephony.DialResult{}, telephony.ErrDialFailed)
	svc := NewService(s, voice.StaticSynthesizer{}, d, "https://gw/webhooks/voice", slog.Default(), WithCapacity(capacity))

	if _, err := svc.Initiate(context.Background(), "+15551234567", "Hi"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	waitDial(t, d)

	capacity.mu.Lock()
	defer capacity.mu.Unlock()
	if capacity.acquired != 1 || capacity.released != 1 {
		t.Fatalf("expected one acquire and one release, got %+v", capacity)
	}
}
