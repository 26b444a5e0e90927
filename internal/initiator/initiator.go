// Package initiator places outbound calls and owns the record's early life:
// created before any provider work, downgraded to failed when a collaborator
// lets us down, advanced once the provider accepts the dial.
package initiator

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"voice-gateway/internal/calls"
	"voice-gateway/internal/events"
	"voice-gateway/internal/store"
	"voice-gateway/internal/telephony"
	"voice-gateway/internal/voice"

	"github.com/google/uuid"
)

// Capacity bounds concurrent outbound calls.
type Capacity interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

type nopCapacity struct{}

func (nopCapacity) Acquire(ctx context.Context) error { return nil }
func (nopCapacity) Release(ctx context.Context) error { return nil }

// Placement is what the caller gets back for a placed call.
type Placement struct {
	CallID      string           `json:"call_id"`
	Status      calls.CallStatus `json:"status"`
	AudioBase64 string           `json:"audio_base64"`
	Message     string           `json:"message"`
}

type Service struct {
	store     store.Store
	synth     voice.Synthesizer
	dialer    telephony.Dialer
	publisher events.Publisher
	capacity  Capacity

	callbackURL string
	dialTimeout time.Duration

	clock func() time.Time
	log   *slog.Logger
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithCapacity(c Capacity) Option {
	return func(s *Service) { s.capacity = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.clock = now }
}

func WithDialTimeout(d time.Duration) Option {
	return func(s *Service) { s.dialTimeout = d }
}

func NewService(st store.Store, synth voice.Synthesizer, dialer telephony.Dialer, callbackURL string, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:       st,
		synth:       synth,
		dialer:      dialer,
		publisher:   events.FallbackPublisher{Log: log},
		capacity:    nopCapacity{},
		callbackURL: callbackURL,
		dialTimeout: 15 * time.Second,
		clock:       time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initiate creates the call record, synthesizes the opening message, and
// kicks off the provider dial in the background.
//
// The record always outlives a failure here: a synthesis error downgrades it
// to failed and surfaces, but Find(call_id) still resolves it.
func (s *Service) Initiate(ctx context.Context, phoneNumber, message string) (Placement, error) {
	if phoneNumber == "" {
		return Placement{}, fmt.Errorf("initiator: phone_number is required")
	}
	if message == "" {
		message = "Hello, how can I help you today?"
	}

	if err := s.capacity.Acquire(ctx); err != nil {
		return Placement{}, err
	}

	callID := uuid.NewString()
	now := s.clock().UTC()
	record := calls.CallRecord{
		CallID:      callID,
		PhoneNumber: phoneNumber,
		Direction:   calls.DirectionOutbound,
		Status:      calls.CallStatusInitiated,
		StartTime:   now,
		Transcript:  []calls.TranscriptEntry{{Speaker: calls.SpeakerAI, Text: message}},
	}
	if err := s.store.Create(ctx, record); err != nil {
		_ = s.capacity.Release(ctx)
		return Placement{}, err
	}
	if err := s.publisher.Publish(ctx, events.KindCallInitiated, record); err != nil {
		s.log.Warn("lifecycle publish failed", "call_id", callID, "err", err)
	}

	audio, err := s.synth.Synthesize(ctx, message)
	if err != nil {
		s.failCall(ctx, callID)
		// Surface the call_id so the caller can still resolve the failed record.
		return Placement{CallID: callID, Status: calls.CallStatusFailed},
			fmt.Errorf("initiator: opening message synthesis for %s: %w", callID, err)
	}

	// Dial in the background; the HTTP caller should not wait on the provider.
	go s.dial(context.WithoutCancel(ctx), callID, phoneNumber, message)

	return Placement{
		CallID:      callID,
		Status:      calls.CallStatusInitiated,
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
		Message:     fmt.Sprintf("Call to %s is being processed", phoneNumber),
	}, nil
}

func (s *Service) dial(ctx context.Context, callID, phoneNumber, message string) {
	dialCtx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	defer cancel()

	res, err := s.dialer.Dial(dialCtx, telephony.DialRequest{
		CallID:      callID,
		To:          phoneNumber,
		Message:     message,
		CallbackURL: s.callbackURL,
	})
	if err != nil || !res.Accepted {
		s.log.Warn("outbound dial failed", "call_id", callID, "err", err)
		s.failCall(ctx, callID)
		if perr := s.publisher.Publish(ctx, events.KindCallDialResolved, map[string]any{"call_id": callID, "accepted": false}); perr != nil {
			s.log.Warn("lifecycle publish failed", "call_id", callID, "err", perr)
		}
		return
	}

	// Dial acceptance advances the record to in_progress. That conflates
	// "provider queued the call" with "call is connected"; webhook status
	// callbacks correct it as real progression events arrive.
	//
	// A webhook may already have advanced or even finished this call; a late
	// dial resolution must never resurrect a terminal record.
	_, err = s.store.Update(ctx, callID, func(rec *calls.CallRecord) {
		if rec.ProviderCallRef == "" {
			rec.ProviderCallRef = res.ProviderCallRef
		}
		if !rec.Status.IsTerminal() {
			rec.Status = calls.CallStatusInProgress
		}
	})
	if err != nil {
		s.log.Error("dial resolution update failed", "call_id", callID, "err", err)
		return
	}
	if perr := s.publisher.Publish(ctx, events.KindCallDialResolved, map[string]any{"call_id": callID, "accepted": true, "provider_call_ref": res.ProviderCallRef}); perr != nil {
		s.log.Warn("lifecycle publish failed", "call_id", callID, "err", perr)
	}
}

// failCall downgrades the record and frees the capacity slot. Terminal records
// are left alone (the slot was already released on their terminal transition).
func (s *Service) failCall(ctx context.Context, callID string) {
	now := s.clock().UTC()
	var wasTerminal bool
	updated, err := s.store.Update(ctx, callID, func(rec *calls.CallRecord) {
		wasTerminal = rec.Status.IsTerminal()
		rec.Finish(calls.CallStatusFailed, now)
	})
	if err != nil {
		s.log.Error("failure downgrade failed", "call_id", callID, "err", err)
		return
	}
	if !wasTerminal && updated.Status == calls.CallStatusFailed {
		if err := s.capacity.Release(ctx); err != nil {
			s.log.Warn("call cap release failed", "call_id", callID, "err", err)
		}
		if perr := s.publisher.Publish(ctx, events.KindCallFailed, updated); perr != nil {
			s.log.Warn("lifecycle publish failed", "call_id", callID, "err", perr)
		}
	}
}
