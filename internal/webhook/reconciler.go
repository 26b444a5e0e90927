package webhook

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"voice-gateway/internal/calls"
	"voice-gateway/internal/events"
	"voice-gateway/internal/limits"
	"voice-gateway/internal/store"
	"voice-gateway/internal/telephony"
	"voice-gateway/internal/voice"
)

// Spoken while an actively connected Dialect B call waits for input.
const listeningPrompt = "I'm listening. How can I assist you?"

// OutcomeKind selects the wire shape of the webhook response.
type OutcomeKind string

const (
	// OutcomeTalk is the Dialect A reply: {action:"talk", text, intent?}.
	OutcomeTalk OutcomeKind = "talk"
	// OutcomeEnded acknowledges a Dialect A terminal event.
	OutcomeEnded OutcomeKind = "ended"
	// OutcomeAck is the generic Dialect A acknowledgement.
	OutcomeAck OutcomeKind = "ack"
	// OutcomePrompt is a Dialect B TwiML document.
	OutcomePrompt OutcomeKind = "prompt"
)

// Outcome is the reconciler's response payload.
type Outcome struct {
	Kind        OutcomeKind
	Text        string
	Intent      calls.Intent
	AudioBase64 string
	TwiML       string
}

// twilioStatusMap translates a provider status progression string into our
// internal status. Unmapped statuses leave the record's status unchanged.
var twilioStatusMap = map[string]calls.CallStatus{
	"queued":      calls.CallStatusInitiated,
	"ringing":     calls.CallStatusInitiated,
	"in-progress": calls.CallStatusInProgress,
	"completed":   calls.CallStatusCompleted,
	"busy":        calls.CallStatusFailed,
	"no-answer":   calls.CallStatusFailed,
	"canceled":    calls.CallStatusFailed,
	"failed":      calls.CallStatusFailed,
}

// Reconciler folds normalized webhook events into call records.
//
// Write discipline: every fallible collaborator call (speech recognition,
// reply synthesis) happens before the single store.Update for the event, so a
// failure surfaces to the provider with the record's prior state intact.
type Reconciler struct {
	store      store.Store
	classifier calls.Classifier

	// synth and stt are optional; without them replies carry text only and
	// audio-only transcription events fail as recognition errors.
	synth voice.Synthesizer
	stt   voice.Transcriber

	publisher events.Publisher
	capacity  limits.Releaser

	clock func() time.Time
	log   *slog.Logger
}

type ReconcilerOption func(*Reconciler)

func WithSynthesizer(s voice.Synthesizer) ReconcilerOption {
	return func(r *Reconciler) { r.synth = s }
}

func WithTranscriber(t voice.Transcriber) ReconcilerOption {
	return func(r *Reconciler) { r.stt = t }
}

func WithPublisher(p events.Publisher) ReconcilerOption {
	return func(r *Reconciler) { r.publisher = p }
}

func WithCapacity(c limits.Releaser) ReconcilerOption {
	return func(r *Reconciler) { r.capacity = c }
}

func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.clock = now }
}

func NewReconciler(s store.Store, classifier calls.Classifier, log *slog.Logger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:      s,
		classifier: classifier,
		publisher:  events.FallbackPublisher{Log: log},
		capacity:   limits.NopReleaser{},
		clock:      time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle resolves the record for ev and applies it as a state transition.
func (r *Reconciler) Handle(ctx context.Context, ev Event) (Outcome, error) {
	_, created, err := r.store.FindOrCreate(ctx, ev.CallID, func() calls.CallRecord {
		return r.defaultRecord(ev)
	})
	if err != nil {
		return Outcome{}, err
	}
	if created {
		r.log.Info("call record created from webhook",
			"call_id", ev.CallID, "dialect", ev.Dialect, "from", ev.From)
	}

	switch ev.Dialect {
	case DialectStatusCallback:
		return r.applyStatusCallback(ctx, ev)
	default:
		return r.applyEvent(ctx, ev)
	}
}

// defaultRecord builds the record for a call first seen via webhook:
// an in-progress inbound call unless the payload explicitly says otherwise.
func (r *Reconciler) defaultRecord(ev Event) calls.CallRecord {
	direction := calls.DirectionInbound
	if ev.Direction != "" {
		direction = ev.Direction
	}
	phone := ev.From
	if phone == "" {
		phone = "unknown"
	}
	return calls.CallRecord{
		CallID:          ev.CallID,
		PhoneNumber:     phone,
		Direction:       direction,
		Status:          calls.CallStatusInProgress,
		StartTime:       r.clock().UTC(),
		Transcript:      []calls.TranscriptEntry{},
		ProviderCallRef: ev.ProviderCallRef,
	}
}

func (r *Reconciler) applyEvent(ctx context.Context, ev Event) (Outcome, error) {
	now := r.clock().UTC()

	switch ev.Type {
	case "call.started":
		// Opening turn: run the empty transcript through the same
		// classify-and-respond path as any other utterance.
		opening := calls.Respond(r.classifier.Classify(""))
		_, err := r.store.Update(ctx, ev.CallID, func(rec *calls.CallRecord) {
			if !rec.Status.IsTerminal() {
				rec.Status = calls.CallStatusInProgress
			}
			rec.Append(calls.SpeakerAI, opening)
		})
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: OutcomeTalk, Text: opening}, nil

	case "transcription":
		transcript := ev.Transcript
		if transcript == "" && ev.AudioBase64 != "" {
			if r.stt == nil {
				return Outcome{}, fmt.Errorf("%w: no transcriber configured", voice.ErrRecognition)
			}
			text, err := voice.TranscribeEncoded(ctx, r.stt, ev.AudioBase64)
			if err != nil {
				return Outcome{}, err
			}
			transcript = text
		}

		intent := r.classifier.Classify(transcript)
		reply := calls.Respond(intent)

		var replyAudio string
		if r.synth != nil {
			audio, err := r.synth.Synthesize(ctx, reply)
			if err != nil {
				return Outcome{}, err
			}
			replyAudio = base64.StdEncoding.EncodeToString(audio)
		}

		_, err := r.store.Update(ctx, ev.CallID, func(rec *calls.CallRecord) {
			rec.Append(calls.SpeakerCustomer, transcript)
			rec.Intent = intent
			rec.Append(calls.SpeakerAI, reply)
		})
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: OutcomeTalk, Text: reply, Intent: intent, AudioBase64: replyAudio}, nil

	case "call.ended", "call.completed":
		if _, err := r.finish(ctx, ev.CallID, calls.CallStatusCompleted, now); err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: OutcomeEnded}, nil

	default:
		// Unknown event types only ensure the record exists.
		return Outcome{Kind: OutcomeAck}, nil
	}
}

func (r *Reconciler) applyStatusCallback(ctx context.Context, ev Event) (Outcome, error) {
	now := r.clock().UTC()
	mapped, known := twilioStatusMap[ev.ProviderStatus]

	// The terminal snapshot must come from inside the serialized mutator:
	// concurrent retries of the same terminal callback would otherwise all
	// observe the pre-terminal record and each fire the side effects.
	var wasTerminal bool
	updated, err := r.store.Update(ctx, ev.CallID, func(rec *calls.CallRecord) {
		wasTerminal = rec.Status.IsTerminal()
		if rec.ProviderCallRef == "" {
			rec.ProviderCallRef = ev.ProviderCallRef
		}
		if ev.RecordingURL != "" {
			// Transcription of recordings is a future extension point; keep
			// an explicit placeholder so the turn is not lost.
			rec.Append(calls.SpeakerCustomer, "[recording received, transcription pending: "+ev.RecordingURL+"]")
		}
		if !known {
			return
		}
		if mapped.IsTerminal() {
			rec.Finish(mapped, now)
			return
		}
		if !rec.Status.IsTerminal() {
			rec.Status = mapped
		}
	})
	if err != nil {
		return Outcome{}, err
	}

	if !wasTerminal && updated.Status.IsTerminal() {
		r.onTerminal(ctx, updated)
	}

	// Only an actively connected call gets a spoken prompt; everything else is
	// acknowledged with an empty document.
	prompt := ""
	if ev.ProviderStatus == "in-progress" {
		prompt = listeningPrompt
	}
	twiml, err := telephony.RenderSay(prompt)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: OutcomePrompt, TwiML: twiml}, nil
}

// finish applies a terminal transition and fires terminal side effects when
// this event is the one that closed the call. The prior state is captured
// inside the mutator so exactly one of N concurrent terminal events wins.
func (r *Reconciler) finish(ctx context.Context, callID string, status calls.CallStatus, now time.Time) (calls.CallRecord, error) {
	var wasTerminal bool
	updated, err := r.store.Update(ctx, callID, func(rec *calls.CallRecord) {
		wasTerminal = rec.Status.IsTerminal()
		rec.Finish(status, now)
	})
	if err != nil {
		return calls.CallRecord{}, err
	}
	if !wasTerminal && updated.Status.IsTerminal() {
		r.onTerminal(ctx, updated)
	}
	return updated, nil
}

// onTerminal publishes the lifecycle event and frees the outbound slot.
// Both are best-effort: the record is already durable.
func (r *Reconciler) onTerminal(ctx context.Context, record calls.CallRecord) {
	kind := events.KindCallCompleted
	if record.Status == calls.CallStatusFailed {
		kind = events.KindCallFailed
	}
	if err := r.publisher.Publish(ctx, kind, record); err != nil {
		r.log.Warn("lifecycle publish failed", "call_id", record.CallID, "err", err)
	}
	if record.Direction == calls.DirectionOutbound {
		if err := r.capacity.Release(ctx); err != nil {
			r.log.Warn("call cap release failed", "call_id", record.CallID, "err", err)
		}
	}
}
