package webhook

import (
	"strings"

	"voice-gateway/internal/calls"

	"github.com/google/uuid"
)

// The gateway reconciles two webhook dialects:
//
//   - Dialect A ("event"): structured JSON events carrying an explicit event
//     name (call.started, transcription, call.ended, ...). Sent by Vapi-style
//     providers and by our own outbound-call TwiML redirect.
//   - Dialect B ("status callback"): Twilio status callbacks identified by a
//     CallSid session field and a CallStatus progression string.
//
// Dialect detection is a structural sniff on the decoded payload, decided once
// here at the boundary. The reconciler never inspects raw payload shapes.

type Dialect string

const (
	DialectEvent          Dialect = "event"
	DialectStatusCallback Dialect = "status_callback"
)

// Event is the canonical, dialect-tagged form of one inbound webhook delivery.
type Event struct {
	Dialect Dialect
	CallID  string

	// Type is the Dialect A event name.
	Type string

	// ProviderStatus is the Dialect B call status string.
	ProviderStatus string

	From string
	To   string

	// Direction is set only when the payload explicitly states one.
	Direction calls.Direction

	Transcript   string
	AudioBase64  string
	RecordingURL string

	ProviderCallRef string
}

// Normalize converts a decoded payload plus the request's call_id query
// parameter into a canonical Event. The query parameter takes precedence over
// any body field; Dialect B falls back to the provider session id, and an
// event with no identity at all gets a fresh one.
//
// A payload of unknown shape never fails: absence of the session field means
// Dialect A, and unknown Dialect A event types take the reconciler's generic
// acknowledgement path.
func Normalize(queryCallID string, payload map[string]any) Event {
	if hasKey(payload, "CallSid") {
		return normalizeStatusCallback(queryCallID, payload)
	}
	return normalizeEvent(queryCallID, payload)
}

func normalizeEvent(queryCallID string, payload map[string]any) Event {
	ev := Event{
		Dialect:      DialectEvent,
		Type:         str(payload, "event"),
		From:         str(payload, "from"),
		To:           str(payload, "to"),
		Transcript:   str(payload, "transcript"),
		AudioBase64:  str(payload, "audio"),
		RecordingURL: str(payload, "recording_url"),
		Direction:    parseDirection(str(payload, "direction")),
	}
	ev.CallID = firstNonEmpty(queryCallID, str(payload, "call_id"), uuid.NewString())
	return ev
}

func normalizeStatusCallback(queryCallID string, payload map[string]any) Event {
	sid := str(payload, "CallSid")
	ev := Event{
		Dialect:         DialectStatusCallback,
		ProviderStatus:  strings.ToLower(str(payload, "CallStatus")),
		From:            str(payload, "From"),
		To:              str(payload, "To"),
		RecordingURL:    str(payload, "RecordingUrl"),
		ProviderCallRef: sid,
		Direction:       parseDirection(str(payload, "Direction")),
	}
	ev.CallID = firstNonEmpty(queryCallID, str(payload, "call_id"), sid, uuid.NewString())
	return ev
}

func parseDirection(s string) calls.Direction {
	switch {
	case s == "":
		return ""
	case strings.HasPrefix(strings.ToLower(s), "outbound"):
		return calls.DirectionOutbound
	default:
		return calls.DirectionInbound
	}
}

func hasKey(payload map[string]any, key string) bool {
	if payload == nil {
		return false
	}
	_, ok := payload[key]
	return ok
}

func str(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
