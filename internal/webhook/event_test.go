package webhook

import (
	"testing"

	"voice-gateway/internal/calls"
)

func TestNormalize_DialectSniff(t *testing.T) {
	// CallSid present selects the status-callback dialect.
	ev := Normalize("", map[string]any{"CallSid": "CA1", "CallStatus": "Ringing"})
	if ev.Dialect != DialectStatusCallback {
		t.Fatalf("expected status callback dialect, got %q", ev.Dialect)
	}
	if ev.ProviderStatus != "ringing" {
		t.Fatalf("expected lowercased status, got %q", ev.ProviderStatus)
	}
	if ev.CallID != "CA1" || ev.ProviderCallRef != "CA1" {
		t.Fatalf("expected CallSid fallback identity, got %+v", ev)
	}

	// Absent CallSid defaults to the event dialect even for unknown shapes.
	ev = Normalize("", map[string]any{"something": "else"})
	if ev.Dialect != DialectEvent {
		t.Fatalf("expected event dialect fallback, got %q", ev.Dialect)
	}
	if ev.CallID == "" {
		t.Fatalf("expected generated call_id")
	}

	// Nil payload never panics.
	ev = Normalize("", nil)
	if ev.Dialect != DialectEvent || ev.CallID == "" {
		t.Fatalf("unexpected event for nil payload: %+v", ev)
	}
}

func TestNormalize_QueryCallIDWins(t *testing.T) {
	ev := Normalize("q1", map[string]any{"call_id": "b1", "event": "transcription"})
	if ev.CallID != "q1" {
		t.Fatalf("expected query call_id to win, got %q", ev.CallID)
	}

	ev = Normalize("", map[string]any{"call_id": "b1"})
	if ev.CallID != "b1" {
		t.Fatalf("expected body call_id, got %q", ev.CallID)
	}

	ev = Normalize("q1", map[string]any{"CallSid": "CA1"})
	if ev.CallID != "q1" || ev.ProviderCallRef != "CA1" {
		t.Fatalf("expected query id with provider ref kept, got %+v", ev)
	}
}

func TestNormalize_EventFields(t *testing.T) {
	ev := Normalize("c1", map[string]any{
		"event":      "transcription",
		"from":       "+15551230000",
		"to":         "+15559990000",
		"transcript": "I need help",
		"audio":      "b64",
	})
	if ev.Type != "transcription" || ev.Transcript != "I need help" || ev.AudioBase64 != "b64" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.From != "+15551230000" || ev.To != "+15559990000" {
		t.Fatalf("unexpected numbers %+v", ev)
	}
	if ev.Direction != "" {
		t.Fatalf("direction should be empty unless stated, got %q", ev.Direction)
	}
}

func TestNormalize_Direction(t *testing.T) {
	ev := Normalize("c1", map[string]any{"CallSid": "CA1", "Direction": "outbound-api"})
	if ev.Direction != calls.DirectionOutbound {
		t.Fatalf("expected outbound, got %q", ev.Direction)
	}
	ev = Normalize("c1", map[string]any{"CallSid": "CA1", "Direction": "inbound"})
	if ev.Direction != calls.DirectionInbound {
		t.Fatalf("expected inbound, got %q", ev.Direction)
	}
	ev = Normalize("c1", map[string]any{"direction": "outbound"})
	if ev.Direction != calls.DirectionOutbound {
		t.Fatalf("expected outbound from body field, got %q", ev.Direction)
	}
}

func TestNormalize_NonStringValuesIgnored(t *testing.T) {
	ev := Normalize("c1", map[string]any{"event": 42, "transcript": []string{"x"}})
	if ev.Type != "" || ev.Transcript != "" {
		t.Fatalf("expected non-string fields ignored, got %+v", ev)
	}
}
