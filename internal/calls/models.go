package calls

import "time"

// CallRecord is the single persisted entity for one phone call.
//
// Identity invariant: CallID is assigned once at creation and never reassigned;
// it is the only lookup key.
//
// NOTE: Provider-specific identifiers (like a Twilio CallSid) belong in
// ProviderCallRef, not mixed into the identity of this provider-agnostic model.

type CallRecord struct {
	CallID      string `json:"call_id" db:"call_id"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`

	Direction Direction  `json:"direction" db:"direction"`
	Status    CallStatus `json:"status" db:"status"`

	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" db:"end_time"`

	// Transcript is an append-only log of turns in arrival order.
	Transcript []TranscriptEntry `json:"transcript" db:"transcript"`

	// Intent is the last classified intent for the call, overwritten on each
	// classified customer utterance.
	Intent Intent `json:"intent,omitempty" db:"intent"`

	// ProviderCallRef is the telephony provider's identifier for this call,
	// when known (e.g. Twilio CallSid, Vapi call id).
	ProviderCallRef string `json:"provider_call_ref,omitempty" db:"provider_call_ref"`
}

// TranscriptEntry is one conversational turn.
type TranscriptEntry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

type Speaker string

const (
	SpeakerAI       Speaker = "AI"
	SpeakerCustomer Speaker = "Customer"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type CallStatus string

const (
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
)

// IsTerminal reports whether s accepts no further status transitions.
func (s CallStatus) IsTerminal() bool {
	return s == CallStatusCompleted || s == CallStatusFailed
}

// Append adds a turn to the transcript. Entries are never rewritten.
func (r *CallRecord) Append(speaker Speaker, text string) {
	r.Transcript = append(r.Transcript, TranscriptEntry{Speaker: speaker, Text: text})
}

// Finish moves the record to a terminal status and stamps EndTime exactly once.
// Calling Finish on an already-terminal record is a no-op.
func (r *CallRecord) Finish(status CallStatus, at time.Time) {
	if r.Status.IsTerminal() || !status.IsTerminal() {
		return
	}
	r.Status = status
	if r.EndTime == nil {
		t := at
		r.EndTime = &t
	}
}
