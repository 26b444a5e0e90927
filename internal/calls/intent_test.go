package calls

import (
	"testing"
	"time"
)

func timeUnix(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func TestClassify_Keywords(t *testing.T) {
	cases := []struct {
		transcript string
		want       Intent
	}{
		{"I need help with my account", IntentSupport},
		{"there is a PROBLEM with billing", IntentSupport},
		{"can I book an appointment", IntentSchedule},
		{"let's set up a meeting", IntentSchedule},
		{"thank you so much", IntentGratitude},
		{"I appreciate it", IntentGratitude},
		{"let me speak to a human", IntentAgentRequest},
		{"get me a representative", IntentAgentRequest},
		{"please cancel my order", IntentTerminate},
		{"stop calling me", IntentTerminate},
		{"hello there", IntentGeneral},
		{"", IntentGeneral},
	}
	var c KeywordClassifier
	for _, tc := range cases {
		if got := c.Classify(tc.transcript); got != tc.want {
			t.Fatalf("Classify(%q) = %q, want %q", tc.transcript, got, tc.want)
		}
	}
}

func TestClassify_PriorityOrder(t *testing.T) {
	var c KeywordClassifier

	// "thanks for your help" matches both support and gratitude vocabularies;
	// support is checked first and must win regardless of word position.
	if got := c.Classify("thanks for your help"); got != IntentSupport {
		t.Fatalf("expected support to win over gratitude, got %q", got)
	}
	// schedule beats agent_request.
	if got := c.Classify("I want to speak about an appointment"); got != IntentSchedule {
		t.Fatalf("expected schedule to win over agent_request, got %q", got)
	}
	// gratitude beats terminate.
	if got := c.Classify("thanks, you can end the call"); got != IntentGratitude {
		t.Fatalf("expected gratitude to win over terminate, got %q", got)
	}
}

func TestRespond_KnownAndFallback(t *testing.T) {
	for intent := range intentResponses {
		if Respond(intent) == "" {
			t.Fatalf("expected response for %q", intent)
		}
	}
	if got := Respond(Intent("bogus")); got != fallbackResponse {
		t.Fatalf("expected fallback response, got %q", got)
	}
	if got := Respond(IntentTerminate); got != "Thank you for calling. Have a great day!" {
		t.Fatalf("unexpected terminate response: %q", got)
	}
}

func TestFinish_TerminalExactlyOnce(t *testing.T) {
	r := CallRecord{CallID: "c1", Status: CallStatusInProgress}
	t1 := timeUnix(1700000000)
	r.Finish(CallStatusCompleted, t1)
	if r.Status != CallStatusCompleted || r.EndTime == nil || !r.EndTime.Equal(t1) {
		t.Fatalf("expected completed at t1, got %+v", r)
	}

	// A later terminal event must neither change status nor move end_time.
	r.Finish(CallStatusFailed, timeUnix(1700000100))
	if r.Status != CallStatusCompleted || !r.EndTime.Equal(t1) {
		t.Fatalf("terminal record mutated: %+v", r)
	}

	// Finish with a non-terminal target is ignored.
	r2 := CallRecord{CallID: "c2", Status: CallStatusInitiated}
	r2.Finish(CallStatusInProgress, t1)
	if r2.Status != CallStatusInitiated || r2.EndTime != nil {
		t.Fatalf("non-terminal finish applied: %+v", r2)
	}
}
