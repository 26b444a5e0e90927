package calls

import "strings"

// Intent is a coarse label for what the caller wants.
type Intent string

const (
	IntentSupport      Intent = "support"
	IntentSchedule     Intent = "schedule"
	IntentGratitude    Intent = "gratitude"
	IntentAgentRequest Intent = "agent_request"
	IntentTerminate    Intent = "terminate"
	IntentGeneral      Intent = "general"
)

// Classifier maps a customer utterance to an Intent.
//
// Keep reconciliation logic against this interface so the keyword heuristic
// below can be swapped for a model-backed classifier without touching callers.
type Classifier interface {
	Classify(transcript string) Intent
}

// KeywordClassifier matches case-insensitive keywords against ordered
// categories; the first matching category wins. Categories share vocabulary
// ("help" vs "thanks for your help"), so the check order is part of the
// contract and must not be rearranged.
type KeywordClassifier struct{}

var intentKeywords = []struct {
	intent Intent
	words  []string
}{
	{IntentSupport, []string{"help", "support", "problem", "issue"}},
	{IntentSchedule, []string{"schedule", "appointment", "book", "meeting"}},
	{IntentGratitude, []string{"thank", "thanks", "appreciate"}},
	{IntentAgentRequest, []string{"speak", "human", "agent", "representative"}},
	{IntentTerminate, []string{"cancel", "stop", "end"}},
}

// Classify never fails; empty or unrecognized input yields IntentGeneral.
func (KeywordClassifier) Classify(transcript string) Intent {
	lower := strings.ToLower(transcript)
	for _, cat := range intentKeywords {
		for _, w := range cat.words {
			if strings.Contains(lower, w) {
				return cat.intent
			}
		}
	}
	return IntentGeneral
}
