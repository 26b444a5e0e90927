package calls

// Canned replies per intent. These are fixed strings, not templates; the
// conversational layer reads them verbatim.
var intentResponses = map[Intent]string{
	IntentSupport:      "I understand you're having an issue. Could you please describe the problem in more detail so I can assist you better?",
	IntentSchedule:     "I'd be happy to help you schedule an appointment. What day and time works best for you?",
	IntentGratitude:    "You're welcome! Is there anything else I can help with today?",
	IntentAgentRequest: "I'll connect you with a customer support agent right away. Please hold while I transfer your call.",
	IntentTerminate:    "Thank you for calling. Have a great day!",
	IntentGeneral:      "How can I assist you further today?",
}

const fallbackResponse = "I'm here to help. What can I do for you?"

// Respond returns the reply text for an intent. Unknown labels get the
// generic fallback rather than an error.
func Respond(intent Intent) string {
	if r, ok := intentResponses[intent]; ok {
		return r
	}
	return fallbackResponse
}
