package telephony

import (
	"context"
	"errors"
)

// ErrDialFailed wraps any provider-side failure to place an outbound call,
// including request timeouts.
var ErrDialFailed = errors.New("telephony: dial failed")

// DialRequest asks the provider to place an outbound call.
type DialRequest struct {
	// CallID is our internal identifier, threaded through the callback URL so
	// webhook events reconcile against the right record.
	CallID string

	To      string
	Message string

	// CallbackURL receives the provider's webhook events for this call.
	CallbackURL string
}

// DialResult reports the provider's acceptance of the dial attempt.
// Accepted means the provider queued the call, not that anyone answered.
type DialResult struct {
	Accepted        bool
	ProviderCallRef string
}

// Dialer is the provider-agnostic outbound calling interface.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Callers bound every Dial with a context timeout; a timeout is a dial
//   failure, not a crash.
type Dialer interface {
	Name() string
	Dial(ctx context.Context, req DialRequest) (DialResult, error)
}
