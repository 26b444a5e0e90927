package audit

import "time"

// Delivery is an immutable, append-only record of one provider webhook hit.
//
// Invariants:
// - Deliveries are never updated or deleted.
// - Recording is best-effort; call handling never blocks on journal failures.
//
// Storage (Postgres): table webhook_deliveries with an INSERT-only policy.

type Delivery struct {
	ID     string `json:"id" db:"id"`
	CallID string `json:"call_id" db:"call_id"`

	// Dialect is the detected payload dialect ("event" or "status_callback").
	Dialect string `json:"dialect" db:"dialect"`

	// Kind is the event type or provider status carried by the payload.
	Kind string `json:"kind,omitempty" db:"kind"`

	// RemoteIP is the resolved client IP when available.
	RemoteIP string `json:"remote_ip,omitempty" db:"remote_ip"`

	ReceivedAt time.Time `json:"received_at" db:"received_at"`
}
