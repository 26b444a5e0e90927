package telephony

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// SimulatedDialer accepts every dial without touching a provider.
// Used when SIMULATION_MODE is on and in tests.
type SimulatedDialer struct {
	Log *slog.Logger
}

func (d SimulatedDialer) Name() string { return "simulated" }

func (d SimulatedDialer) Dial(ctx context.Context, req DialRequest) (DialResult, error) {
	if d.Log != nil {
		d.Log.Info("simulated outbound call", "to", req.To, "call_id", req.CallID)
	}
	return DialResult{Accepted: true, ProviderCallRef: "sim-" + uuid.NewString()}, nil
}
