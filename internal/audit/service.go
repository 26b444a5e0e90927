package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for the delivery journal.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, d Delivery) error
}

var ErrInvalidDelivery = errors.New("audit: invalid delivery")

// Service journals inbound webhook traffic for debugging provider behavior.
// Callers should treat journaling as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, d Delivery) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if d.CallID == "" || d.Dialect == "" {
		return ErrInvalidDelivery
	}

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.ReceivedAt.IsZero() {
		d.ReceivedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, d)
}

// LogDelivery records one webhook hit.
func (s *Service) LogDelivery(ctx context.Context, callID, dialect, kind, remoteIP string) error {
	return s.Append(ctx, Delivery{
		CallID:   callID,
		Dialect:  dialect,
		Kind:     kind,
		RemoteIP: remoteIP,
	})
}
