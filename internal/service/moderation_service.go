package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/car-marketplace/internal/domain"
	"github.com/spec-kit/car-marketplace/internal/events"
	"github.com/spec-kit/car-marketplace/internal/repository"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

// DefaultRejectionReason is stored when a reject request carries no reason.
const DefaultRejectionReason = "Rejected via bulk action"

// ModerationService applies staff decisions to pending listings.
type ModerationService struct {
	listings   repository.ListingRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewModerationService builds the service.
func NewModerationService(listings repository.ListingRepository, dispatcher events.Dispatcher, logger *zap.Logger) *ModerationService {
	return &ModerationService{listings: listings, dispatcher: dispatcher, logger: orNop(logger)}
}

// Approve marks the listings APPROVED and clears any rejection reason.
func (s *ModerationService) Approve(ctx context.Context, actor *domain.User, ids []int64) (int, error) {
	return s.apply(ctx, actor, ids, domain.ModerationApproved, nil)
}

// Reject marks the listings REJECTED with reason, or the default reason
// when blank.
func (s *ModerationService) Reject(ctx context.Context, actor *domain.User, ids []int64, reason string) (int, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultRejectionReason
	}
	return s.apply(ctx, actor, ids, domain.ModerationRejected, &reason)
}

func (s *ModerationService) apply(ctx context.Context, actor *domain.User, ids []int64, status domain.ModerationStatus, reason *string) (int, error) {
	if len(ids) == 0 {
		return 0, apperrors.NewValidationError("ids must be a non-empty list", nil)
	}
	moderated, err := s.listings.SetStatus(ctx, ids, status, reason)
	if err != nil {
		return 0, err
	}
	s.logger.Info("listings moderated",
		zap.Int64("actor_id", actor.ID),
		zap.String("status", string(status)),
		zap.Int("updated", len(moderated)))

	for _, m := range moderated {
		publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventListingModerated, actor.ID,
			events.ListingModeratedPayload{
				ListingID: m.ID,
				SellerID:  m.SellerID,
				Status:    string(status),
				Reason:    reason,
			}))
	}
	return len(moderated), nil
}
