package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/car-marketplace/internal/domain"
	"github.com/spec-kit/car-marketplace/internal/events"
	"github.com/spec-kit/car-marketplace/internal/repository"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

// ReviewService manages seller reviews and keeps the rating aggregate in step.
type ReviewService struct {
	tx         repository.TxManager
	reviews    repository.ReviewRepository
	stats      repository.SellerStatsRepository
	users      repository.UserRepository
	listings   repository.ListingRepository
	aggregator *RatingAggregator
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// ReviewDependencies bundles requirements for the review service.
type ReviewDependencies struct {
	TxManager   repository.TxManager
	ReviewRepo  repository.ReviewRepository
	StatsRepo   repository.SellerStatsRepository
	UserRepo    repository.UserRepository
	ListingRepo repository.ListingRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// CreateReviewInput is the review payload.
type CreateReviewInput struct {
	SellerID  int64
	Rating    int
	Text      string
	ListingID *int64
}

// NewReviewService builds the service.
func NewReviewService(deps ReviewDependencies) *ReviewService {
	return &ReviewService{
		tx:         deps.TxManager,
		reviews:    deps.ReviewRepo,
		stats:      deps.StatsRepo,
		users:      deps.UserRepo,
		listings:   deps.ListingRepo,
		aggregator: NewRatingAggregator(deps.ReviewRepo, deps.StatsRepo),
		dispatcher: deps.Dispatcher,
		logger:     orNop(deps.Logger),
	}
}

// Create stores a review by author and recomputes the seller's stats in the
// same transaction.
func (s *ReviewService) Create(ctx context.Context, author *domain.User, in CreateReviewInput) (*domain.Review, error) {
	if in.Rating < domain.MinRating || in.Rating > domain.MaxRating {
		return nil, apperrors.NewValidationError("invalid review",
			map[string]any{"rating": "rating must be between 1 and 5"})
	}
	if in.SellerID == author.ID {
		return nil, apperrors.NewValidationError("you cannot review yourself", nil)
	}
	if _, err := s.users.GetByID(ctx, in.SellerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("invalid review", map[string]any{"seller": "unknown seller"})
		}
		return nil, err
	}
	if in.ListingID != nil {
		listing, err := s.listings.GetByID(ctx, *in.ListingID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewValidationError("invalid review", map[string]any{"listing": "unknown listing"})
			}
			return nil, err
		}
		if listing.SellerID != in.SellerID {
			return nil, apperrors.NewValidationError("listing does not belong to this seller", nil)
		}
	}

	review := &domain.Review{
		AuthorID:  author.ID,
		SellerID:  in.SellerID,
		Rating:    in.Rating,
		Text:      strings.TrimSpace(in.Text),
		ListingID: in.ListingID,
	}
	var stats *domain.SellerStats
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.reviews.Create(ctx, review); err != nil {
			return err
		}
		var err error
		stats, err = s.aggregator.Recompute(ctx, review.SellerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	created, err := s.reviews.GetByID(ctx, review.ID)
	if err != nil {
		return nil, err
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventReviewCreated, author.ID, reviewPayload(created, stats)))
	return created, nil
}

// Delete removes a review. Only its author or staff may delete it.
func (s *ReviewService) Delete(ctx context.Context, actor *domain.User, id int64) error {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return notFound(err, "review")
	}
	if !actor.IsStaff && actor.ID != review.AuthorID {
		return apperrors.NewForbidden("only the author or staff may delete this review")
	}

	var stats *domain.SellerStats
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.reviews.Delete(ctx, review.ID); err != nil {
			return notFound(err, "review")
		}
		var err error
		stats, err = s.aggregator.Recompute(ctx, review.SellerID)
		return err
	})
	if err != nil {
		return err
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventReviewDeleted, actor.ID, reviewPayload(review, stats)))
	return nil
}

// ListBySeller returns a seller's reviews, newest first.
func (s *ReviewService) ListBySeller(ctx context.Context, sellerID int64, page repository.Page) ([]domain.Review, int, error) {
	if _, err := s.users.GetByID(ctx, sellerID); err != nil {
		return nil, 0, notFound(err, "seller")
	}
	return s.reviews.ListBySeller(ctx, sellerID, page)
}

// SellerStats returns the rating aggregate, zeroed when the seller has
// never been reviewed.
func (s *ReviewService) SellerStats(ctx context.Context, sellerID int64) (*domain.SellerStats, error) {
	if _, err := s.users.GetByID(ctx, sellerID); err != nil {
		return nil, notFound(err, "seller")
	}
	stats, err := s.stats.Get(ctx, sellerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.SellerStats{SellerID: sellerID}, nil
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func reviewPayload(review *domain.Review, stats *domain.SellerStats) events.ReviewPayload {
	return events.ReviewPayload{
		ReviewID:    review.ID,
		SellerID:    review.SellerID,
		Rating:      review.Rating,
		RatingAvg:   stats.RatingAvg,
		RatingCount: stats.RatingCount,
	}
}
