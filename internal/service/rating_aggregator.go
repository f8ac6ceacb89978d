package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/car-marketplace/internal/domain"
	"github.com/spec-kit/car-marketplace/internal/repository"
)

// RatingAggregator is the single writer of seller_stats rows.
type RatingAggregator struct {
	reviews repository.ReviewRepository
	stats   repository.SellerStatsRepository
}

// NewRatingAggregator builds the aggregator.
func NewRatingAggregator(reviews repository.ReviewRepository, stats repository.SellerStatsRepository) *RatingAggregator {
	return &RatingAggregator{reviews: reviews, stats: stats}
}

// Recompute rebuilds the seller's stats from the reviews that currently
// exist. It must run in the transaction that mutated the reviews; the row
// lock serializes concurrent recomputes for the same seller.
func (a *RatingAggregator) Recompute(ctx context.Context, sellerID int64) (*domain.SellerStats, error) {
	const op = "service.RatingAggregator.Recompute"

	if err := a.stats.Lock(ctx, sellerID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	count, avg, err := a.reviews.Aggregate(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if count == 0 {
		avg = 0
	}

	stats := &domain.SellerStats{
		SellerID:    sellerID,
		RatingAvg:   avg,
		RatingCount: count,
	}
	if err := a.stats.Save(ctx, stats); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}
