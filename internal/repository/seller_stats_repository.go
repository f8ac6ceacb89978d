package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/car-marketplace/internal/domain"
)

// SellerStatsRepository owns the derived rating aggregate rows.
type SellerStatsRepository interface {
	// Lock creates the seller's row if missing and locks it until the
	// surrounding transaction ends.
	Lock(ctx context.Context, sellerID int64) error
	Save(ctx context.Context, stats *domain.SellerStats) error
	Get(ctx context.Context, sellerID int64) (*domain.SellerStats, error)
}

type sellerStatsRepository struct {
	pool *pgxpool.Pool
}

// NewSellerStatsRepository builds repository.
func NewSellerStatsRepository(pool *pgxpool.Pool) SellerStatsRepository {
	return &sellerStatsRepository{pool: pool}
}

func (r *sellerStatsRepository) Lock(ctx context.Context, sellerID int64) error {
	const op = "repository.sellerStats.Lock"
	db := querier(ctx, r.pool)
	if _, err := db.Exec(ctx,
		`INSERT INTO seller_stats (seller_id) VALUES ($1) ON CONFLICT (seller_id) DO NOTHING`, sellerID); err != nil {
		return fmt.Errorf("%s: insert: %w", op, err)
	}
	var id int64
	if err := db.QueryRow(ctx,
		`SELECT seller_id FROM seller_stats WHERE seller_id=$1 FOR UPDATE`, sellerID).Scan(&id); err != nil {
		return fmt.Errorf("%s: select: %w", op, err)
	}
	return nil
}

func (r *sellerStatsRepository) Save(ctx context.Context, stats *domain.SellerStats) error {
	const op = "repository.sellerStats.Save"
	const query = `
        INSERT INTO seller_stats (seller_id, rating_avg, rating_count, updated_at)
        VALUES ($1,$2,$3,NOW())
        ON CONFLICT (seller_id) DO UPDATE
            SET rating_avg=EXCLUDED.rating_avg, rating_count=EXCLUDED.rating_count, updated_at=EXCLUDED.updated_at
        RETURNING updated_at`
	if err := querier(ctx, r.pool).QueryRow(ctx, query,
		stats.SellerID,
		stats.RatingAvg,
		stats.RatingCount,
	).Scan(&stats.UpdatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *sellerStatsRepository) Get(ctx context.Context, sellerID int64) (*domain.SellerStats, error) {
	const op = "repository.sellerStats.Get"
	var stats domain.SellerStats
	if err := querier(ctx, r.pool).QueryRow(ctx,
		`SELECT seller_id, rating_avg, rating_count, updated_at FROM seller_stats WHERE seller_id=$1`, sellerID,
	).Scan(&stats.SellerID, &stats.RatingAvg, &stats.RatingCount, &stats.UpdatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &stats, nil
}
