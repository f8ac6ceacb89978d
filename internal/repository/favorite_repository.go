package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/car-marketplace/internal/domain"
)

// FavoriteRepository manages user bookmarks.
type FavoriteRepository interface {
	// Add reports whether a new favorite was created.
	Add(ctx context.Context, userID, listingID int64) (bool, error)
	Remove(ctx context.Context, userID, listingID int64) error
	ListByUser(ctx context.Context, userID int64, page Page) ([]domain.Favorite, int, error)
}

type favoriteRepository struct {
	pool *pgxpool.Pool
}

// NewFavoriteRepository builds repository.
func NewFavoriteRepository(pool *pgxpool.Pool) FavoriteRepository {
	return &favoriteRepository{pool: pool}
}

func (r *favoriteRepository) Add(ctx context.Context, userID, listingID int64) (bool, error) {
	const op = "repository.favorite.Add"
	const query = `
        INSERT INTO favorites (user_id, listing_id) VALUES ($1,$2)
        ON CONFLICT (user_id, listing_id) DO NOTHING
        RETURNING id`
	var id int64
	err := querier(ctx, r.pool).QueryRow(ctx, query, userID, listingID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

func (r *favoriteRepository) Remove(ctx context.Context, userID, listingID int64) error {
	const op = "repository.favorite.Remove"
	if _, err := querier(ctx, r.pool).Exec(ctx,
		`DELETE FROM favorites WHERE user_id=$1 AND listing_id=$2`, userID, listingID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *favoriteRepository) ListByUser(ctx context.Context, userID int64, page Page) ([]domain.Favorite, int, error) {
	const op = "repository.favorite.ListByUser"
	db := querier(ctx, r.pool)

	var total int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM favorites WHERE user_id=$1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	query := `
        SELECT f.id, f.user_id, f.listing_id, f.created_at, ` + listingColumns + `
        FROM favorites f
        JOIN listings l ON l.id = f.listing_id ` + listingJoins + `
        WHERE f.user_id=$1
        ORDER BY f.created_at DESC, f.id DESC
        LIMIT $2 OFFSET $3`
	rows, err := db.Query(ctx, query, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]domain.Favorite, 0, page.Limit)
	for rows.Next() {
		var (
			fav     domain.Favorite
			listing domain.Listing
		)
		dest := append([]any{&fav.ID, &fav.UserID, &fav.ListingID, &fav.CreatedAt}, listingDest(&listing)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		fillRefs(&listing)
		fav.Listing = &listing
		result = append(result, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}
