package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/car-marketplace/internal/domain"
)

// ListingImageRepository stores image metadata for listings.
type ListingImageRepository interface {
	Create(ctx context.Context, img *domain.ListingImage) error
	GetByID(ctx context.Context, id int64) (*domain.ListingImage, error)
	Delete(ctx context.Context, id int64) error
	ListByListing(ctx context.Context, listingID int64) ([]domain.ListingImage, error)
}

type listingImageRepository struct {
	pool *pgxpool.Pool
}

// NewListingImageRepository builds repository.
func NewListingImageRepository(pool *pgxpool.Pool) ListingImageRepository {
	return &listingImageRepository{pool: pool}
}

func (r *listingImageRepository) Create(ctx context.Context, img *domain.ListingImage) error {
	const op = "repository.listingImage.Create"
	const query = `
        INSERT INTO listing_images (listing_id, storage_key, file_name, ord)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	err := querier(ctx, r.pool).QueryRow(ctx, query,
		img.ListingID,
		img.StorageKey,
		img.FileName,
		img.Order,
	).Scan(&img.ID, &img.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translate(err))
	}
	return nil
}

func (r *listingImageRepository) GetByID(ctx context.Context, id int64) (*domain.ListingImage, error) {
	const op = "repository.listingImage.GetByID"
	const query = `
        SELECT id, listing_id, storage_key, file_name, ord, created_at
        FROM listing_images WHERE id=$1`
	var img domain.ListingImage
	if err := querier(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&img.ID,
		&img.ListingID,
		&img.StorageKey,
		&img.FileName,
		&img.Order,
		&img.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &img, nil
}

func (r *listingImageRepository) Delete(ctx context.Context, id int64) error {
	const op = "repository.listingImage.Delete"
	cmd, err := querier(ctx, r.pool).Exec(ctx, `DELETE FROM listing_images WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, pgx.ErrNoRows)
	}
	return nil
}

func (r *listingImageRepository) ListByListing(ctx context.Context, listingID int64) ([]domain.ListingImage, error) {
	const op = "repository.listingImage.ListByListing"
	const query = `
        SELECT id, listing_id, storage_key, file_name, ord, created_at
        FROM listing_images WHERE listing_id=$1 ORDER BY ord ASC, id ASC`
	rows, err := querier(ctx, r.pool).Query(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []domain.ListingImage
	for rows.Next() {
		var img domain.ListingImage
		if err := rows.Scan(
			&img.ID,
			&img.ListingID,
			&img.StorageKey,
			&img.FileName,
			&img.Order,
			&img.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		result = append(result, img)
	}
	return result, rows.Err()
}
