package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/car-marketplace/internal/domain"
)

// ReviewRepository persists seller reviews.
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	GetByID(ctx context.Context, id int64) (*domain.Review, error)
	Delete(ctx context.Context, id int64) error
	ListBySeller(ctx context.Context, sellerID int64, page Page) ([]domain.Review, int, error)
	// Aggregate returns the count and mean rating of a seller's reviews.
	Aggregate(ctx context.Context, sellerID int64) (int, float64, error)
}

type reviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository builds repository.
func NewReviewRepository(pool *pgxpool.Pool) ReviewRepository {
	return &reviewRepository{pool: pool}
}

const reviewSelect = `
        SELECT r.id, r.author_id, a.username, r.seller_id, s.username, r.rating, r.text, r.listing_id, r.created_at
        FROM reviews r
        JOIN users a ON a.id = r.author_id
        JOIN users s ON s.id = r.seller_id`

func scanReview(row pgx.Row, review *domain.Review) error {
	if err := row.Scan(
		&review.ID,
		&review.AuthorID,
		&review.Author.Username,
		&review.SellerID,
		&review.Seller.Username,
		&review.Rating,
		&review.Text,
		&review.ListingID,
		&review.CreatedAt,
	); err != nil {
		return err
	}
	review.Author.ID = review.AuthorID
	review.Seller.ID = review.SellerID
	return nil
}

func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	const op = "repository.review.Create"
	const query = `
        INSERT INTO reviews (author_id, seller_id, rating, text, listing_id)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	err := querier(ctx, r.pool).QueryRow(ctx, query,
		review.AuthorID,
		review.SellerID,
		review.Rating,
		review.Text,
		review.ListingID,
	).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translate(err))
	}
	return nil
}

func (r *reviewRepository) GetByID(ctx context.Context, id int64) (*domain.Review, error) {
	const op = "repository.review.GetByID"
	var review domain.Review
	if err := scanReview(querier(ctx, r.pool).QueryRow(ctx, reviewSelect+` WHERE r.id=$1`, id), &review); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &review, nil
}

func (r *reviewRepository) Delete(ctx context.Context, id int64) error {
	const op = "repository.review.Delete"
	cmd, err := querier(ctx, r.pool).Exec(ctx, `DELETE FROM reviews WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, pgx.ErrNoRows)
	}
	return nil
}

func (r *reviewRepository) ListBySeller(ctx context.Context, sellerID int64, page Page) ([]domain.Review, int, error) {
	const op = "repository.review.ListBySeller"
	db := querier(ctx, r.pool)

	var total int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE seller_id=$1`, sellerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	rows, err := db.Query(ctx, reviewSelect+`
        WHERE r.seller_id=$1
        ORDER BY r.created_at DESC, r.id DESC
        LIMIT $2 OFFSET $3`, sellerID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]domain.Review, 0, page.Limit)
	for rows.Next() {
		var review domain.Review
		if err := scanReview(rows, &review); err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		result = append(result, review)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}

func (r *reviewRepository) Aggregate(ctx context.Context, sellerID int64) (int, float64, error) {
	const op = "repository.review.Aggregate"
	const query = `
        SELECT COUNT(*), COALESCE(AVG(rating), 0)::float8
        FROM reviews WHERE seller_id=$1`
	var (
		count int
		avg   float64
	)
	if err := querier(ctx, r.pool).QueryRow(ctx, query, sellerID).Scan(&count, &avg); err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, avg, nil
}
