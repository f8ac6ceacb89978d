package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/car-marketplace/internal/domain"
)

// CatalogRepository reads the reference data listings point at.
type CatalogRepository interface {
	GetMake(ctx context.Context, id int64) (*domain.Make, error)
	GetCarModel(ctx context.Context, id int64) (*domain.CarModel, error)
	GetLocation(ctx context.Context, id int64) (*domain.Location, error)
}

type catalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository builds repository.
func NewCatalogRepository(pool *pgxpool.Pool) CatalogRepository {
	return &catalogRepository{pool: pool}
}

func (r *catalogRepository) GetMake(ctx context.Context, id int64) (*domain.Make, error) {
	const op = "repository.catalog.GetMake"
	var m domain.Make
	if err := querier(ctx, r.pool).QueryRow(ctx, `SELECT id, name FROM makes WHERE id=$1`, id).Scan(&m.ID, &m.Name); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &m, nil
}

func (r *catalogRepository) GetCarModel(ctx context.Context, id int64) (*domain.CarModel, error) {
	const op = "repository.catalog.GetCarModel"
	var m domain.CarModel
	if err := querier(ctx, r.pool).QueryRow(ctx,
		`SELECT id, make_id, name FROM car_models WHERE id=$1`, id,
	).Scan(&m.ID, &m.MakeID, &m.Name); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &m, nil
}

func (r *catalogRepository) GetLocation(ctx context.Context, id int64) (*domain.Location, error) {
	const op = "repository.catalog.GetLocation"
	var l domain.Location
	if err := querier(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, region FROM locations WHERE id=$1`, id,
	).Scan(&l.ID, &l.Name, &l.Region); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &l, nil
}
