package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/car-marketplace/internal/domain"
)

// ListingSort names a supported ordering for listing queries.
type ListingSort string

const (
	SortCreatedDesc ListingSort = "created_desc"
	SortCreatedAsc  ListingSort = "created_asc"
	SortPriceAsc    ListingSort = "price_asc"
	SortPriceDesc   ListingSort = "price_desc"
	SortYearDesc    ListingSort = "year_desc"
	SortYearAsc     ListingSort = "year_asc"
)

var listingOrder = map[ListingSort]string{
	SortCreatedDesc: "l.created_at DESC",
	SortCreatedAsc:  "l.created_at ASC",
	SortPriceAsc:    "l.price ASC",
	SortPriceDesc:   "l.price DESC",
	SortYearDesc:    "l.year DESC",
	SortYearAsc:     "l.year ASC",
}

// ListingFilter captures catalog search parameters.
type ListingFilter struct {
	// ViewerID widens visibility from approved listings to the viewer's own.
	ViewerID       *int64
	YearMin        *int
	YearMax        *int
	PriceMin       *float64
	PriceMax       *float64
	MileageMax     *int
	OwnersCountMax *int
	Make           string
	Model          string
	Transmission   string
	Fuel           string
	Body           string
	Drive          string
	Color          string
	Location       string
	Query          string
	Sort           ListingSort
	Page           Page
}

// ModeratedListing identifies a listing whose status was changed in bulk.
type ModeratedListing struct {
	ID       int64
	SellerID int64
}

// ListingRepository encapsulates listing persistence.
type ListingRepository interface {
	Create(ctx context.Context, listing *domain.Listing) error
	Update(ctx context.Context, listing *domain.Listing) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Listing, error)
	List(ctx context.Context, filter ListingFilter) ([]domain.Listing, int, error)
	SetStatus(ctx context.Context, ids []int64, status domain.ModerationStatus, reason *string) ([]ModeratedListing, error)
}

type listingRepository struct {
	pool *pgxpool.Pool
}

// NewListingRepository instantiates repository.
func NewListingRepository(pool *pgxpool.Pool) ListingRepository {
	return &listingRepository{pool: pool}
}

const listingColumns = `
        l.id, l.seller_id, u.username, l.make_id, mk.name, l.car_model_id, cm.name,
        l.year, l.price::float8, l.mileage, l.transmission, l.fuel, l.body, l.drive, l.condition, l.color,
        l.location_id, loc.name, loc.region, l.owners_count, l.vin, l.title, l.description,
        l.status, l.rejection_reason, l.created_at, l.updated_at,
        (SELECT li.storage_key FROM listing_images li WHERE li.listing_id = l.id ORDER BY li.ord, li.id LIMIT 1)`

const listingJoins = `
        JOIN users u ON u.id = l.seller_id
        JOIN makes mk ON mk.id = l.make_id
        JOIN car_models cm ON cm.id = l.car_model_id
        JOIN locations loc ON loc.id = l.location_id`

// listingDest returns scan targets matching listingColumns.
func listingDest(l *domain.Listing) []any {
	return []any{
		&l.ID, &l.SellerID, &l.Seller.Username, &l.MakeID, &l.Make.Name, &l.CarModelID, &l.CarModel.Name,
		&l.Year, &l.Price, &l.Mileage, &l.Transmission, &l.Fuel, &l.Body, &l.Drive, &l.Condition, &l.Color,
		&l.LocationID, &l.Location.Name, &l.Location.Region, &l.OwnersCount, &l.VIN, &l.Title, &l.Description,
		&l.Status, &l.RejectionReason, &l.CreatedAt, &l.UpdatedAt,
		&l.MainImage,
	}
}

// fillRefs copies foreign keys into the embedded references after a scan.
func fillRefs(l *domain.Listing) {
	l.Seller.ID = l.SellerID
	l.Make.ID = l.MakeID
	l.CarModel.ID = l.CarModelID
	l.CarModel.MakeID = l.MakeID
	l.Location.ID = l.LocationID
}

func (r *listingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	const op = "repository.listing.Create"
	const query = `
        INSERT INTO listings (seller_id, make_id, car_model_id, year, price, mileage, transmission, fuel, body,
            drive, condition, color, location_id, owners_count, vin, title, description, status, rejection_reason)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
        RETURNING id, created_at, updated_at`
	err := querier(ctx, r.pool).QueryRow(ctx, query,
		listing.SellerID,
		listing.MakeID,
		listing.CarModelID,
		listing.Year,
		listing.Price,
		listing.Mileage,
		listing.Transmission,
		listing.Fuel,
		listing.Body,
		listing.Drive,
		listing.Condition,
		listing.Color,
		listing.LocationID,
		listing.OwnersCount,
		listing.VIN,
		listing.Title,
		listing.Description,
		listing.Status,
		listing.RejectionReason,
	).Scan(&listing.ID, &listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translate(err))
	}
	return nil
}

func (r *listingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	const op = "repository.listing.Update"
	const query = `
        UPDATE listings SET make_id=$1, car_model_id=$2, year=$3, price=$4, mileage=$5, transmission=$6,
            fuel=$7, body=$8, drive=$9, condition=$10, color=$11, location_id=$12, owners_count=$13, vin=$14,
            title=$15, description=$16, updated_at=NOW()
        WHERE id=$17
        RETURNING updated_at`
	err := querier(ctx, r.pool).QueryRow(ctx, query,
		listing.MakeID,
		listing.CarModelID,
		listing.Year,
		listing.Price,
		listing.Mileage,
		listing.Transmission,
		listing.Fuel,
		listing.Body,
		listing.Drive,
		listing.Condition,
		listing.Color,
		listing.LocationID,
		listing.OwnersCount,
		listing.VIN,
		listing.Title,
		listing.Description,
		listing.ID,
	).Scan(&listing.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translate(err))
	}
	return nil
}

func (r *listingRepository) Delete(ctx context.Context, id int64) error {
	const op = "repository.listing.Delete"
	cmd, err := querier(ctx, r.pool).Exec(ctx, `DELETE FROM listings WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, pgx.ErrNoRows)
	}
	return nil
}

func (r *listingRepository) GetByID(ctx context.Context, id int64) (*domain.Listing, error) {
	const op = "repository.listing.GetByID"
	query := `SELECT ` + listingColumns + ` FROM listings l ` + listingJoins + ` WHERE l.id=$1`

	var listing domain.Listing
	if err := querier(ctx, r.pool).QueryRow(ctx, query, id).Scan(listingDest(&listing)...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	fillRefs(&listing)
	return &listing, nil
}

func (r *listingRepository) List(ctx context.Context, filter ListingFilter) ([]domain.Listing, int, error) {
	const op = "repository.listing.List"
	where, args := buildListingWhere(filter)
	db := querier(ctx, r.pool)

	var total int
	countQuery := `SELECT COUNT(*) FROM listings l ` + listingJoins + ` WHERE ` + where
	if err := db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	order, ok := listingOrder[filter.Sort]
	if !ok {
		order = listingOrder[SortCreatedDesc]
	}
	args = append(args, filter.Page.Limit, filter.Page.Offset)
	query := fmt.Sprintf(`SELECT %s FROM listings l %s WHERE %s ORDER BY %s, l.id DESC LIMIT $%d OFFSET $%d`,
		listingColumns, listingJoins, where, order, len(args)-1, len(args))

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]domain.Listing, 0, filter.Page.Limit)
	for rows.Next() {
		var listing domain.Listing
		if err := rows.Scan(listingDest(&listing)...); err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		fillRefs(&listing)
		result = append(result, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}

func (r *listingRepository) SetStatus(ctx context.Context, ids []int64, status domain.ModerationStatus, reason *string) ([]ModeratedListing, error) {
	const op = "repository.listing.SetStatus"
	const query = `
        UPDATE listings SET status=$1, rejection_reason=$2, updated_at=NOW()
        WHERE id = ANY($3)
        RETURNING id, seller_id`
	rows, err := querier(ctx, r.pool).Query(ctx, query, status, reason, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []ModeratedListing
	for rows.Next() {
		var m ModeratedListing
		if err := rows.Scan(&m.ID, &m.SellerID); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func buildListingWhere(filter ListingFilter) (string, []any) {
	args := []any{domain.ModerationApproved}
	clauses := []string{}

	if filter.ViewerID != nil {
		args = append(args, *filter.ViewerID)
		clauses = append(clauses, fmt.Sprintf("(l.status=$1 OR l.seller_id=$%d)", len(args)))
	} else {
		clauses = append(clauses, "l.status=$1")
	}

	addRange := func(column, cmp string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s %s $%d", column, cmp, len(args)))
	}
	if filter.YearMin != nil {
		addRange("l.year", ">=", *filter.YearMin)
	}
	if filter.YearMax != nil {
		addRange("l.year", "<=", *filter.YearMax)
	}
	if filter.PriceMin != nil {
		addRange("l.price", ">=", *filter.PriceMin)
	}
	if filter.PriceMax != nil {
		addRange("l.price", "<=", *filter.PriceMax)
	}
	if filter.MileageMax != nil {
		addRange("l.mileage", "<=", *filter.MileageMax)
	}
	if filter.OwnersCountMax != nil {
		addRange("l.owners_count", "<=", *filter.OwnersCountMax)
	}

	exact := []struct {
		column string
		value  string
	}{
		{"mk.name", filter.Make},
		{"cm.name", filter.Model},
		{"l.transmission", filter.Transmission},
		{"l.fuel", filter.Fuel},
		{"l.body", filter.Body},
		{"l.drive", filter.Drive},
		{"l.color", filter.Color},
	}
	for _, f := range exact {
		if f.value == "" {
			continue
		}
		args = append(args, f.value)
		clauses = append(clauses, fmt.Sprintf("LOWER(%s) = LOWER($%d)", f.column, len(args)))
	}

	if term := strings.TrimSpace(filter.Location); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		clauses = append(clauses, fmt.Sprintf("loc.name ILIKE $%d", len(args)))
	}
	if term := strings.TrimSpace(filter.Query); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		clauses = append(clauses, fmt.Sprintf("(l.title ILIKE $%d OR l.description ILIKE $%d)", len(args), len(args)))
	}

	return strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
