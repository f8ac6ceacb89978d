package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/car-marketplace/internal/domain"
)

// ConversationRepository persists buyer/seller threads.
type ConversationRepository interface {
	// FindActive returns the active conversation for the triplet or pgx.ErrNoRows.
	FindActive(ctx context.Context, sellerID, buyerID, listingID int64) (*domain.Conversation, error)
	// CreateActive inserts an active conversation, returning
	// ErrActiveConversationExists if one already exists for the triplet.
	CreateActive(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id int64) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID int64, page Page) ([]domain.Conversation, int, error)
	// AdvanceLastMessageAt moves last_message_at forward to at; it never
	// moves it backwards when messages commit out of order.
	AdvanceLastMessageAt(ctx context.Context, id int64, at time.Time) error
	Archive(ctx context.Context, ids []int64) (int64, error)
}

type conversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository builds repository.
func NewConversationRepository(pool *pgxpool.Pool) ConversationRepository {
	return &conversationRepository{pool: pool}
}

const conversationSelect = `
        SELECT c.id, c.seller_id, su.username, c.buyer_id, bu.username, c.listing_id, c.is_active,
               c.last_message_at, c.created_at, ` + listingColumns + `,
               lm.id, lm.author_id, lu.username, lm.text, lm.created_at, lm.read_at
        FROM conversations c
        JOIN users su ON su.id = c.seller_id
        JOIN users bu ON bu.id = c.buyer_id
        JOIN listings l ON l.id = c.listing_id ` + listingJoins + `
        LEFT JOIN LATERAL (
            SELECT m.id, m.author_id, m.text, m.created_at, m.read_at
            FROM messages m
            WHERE m.conversation_id = c.id
            ORDER BY m.created_at DESC, m.id DESC
            LIMIT 1
        ) lm ON TRUE
        LEFT JOIN users lu ON lu.id = lm.author_id`

func scanConversation(row pgx.Row, conv *domain.Conversation) error {
	var (
		listing    domain.Listing
		msgID      *int64
		msgAuthor  *int64
		msgAuthorN *string
		msgText    *string
		msgCreated *time.Time
		msgRead    *time.Time
	)
	dest := []any{
		&conv.ID, &conv.SellerID, &conv.Seller.Username, &conv.BuyerID, &conv.Buyer.Username,
		&conv.ListingID, &conv.IsActive, &conv.LastMessageAt, &conv.CreatedAt,
	}
	dest = append(dest, listingDest(&listing)...)
	dest = append(dest, &msgID, &msgAuthor, &msgAuthorN, &msgText, &msgCreated, &msgRead)
	if err := row.Scan(dest...); err != nil {
		return err
	}

	fillRefs(&listing)
	conv.Listing = &listing
	conv.Seller.ID = conv.SellerID
	conv.Buyer.ID = conv.BuyerID
	if msgID != nil {
		conv.LastMessage = &domain.Message{
			ID:             *msgID,
			ConversationID: conv.ID,
			AuthorID:       *msgAuthor,
			Author:         domain.UserRef{ID: *msgAuthor, Username: *msgAuthorN},
			Text:           *msgText,
			CreatedAt:      *msgCreated,
			ReadAt:         msgRead,
		}
	}
	return nil
}

func (r *conversationRepository) FindActive(ctx context.Context, sellerID, buyerID, listingID int64) (*domain.Conversation, error) {
	const op = "repository.conversation.FindActive"
	query := conversationSelect + `
        WHERE c.seller_id=$1 AND c.buyer_id=$2 AND c.listing_id=$3 AND c.is_active`
	var conv domain.Conversation
	if err := scanConversation(querier(ctx, r.pool).QueryRow(ctx, query, sellerID, buyerID, listingID), &conv); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &conv, nil
}

func (r *conversationRepository) CreateActive(ctx context.Context, conv *domain.Conversation) error {
	const op = "repository.conversation.CreateActive"
	const query = `
        INSERT INTO conversations (seller_id, buyer_id, listing_id, is_active)
        VALUES ($1,$2,$3,TRUE)
        ON CONFLICT (seller_id, buyer_id, listing_id) WHERE is_active DO NOTHING
        RETURNING id, created_at`
	err := querier(ctx, r.pool).QueryRow(ctx, query, conv.SellerID, conv.BuyerID, conv.ListingID).
		Scan(&conv.ID, &conv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrActiveConversationExists)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	conv.IsActive = true
	return nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	const op = "repository.conversation.GetByID"
	var conv domain.Conversation
	if err := scanConversation(querier(ctx, r.pool).QueryRow(ctx, conversationSelect+` WHERE c.id=$1`, id), &conv); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &conv, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID int64, page Page) ([]domain.Conversation, int, error) {
	const op = "repository.conversation.ListForUser"
	db := querier(ctx, r.pool)

	var total int
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM conversations WHERE seller_id=$1 OR buyer_id=$1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	rows, err := db.Query(ctx, conversationSelect+`
        WHERE c.seller_id=$1 OR c.buyer_id=$1
        ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC, c.id DESC
        LIMIT $2 OFFSET $3`, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]domain.Conversation, 0, page.Limit)
	for rows.Next() {
		var conv domain.Conversation
		if err := scanConversation(rows, &conv); err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		result = append(result, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}

func (r *conversationRepository) AdvanceLastMessageAt(ctx context.Context, id int64, at time.Time) error {
	const op = "repository.conversation.AdvanceLastMessageAt"
	const query = `
        UPDATE conversations
        SET last_message_at = GREATEST(COALESCE(last_message_at, $1::timestamptz), $1::timestamptz)
        WHERE id=$2`
	cmd, err := querier(ctx, r.pool).Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, pgx.ErrNoRows)
	}
	return nil
}

func (r *conversationRepository) Archive(ctx context.Context, ids []int64) (int64, error) {
	const op = "repository.conversation.Archive"
	cmd, err := querier(ctx, r.pool).Exec(ctx,
		`UPDATE conversations SET is_active=FALSE WHERE id = ANY($1) AND is_active`, ids)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return cmd.RowsAffected(), nil
}
