package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/car-marketplace/internal/domain"
)

// MessageRepository manages conversation messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// MarkRead stamps read_at on unread messages not written by readerID.
	MarkRead(ctx context.Context, conversationID, readerID int64) (int64, error)
	ListByConversation(ctx context.Context, conversationID int64, page Page) ([]domain.Message, int, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const op = "repository.message.Create"
	const query = `
        WITH inserted AS (
            INSERT INTO messages (conversation_id, author_id, text)
            VALUES ($1,$2,$3)
            RETURNING id, author_id, created_at
        )
        SELECT i.id, i.created_at, u.username
        FROM inserted i JOIN users u ON u.id = i.author_id`
	err := querier(ctx, r.pool).QueryRow(ctx, query, msg.ConversationID, msg.AuthorID, msg.Text).
		Scan(&msg.ID, &msg.CreatedAt, &msg.Author.Username)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg.Author.ID = msg.AuthorID
	return nil
}

func (r *messageRepository) MarkRead(ctx context.Context, conversationID, readerID int64) (int64, error) {
	const op = "repository.message.MarkRead"
	const query = `
        UPDATE messages SET read_at=NOW()
        WHERE conversation_id=$1 AND read_at IS NULL AND author_id <> $2`
	cmd, err := querier(ctx, r.pool).Exec(ctx, query, conversationID, readerID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return cmd.RowsAffected(), nil
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID int64, page Page) ([]domain.Message, int, error) {
	const op = "repository.message.ListByConversation"
	db := querier(ctx, r.pool)

	var total int
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id=$1`, conversationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	const query = `
        SELECT m.id, m.conversation_id, m.author_id, u.username, m.text, m.created_at, m.read_at
        FROM messages m JOIN users u ON u.id = m.author_id
        WHERE m.conversation_id=$1
        ORDER BY m.created_at ASC, m.id ASC
        LIMIT $2 OFFSET $3`
	rows, err := db.Query(ctx, query, conversationID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]domain.Message, 0, page.Limit)
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.AuthorID,
			&msg.Author.Username,
			&msg.Text,
			&msg.CreatedAt,
			&msg.ReadAt,
		); err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		msg.Author.ID = msg.AuthorID
		result = append(result, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}
