package repository

import (
	"context"
	"time"

	"github.com/zain100000/ETutor/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts one immutable message. sent_at comes from the caller
// (the sending side's clock at the send operation), not the database.
func (r *MessageRepository) Append(
	ctx context.Context,
	sessionID int64,
	senderID int64,
	body string,
	sentAt time.Time,
) (*models.Message, error) {
	query := `
		INSERT INTO messages (session_id, sender_id, body, status, sent_at)
		VALUES ($1, $2, $3, 'sent', $4)
		RETURNING id, session_id, sender_id, body, status, sent_at
	`

	var message models.Message
	err := r.db.QueryRow(ctx, query, sessionID, senderID, body, sentAt).Scan(
		&message.ID,
		&message.SessionID,
		&message.SenderID,
		&message.Body,
		&message.Status,
		&message.SentAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// ListBySession returns one page of a session's log in canonical
// order: sent_at ascending, insertion id breaking ties. Appends from
// different clients may land out of timestamp order; this re-sort is
// what the conversation view renders.
func (r *MessageRepository) ListBySession(
	ctx context.Context,
	sessionID int64,
	limit int,
	offset int,
) ([]models.Message, int, error) {
	totalQuery := `
		SELECT COUNT(*)
		FROM messages
		WHERE session_id = $1
	`

	var total int
	if err := r.db.QueryRow(ctx, totalQuery, sessionID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, session_id, sender_id, body, status, sent_at
		FROM messages
		WHERE session_id = $1
		ORDER BY sent_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, sessionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID,
			&message.SessionID,
			&message.SenderID,
			&message.Body,
			&message.Status,
			&message.SentAt,
		); err != nil {
			return nil, 0, err
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// MarkMessagesRead flips sent -> read for the given inbound messages.
// The guard clauses keep it one-way and scoped to other senders'
// rows, so concurrent appends are never overwritten.
func (r *MessageRepository) MarkMessagesRead(
	ctx context.Context,
	messageIDs []int64,
	readerID int64,
) ([]int64, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		UPDATE messages
		SET status = 'read'
		WHERE id = ANY($1)
		  AND sender_id <> $2
		  AND status = 'sent'
		RETURNING id
	`, messageIDs, readerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	updated := make([]int64, 0, len(messageIDs))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated = append(updated, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return updated, nil
}
