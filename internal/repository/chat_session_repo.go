package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/zain100000/ETutor/internal/models"
)

type ChatSessionRepository struct {
	db DBTX
}

func NewChatSessionRepository(db DBTX) *ChatSessionRepository {
	return &ChatSessionRepository{db: db}
}

const chatSessionColumns = `
	cs.id, cs.student_id, cs.tutor_id, tp.user_id, cs.created_at, cs.updated_at
`

func scanChatSession(row pgx.Row) (*models.ChatSession, error) {
	var session models.ChatSession
	err := row.Scan(
		&session.ID,
		&session.StudentID,
		&session.TutorID,
		&session.TutorUserID,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ResolveOrCreate maps a (student, tutor) pair to its single session,
// creating it when absent. The upsert makes concurrent resolution of
// the same pair converge on one row.
func (r *ChatSessionRepository) ResolveOrCreate(
	ctx context.Context,
	studentID int64,
	tutorID int64,
) (*models.ChatSession, error) {
	query := `
		WITH resolved AS (
			INSERT INTO chat_sessions (student_id, tutor_id)
			VALUES ($1, $2)
			ON CONFLICT (student_id, tutor_id)
			DO UPDATE SET updated_at = chat_sessions.updated_at
			RETURNING id, student_id, tutor_id, created_at, updated_at
		)
		SELECT ` + chatSessionColumns + `
		FROM resolved cs
		JOIN tutor_profiles tp ON tp.id = cs.tutor_id
	`
	return scanChatSession(r.db.QueryRow(ctx, query, studentID, tutorID))
}

func (r *ChatSessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.ChatSession, error) {
	query := `
		SELECT ` + chatSessionColumns + `
		FROM chat_sessions cs
		JOIN tutor_profiles tp ON tp.id = cs.tutor_id
		WHERE cs.id = $1
	`
	return scanChatSession(r.db.QueryRow(ctx, query, sessionID))
}

// GetByIDForParticipant loads a session only when the given user sits
// on one of its two sides, either as the student or through their
// tutor profile.
func (r *ChatSessionRepository) GetByIDForParticipant(
	ctx context.Context,
	sessionID int64,
	userID int64,
) (*models.ChatSession, error) {
	query := `
		SELECT ` + chatSessionColumns + `
		FROM chat_sessions cs
		JOIN tutor_profiles tp ON tp.id = cs.tutor_id
		WHERE cs.id = $1 AND (cs.student_id = $2 OR tp.user_id = $2)
	`
	return scanChatSession(r.db.QueryRow(ctx, query, sessionID, userID))
}

// InboxRow is one session joined with its counterpart profile and
// latest message, as seen from one participant's side. Counterpart
// fields are nil when the profile row is gone.
type InboxRow struct {
	SessionID        int64
	CounterpartID    int64
	CounterpartName  *string
	CounterpartImage *string
	LastMessage      *models.Message
	UnreadCount      int
}

// ListForStudent returns the sessions where the user is the student
// side; the counterpart is the tutor profile.
func (r *ChatSessionRepository) ListForStudent(ctx context.Context, userID int64) ([]InboxRow, error) {
	query := `
		SELECT
			cs.id,
			cs.tutor_id,
			tp.full_name,
			tp.profile_image,
			lm.id, lm.session_id, lm.sender_id, lm.body, lm.status, lm.sent_at,
			COALESCE(uc.unread_count, 0)
		FROM chat_sessions cs
		LEFT JOIN tutor_profiles tp ON tp.id = cs.tutor_id
		` + lastMessageJoin + unreadCountJoin + `
		WHERE cs.student_id = $1
		ORDER BY COALESCE(lm.sent_at, cs.updated_at, cs.created_at) DESC, cs.id DESC
	`
	return r.collectInboxRows(ctx, query, userID)
}

// ListForTutor returns the sessions where the given tutor profile is
// the tutor side; the counterpart is the student. The unread filter
// still keys on the tutor's user id because sender ids are user ids.
func (r *ChatSessionRepository) ListForTutor(ctx context.Context, tutorID, tutorUserID int64) ([]InboxRow, error) {
	query := `
		SELECT
			cs.id,
			cs.student_id,
			sp.full_name,
			sp.profile_image,
			lm.id, lm.session_id, lm.sender_id, lm.body, lm.status, lm.sent_at,
			COALESCE(uc.unread_count, 0)
		FROM chat_sessions cs
		LEFT JOIN student_profiles sp ON sp.user_id = cs.student_id
		` + lastMessageJoin + unreadCountJoin + `
		WHERE cs.tutor_id = $2
		ORDER BY COALESCE(lm.sent_at, cs.updated_at, cs.created_at) DESC, cs.id DESC
	`
	return r.collectInboxRows(ctx, query, tutorUserID, tutorID)
}

// Both joins key on the same canonical message order used by the
// conversation view (sent_at, then insertion id), so the inbox's
// "last message" always agrees with it.
const lastMessageJoin = `
		LEFT JOIN LATERAL (
			SELECT id, session_id, sender_id, body, status, sent_at
			FROM messages
			WHERE session_id = cs.id
			ORDER BY sent_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
`

const unreadCountJoin = `
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE session_id = cs.id
			  AND sender_id <> $1
			  AND status = 'sent'
		) uc ON TRUE
`

func (r *ChatSessionRepository) collectInboxRows(ctx context.Context, query string, args ...any) ([]InboxRow, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]InboxRow, 0)
	for rows.Next() {
		var entry InboxRow
		var messageID, messageSessionID, messageSenderID *int64
		var messageBody, messageStatus *string
		var messageSentAt *time.Time

		if err := rows.Scan(
			&entry.SessionID,
			&entry.CounterpartID,
			&entry.CounterpartName,
			&entry.CounterpartImage,
			&messageID,
			&messageSessionID,
			&messageSenderID,
			&messageBody,
			&messageStatus,
			&messageSentAt,
			&entry.UnreadCount,
		); err != nil {
			return nil, err
		}

		if messageID != nil {
			entry.LastMessage = &models.Message{
				ID:        *messageID,
				SessionID: *messageSessionID,
				SenderID:  *messageSenderID,
				Body:      *messageBody,
				Status:    *messageStatus,
				SentAt:    *messageSentAt,
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *ChatSessionRepository) Touch(ctx context.Context, sessionID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE chat_sessions
		SET updated_at = NOW()
		WHERE id = $1
	`, sessionID)
	return err
}
