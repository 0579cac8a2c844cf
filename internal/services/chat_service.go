package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zain100000/ETutor/internal/models"
	"github.com/zain100000/ETutor/internal/repository"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")
	ErrInvalidInput  = errors.New("invalid input")
	ErrTutorNotFound = errors.New("tutor not found")
)

// HistoryCachePageLimit is the only page shape served from the cache:
// the first page at this limit, which is what the conversation view
// requests by default.
const HistoryCachePageLimit = 50

type sessionStore interface {
	ResolveOrCreate(ctx context.Context, studentID, tutorID int64) (*models.ChatSession, error)
	GetByIDForParticipant(ctx context.Context, sessionID, userID int64) (*models.ChatSession, error)
	ListForStudent(ctx context.Context, userID int64) ([]repository.InboxRow, error)
	ListForTutor(ctx context.Context, tutorID, tutorUserID int64) ([]repository.InboxRow, error)
	Touch(ctx context.Context, sessionID int64) error
}

type messageStore interface {
	Append(ctx context.Context, sessionID, senderID int64, body string, sentAt time.Time) (*models.Message, error)
	ListBySession(ctx context.Context, sessionID int64, limit, offset int) ([]models.Message, int, error)
	MarkMessagesRead(ctx context.Context, messageIDs []int64, readerID int64) ([]int64, error)
}

type tutorProfileReader interface {
	GetByID(ctx context.Context, tutorID int64) (*models.TutorProfile, error)
	GetByUserID(ctx context.Context, userID int64) (*models.TutorProfile, error)
}

type historyCache interface {
	GetHistory(ctx context.Context, sessionID int64) ([]models.Message, int, bool, error)
	SetHistory(ctx context.Context, sessionID int64, messages []models.Message, total int) error
	DeleteHistory(ctx context.Context, sessionID int64) error
}

// chatTxRunner scopes multi-step chat writes to one database
// transaction. The callback receives transaction-bound stores; any
// error rolls the whole unit back.
type chatTxRunner interface {
	WithinTx(ctx context.Context, fn func(sessions sessionStore, messages messageStore) error) error
}

// PgxChatTx is the pgx-backed chatTxRunner used in production wiring.
type PgxChatTx struct {
	db *pgxpool.Pool
}

func NewPgxChatTx(db *pgxpool.Pool) *PgxChatTx {
	return &PgxChatTx{db: db}
}

func (t *PgxChatTx) WithinTx(ctx context.Context, fn func(sessions sessionStore, messages messageStore) error) error {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(repository.NewChatSessionRepository(tx), repository.NewMessageRepository(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type ChatService struct {
	tx       chatTxRunner
	sessions sessionStore
	messages messageStore
	tutors   tutorProfileReader
	history  historyCache
}

// ChatDelivery is the result of a successful send, carrying what the
// hub needs to push the message to both participants.
type ChatDelivery struct {
	Session         *models.ChatSession
	Message         *models.Message
	RecipientUserID int64
}

// ReadReceipt reports which messages a ListMessages call transitioned
// to read, addressed to the participant whose messages they were.
type ReadReceipt struct {
	SessionID       int64
	ReaderID        int64
	RecipientUserID int64
	MessageIDs      []int64
}

func NewChatService(
	tx chatTxRunner,
	sessions sessionStore,
	messages messageStore,
	tutors tutorProfileReader,
	history historyCache,
) *ChatService {
	return &ChatService{
		tx:       tx,
		sessions: sessions,
		messages: messages,
		tutors:   tutors,
		history:  history,
	}
}

// ResolveOrCreateSession maps a (student, tutor) pair to exactly one
// session. Resolution is idempotent: repeated and concurrent calls
// for the same pair return the same session.
func (s *ChatService) ResolveOrCreateSession(
	ctx context.Context,
	studentID int64,
	tutorID int64,
) (*models.ChatSession, error) {
	if studentID <= 0 || tutorID <= 0 {
		return nil, ErrInvalidInput
	}

	tutor, err := s.tutors.GetByID(ctx, tutorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTutorNotFound
		}
		return nil, err
	}
	if tutor.UserID == studentID {
		return nil, ErrInvalidInput
	}

	return s.sessions.ResolveOrCreate(ctx, studentID, tutorID)
}

// SendMessage appends one message on behalf of a participant. There
// is no retry and no local queue; a failed send surfaces as one error
// and the caller decides whether to resend.
func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID int64,
	sessionID int64,
	body string,
) (*ChatDelivery, error) {
	if sessionID <= 0 {
		return nil, ErrInvalidInput
	}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}

	session, err := s.sessions.GetByIDForParticipant(ctx, sessionID, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrForbidden
		}
		return nil, err
	}

	// The append and the session bump commit together: a session is
	// never left claiming activity it does not have, and a message is
	// never stored against a stale session.
	sentAt := time.Now().UTC()
	var message *models.Message
	err = s.tx.WithinTx(ctx, func(sessions sessionStore, messages messageStore) error {
		var err error
		message, err = messages.Append(ctx, sessionID, actorID, trimmed, sentAt)
		if err != nil {
			return err
		}
		return sessions.Touch(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateHistory(ctx, sessionID)

	return &ChatDelivery{
		Session:         session,
		Message:         message,
		RecipientUserID: counterpartUserID(session, actorID),
	}, nil
}

// ListMessages returns one page of a session's log in canonical order
// and applies the read-state transition: every inbound message still
// marked sent becomes read, because listing is how the recipient's
// view observes delivery. The reader's own messages are never
// touched, and when nothing is unread no status write is issued at
// all. The returned receipt is nil when no transition happened.
func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID int64,
	sessionID int64,
	page int,
	limit int,
) ([]models.Message, int, *ReadReceipt, error) {
	if sessionID <= 0 || page <= 0 || limit <= 0 {
		return nil, 0, nil, ErrInvalidInput
	}

	session, err := s.sessions.GetByIDForParticipant(ctx, sessionID, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, nil, pgx.ErrNoRows
		}
		return nil, 0, nil, err
	}

	cacheable := s.history != nil && page == 1 && limit == HistoryCachePageLimit

	var (
		messages []models.Message
		total    int
		updated  []int64
	)
	fromCache := false
	if cacheable {
		cached, cachedTotal, hit, err := s.history.GetHistory(ctx, sessionID)
		if err != nil {
			log.Printf("chat: history cache read for session %d: %v", sessionID, err)
		} else if hit {
			messages, total, fromCache = cached, cachedTotal, true
		}
	}

	if fromCache {
		// Storage order is not trusted: appends race, so the
		// canonical sort is applied here rather than assumed.
		SortMessages(messages)
		if unread := unreadInboundIDs(messages, actorID); len(unread) > 0 {
			err := s.tx.WithinTx(ctx, func(_ sessionStore, store messageStore) error {
				var err error
				updated, err = store.MarkMessagesRead(ctx, unread, actorID)
				return err
			})
			if err != nil {
				return nil, 0, nil, err
			}
		}
	} else {
		// The page read and the read-state transition commit
		// together, so a reader never observes messages that were
		// listed but not yet marked.
		err := s.tx.WithinTx(ctx, func(_ sessionStore, store messageStore) error {
			var err error
			messages, total, err = store.ListBySession(ctx, sessionID, limit, (page-1)*limit)
			if err != nil {
				return err
			}
			SortMessages(messages)
			unread := unreadInboundIDs(messages, actorID)
			if len(unread) == 0 {
				return nil
			}
			updated, err = store.MarkMessagesRead(ctx, unread, actorID)
			return err
		})
		if err != nil {
			return nil, 0, nil, err
		}
		if cacheable && len(updated) == 0 {
			if err := s.history.SetHistory(ctx, sessionID, messages, total); err != nil {
				log.Printf("chat: history cache write for session %d: %v", sessionID, err)
			}
		}
	}

	if len(updated) == 0 {
		return messages, total, nil, nil
	}
	s.invalidateHistory(ctx, sessionID)

	updatedSet := make(map[int64]struct{}, len(updated))
	for _, id := range updated {
		updatedSet[id] = struct{}{}
	}
	for i := range messages {
		if _, ok := updatedSet[messages[i].ID]; ok {
			messages[i].Status = models.MessageStatusRead
		}
	}

	receipt := &ReadReceipt{
		SessionID:       sessionID,
		ReaderID:        actorID,
		RecipientUserID: counterpartUserID(session, actorID),
		MessageIDs:      updated,
	}

	return messages, total, receipt, nil
}

// ListInbox enumerates every session the user participates in: the
// student side always, the tutor side when a tutor profile exists.
// The two result sets are concatenated as-is. A missing counterpart
// profile degrades to a placeholder entry, never to an error.
func (s *ChatService) ListInbox(ctx context.Context, userID int64) ([]models.InboxEntry, error) {
	rows, err := s.sessions.ListForStudent(ctx, userID)
	if err != nil {
		return nil, err
	}

	tutorProfile, err := s.tutors.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if tutorProfile != nil {
		tutorRows, err := s.sessions.ListForTutor(ctx, tutorProfile.ID, userID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, tutorRows...)
	}

	entries := make([]models.InboxEntry, 0, len(rows))
	for _, row := range rows {
		entry := models.InboxEntry{
			SessionID:       row.SessionID,
			CounterpartID:   row.CounterpartID,
			CounterpartName: "Unknown",
			LastMessage:     row.LastMessage,
			UnreadCount:     row.UnreadCount,
		}
		if row.CounterpartName != nil && strings.TrimSpace(*row.CounterpartName) != "" {
			entry.CounterpartName = *row.CounterpartName
		}
		if row.CounterpartImage != nil {
			entry.CounterpartImage = *row.CounterpartImage
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *ChatService) invalidateHistory(ctx context.Context, sessionID int64) {
	if s.history == nil {
		return
	}
	if err := s.history.DeleteHistory(ctx, sessionID); err != nil {
		log.Printf("chat: history cache invalidate for session %d: %v", sessionID, err)
	}
}

func counterpartUserID(session *models.ChatSession, actorID int64) int64 {
	if actorID == session.StudentID {
		return session.TutorUserID
	}
	return session.StudentID
}

// SortMessages puts a message slice into canonical display order:
// sent timestamp ascending, message id ascending on equal timestamps.
// Every surface that shows a message log goes through this.
func SortMessages(messages []models.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].SentAt.Equal(messages[j].SentAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].SentAt.Before(messages[j].SentAt)
	})
}

// unreadInboundIDs picks the messages a reader has just observed for
// the first time: still in sent state and authored by the other
// participant. The reader's own messages never qualify.
func unreadInboundIDs(messages []models.Message, readerID int64) []int64 {
	ids := make([]int64, 0)
	for _, message := range messages {
		if message.Status == models.MessageStatusSent && message.SenderID != readerID {
			ids = append(ids, message.ID)
		}
	}
	return ids
}

func FormatChatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
