package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/zain100000/ETutor/internal/models"
	"github.com/zain100000/ETutor/internal/repository"
)

type stubSessionStore struct {
	session      *models.ChatSession
	sessionErr   error
	touchErr     error
	studentRows  []repository.InboxRow
	tutorRows    []repository.InboxRow
	resolveCalls int
	touchCalls   int
}

func (s *stubSessionStore) ResolveOrCreate(_ context.Context, studentID, tutorID int64) (*models.ChatSession, error) {
	s.resolveCalls++
	return s.session, s.sessionErr
}

func (s *stubSessionStore) GetByIDForParticipant(_ context.Context, sessionID, userID int64) (*models.ChatSession, error) {
	if s.session == nil {
		return nil, pgx.ErrNoRows
	}
	if userID != s.session.StudentID && userID != s.session.TutorUserID {
		return nil, pgx.ErrNoRows
	}
	return s.session, nil
}

func (s *stubSessionStore) ListForStudent(_ context.Context, userID int64) ([]repository.InboxRow, error) {
	return s.studentRows, nil
}

func (s *stubSessionStore) ListForTutor(_ context.Context, tutorID, tutorUserID int64) ([]repository.InboxRow, error) {
	return s.tutorRows, nil
}

func (s *stubSessionStore) Touch(_ context.Context, sessionID int64) error {
	s.touchCalls++
	return s.touchErr
}

type stubMessageStore struct {
	messages   []models.Message
	total      int
	appendErr  error
	appended   []models.Message
	markCalls  int
	lastMarked []int64
}

func (s *stubMessageStore) Append(_ context.Context, sessionID, senderID int64, body string, sentAt time.Time) (*models.Message, error) {
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	message := models.Message{
		ID:        int64(len(s.appended) + 100),
		SessionID: sessionID,
		SenderID:  senderID,
		Body:      body,
		Status:    models.MessageStatusSent,
		SentAt:    sentAt,
	}
	s.appended = append(s.appended, message)
	return &message, nil
}

func (s *stubMessageStore) ListBySession(_ context.Context, sessionID int64, limit, offset int) ([]models.Message, int, error) {
	page := make([]models.Message, len(s.messages))
	copy(page, s.messages)
	return page, s.total, nil
}

func (s *stubMessageStore) MarkMessagesRead(_ context.Context, messageIDs []int64, readerID int64) ([]int64, error) {
	s.markCalls++
	s.lastMarked = messageIDs
	for i := range s.messages {
		for _, id := range messageIDs {
			if s.messages[i].ID == id && s.messages[i].Status == models.MessageStatusSent && s.messages[i].SenderID != readerID {
				s.messages[i].Status = models.MessageStatusRead
			}
		}
	}
	return messageIDs, nil
}

type stubTutorReader struct {
	byID     map[int64]*models.TutorProfile
	byUserID map[int64]*models.TutorProfile
}

func (s *stubTutorReader) GetByID(_ context.Context, tutorID int64) (*models.TutorProfile, error) {
	profile, ok := s.byID[tutorID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return profile, nil
}

func (s *stubTutorReader) GetByUserID(_ context.Context, userID int64) (*models.TutorProfile, error) {
	profile, ok := s.byUserID[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return profile, nil
}

// stubChatTx hands the callback the same stubs the service already
// holds, so a test can count how many transactions a call opened.
type stubChatTx struct {
	sessions *stubSessionStore
	messages *stubMessageStore
	calls    int
}

func (s *stubChatTx) WithinTx(_ context.Context, fn func(sessions sessionStore, messages messageStore) error) error {
	s.calls++
	return fn(s.sessions, s.messages)
}

func newChatServiceForTest(sessions *stubSessionStore, messages *stubMessageStore, tutors tutorProfileReader, history historyCache) *ChatService {
	return NewChatService(&stubChatTx{sessions: sessions, messages: messages}, sessions, messages, tutors, history)
}

func newTestSession() *models.ChatSession {
	return &models.ChatSession{ID: 11, StudentID: 42, TutorID: 7, TutorUserID: 70}
}

func newTestTutorReader() *stubTutorReader {
	return &stubTutorReader{
		byID: map[int64]*models.TutorProfile{
			7: {ID: 7, UserID: 70},
		},
		byUserID: map[int64]*models.TutorProfile{
			70: {ID: 7, UserID: 70},
		},
	}
}

func TestResolveOrCreateSessionIsIdempotent(t *testing.T) {
	sessions := &stubSessionStore{session: newTestSession()}
	service := newChatServiceForTest(sessions, &stubMessageStore{}, newTestTutorReader(), nil)

	first, err := service.ResolveOrCreateSession(context.Background(), 42, 7)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := service.ResolveOrCreateSession(context.Background(), 42, 7)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same session, got %d and %d", first.ID, second.ID)
	}
	if sessions.resolveCalls != 2 {
		t.Fatalf("expected 2 resolve calls, got %d", sessions.resolveCalls)
	}
}

func TestResolveOrCreateSessionUnknownTutor(t *testing.T) {
	service := newChatServiceForTest(&stubSessionStore{}, &stubMessageStore{}, newTestTutorReader(), nil)

	if _, err := service.ResolveOrCreateSession(context.Background(), 42, 999); !errors.Is(err, ErrTutorNotFound) {
		t.Fatalf("expected ErrTutorNotFound, got %v", err)
	}
}

func TestResolveOrCreateSessionRejectsSelfChat(t *testing.T) {
	service := newChatServiceForTest(&stubSessionStore{}, &stubMessageStore{}, newTestTutorReader(), nil)

	if _, err := service.ResolveOrCreateSession(context.Background(), 70, 7); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for self chat, got %v", err)
	}
}

func TestSendMessageTrimsBodyAndAddressesCounterpart(t *testing.T) {
	sessions := &stubSessionStore{session: newTestSession()}
	messages := &stubMessageStore{}
	service := newChatServiceForTest(sessions, messages, newTestTutorReader(), nil)

	delivery, err := service.SendMessage(context.Background(), 42, 11, "  hello tutor  ")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if delivery.Message.Body != "hello tutor" {
		t.Fatalf("expected trimmed body, got %q", delivery.Message.Body)
	}
	if delivery.RecipientUserID != 70 {
		t.Fatalf("expected recipient 70, got %d", delivery.RecipientUserID)
	}
	if sessions.touchCalls != 1 {
		t.Fatalf("expected 1 touch call, got %d", sessions.touchCalls)
	}

	delivery, err = service.SendMessage(context.Background(), 70, 11, "hello student")
	if err != nil {
		t.Fatalf("SendMessage as tutor: %v", err)
	}
	if delivery.RecipientUserID != 42 {
		t.Fatalf("expected recipient 42, got %d", delivery.RecipientUserID)
	}
}

func TestSendMessageRejectsEmptyBody(t *testing.T) {
	service := newChatServiceForTest(&stubSessionStore{session: newTestSession()}, &stubMessageStore{}, newTestTutorReader(), nil)

	if _, err := service.SendMessage(context.Background(), 42, 11, "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSendMessageForbiddenForNonParticipant(t *testing.T) {
	service := newChatServiceForTest(&stubSessionStore{session: newTestSession()}, &stubMessageStore{}, newTestTutorReader(), nil)

	if _, err := service.SendMessage(context.Background(), 43, 11, "hi"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestListMessagesReturnsCanonicalOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	messages := &stubMessageStore{
		messages: []models.Message{
			{ID: 3, SessionID: 11, SenderID: 42, Status: models.MessageStatusRead, SentAt: base.Add(2 * time.Minute)},
			{ID: 1, SessionID: 11, SenderID: 42, Status: models.MessageStatusRead, SentAt: base},
			{ID: 2, SessionID: 11, SenderID: 42, Status: models.MessageStatusRead, SentAt: base},
		},
		total: 3,
	}
	service := newChatServiceForTest(&stubSessionStore{session: newTestSession()}, messages, newTestTutorReader(), nil)

	page, total, _, err := service.ListMessages(context.Background(), 42, 11, 1, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if page[0].ID != 1 || page[1].ID != 2 || page[2].ID != 3 {
		t.Fatalf("expected canonical order 1,2,3, got %d,%d,%d", page[0].ID, page[1].ID, page[2].ID)
	}
}

func TestListMessagesMarksInboundRead(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	messages := &stubMessageStore{
		messages: []models.Message{
			{ID: 1, SessionID: 11, SenderID: 70, Status: models.MessageStatusSent, SentAt: base},
			{ID: 2, SessionID: 11, SenderID: 42, Status: models.MessageStatusSent, SentAt: base.Add(time.Minute)},
			{ID: 3, SessionID: 11, SenderID: 70, Status: models.MessageStatusRead, SentAt: base.Add(2 * time.Minute)},
		},
		total: 3,
	}
	service := newChatServiceForTest(&stubSessionStore{session: newTestSession()}, messages, newTestTutorReader(), nil)

	page, _, receipt, err := service.ListMessages(context.Background(), 42, 11, 1, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}

	if len(messages.lastMarked) != 1 || messages.lastMarked[0] != 1 {
		t.Fatalf("expected only message 1 marked, got %v", messages.lastMarked)
	}
	if page[0].Status != models.MessageStatusRead {
		t.Fatalf("expected inbound message read in returned page, got %q", page[0].Status)
	}
	if page[1].Status != models.MessageStatusSent {
		t.Fatalf("reader's own message must stay sent, got %q", page[1].Status)
	}
	if receipt == nil {
		t.Fatal("expected a read receipt")
	}
	if receipt.RecipientUserID != 70 || len(receipt.MessageIDs) != 1 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
}

func TestListMessagesSecondReadWritesNothing(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	messages := &stubMessageStore{
		messages: []models.Message{
			{ID: 1, SessionID: 11, SenderID: 70, Status: models.MessageStatusSent, SentAt: base},
		},
		total: 1,
	}
	service := newChatServiceForTest(&stubSessionStore{session: newTestSession()}, messages, newTestTutorReader(), nil)

	if _, _, _, err := service.ListMessages(context.Background(), 42, 11, 1, 10); err != nil {
		t.Fatalf("first ListMessages: %v", err)
	}
	if messages.markCalls != 1 {
		t.Fatalf("expected 1 status write after first read, got %d", messages.markCalls)
	}

	_, _, receipt, err := service.ListMessages(context.Background(), 42, 11, 1, 10)
	if err != nil {
		t.Fatalf("second ListMessages: %v", err)
	}
	if messages.markCalls != 1 {
		t.Fatalf("second read must not write, got %d write calls", messages.markCalls)
	}
	if receipt != nil {
		t.Fatalf("expected no receipt on second read, got %+v", receipt)
	}
}

func TestListMessagesRejectsNonParticipant(t *testing.T) {
	service := newChatServiceForTest(&stubSessionStore{session: newTestSession()}, &stubMessageStore{}, newTestTutorReader(), nil)

	if _, _, _, err := service.ListMessages(context.Background(), 43, 11, 1, 10); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
}

func TestListInboxMergesBothSides(t *testing.T) {
	name := "Ms. Sana"
	sessions := &stubSessionStore{
		studentRows: []repository.InboxRow{
			{SessionID: 11, CounterpartID: 70, CounterpartName: &name, UnreadCount: 2},
		},
		tutorRows: []repository.InboxRow{
			{SessionID: 12, CounterpartID: 43, UnreadCount: 1},
		},
	}
	tutors := &stubTutorReader{
		byID:     map[int64]*models.TutorProfile{7: {ID: 7, UserID: 70}},
		byUserID: map[int64]*models.TutorProfile{42: {ID: 9, UserID: 42}},
	}
	service := newChatServiceForTest(sessions, &stubMessageStore{}, tutors, nil)

	entries, err := service.ListInbox(context.Background(), 42)
	if err != nil {
		t.Fatalf("ListInbox: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected entries from both sides, got %d", len(entries))
	}
	if entries[0].CounterpartName != "Ms. Sana" {
		t.Fatalf("expected counterpart name, got %q", entries[0].CounterpartName)
	}
	if entries[1].CounterpartName != "Unknown" {
		t.Fatalf("expected placeholder name for missing profile, got %q", entries[1].CounterpartName)
	}
}

func TestListInboxStudentOnlyWhenNoTutorProfile(t *testing.T) {
	sessions := &stubSessionStore{
		studentRows: []repository.InboxRow{
			{SessionID: 11, CounterpartID: 70, UnreadCount: 0},
		},
		tutorRows: []repository.InboxRow{
			{SessionID: 12, CounterpartID: 43, UnreadCount: 1},
		},
	}
	service := newChatServiceForTest(sessions, &stubMessageStore{}, &stubTutorReader{}, nil)

	entries, err := service.ListInbox(context.Background(), 42)
	if err != nil {
		t.Fatalf("ListInbox: %v", err)
	}
	if len(entries) != 1 || entries[0].SessionID != 11 {
		t.Fatalf("expected only the student side, got %+v", entries)
	}
}

type recordingHistoryCache struct {
	messages []models.Message
	total    int
	hit      bool
	gets     int
	sets     int
	deletes  int
}

func (c *recordingHistoryCache) GetHistory(_ context.Context, sessionID int64) ([]models.Message, int, bool, error) {
	c.gets++
	return c.messages, c.total, c.hit, nil
}

func (c *recordingHistoryCache) SetHistory(_ context.Context, sessionID int64, messages []models.Message, total int) error {
	c.sets++
	c.messages = messages
	c.total = total
	c.hit = true
	return nil
}

func (c *recordingHistoryCache) DeleteHistory(_ context.Context, sessionID int64) error {
	c.deletes++
	c.hit = false
	return nil
}

func TestListMessagesCachesOnlyFullFirstPage(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	messages := &stubMessageStore{
		messages: []models.Message{
			{ID: 1, SessionID: 11, SenderID: 42, Status: models.MessageStatusRead, SentAt: base},
		},
		total: 1,
	}
	history := &recordingHistoryCache{}
	service := newChatServiceForTest(&stubSessionStore{session: newTestSession()}, messages, newTestTutorReader(), history)

	if _, _, _, err := service.ListMessages(context.Background(), 42, 11, 1, HistoryCachePageLimit); err != nil {
		t.Fatalf("cacheable ListMessages: %v", err)
	}
	if history.sets != 1 {
		t.Fatalf("expected first full page to be cached, sets=%d", history.sets)
	}

	if _, _, _, err := service.ListMessages(context.Background(), 42, 11, 2, HistoryCachePageLimit); err != nil {
		t.Fatalf("page 2 ListMessages: %v", err)
	}
	if _, _, _, err := service.ListMessages(context.Background(), 42, 11, 1, 10); err != nil {
		t.Fatalf("small limit ListMessages: %v", err)
	}
	if history.sets != 1 || history.gets != 1 {
		t.Fatalf("only page 1 at the full limit may use the cache, sets=%d gets=%d", history.sets, history.gets)
	}
}

func TestSendMessageCommitsAppendAndTouchTogether(t *testing.T) {
	sessions := &stubSessionStore{session: newTestSession()}
	messages := &stubMessageStore{}
	tx := &stubChatTx{sessions: sessions, messages: messages}
	service := NewChatService(tx, sessions, messages, newTestTutorReader(), nil)

	if _, err := service.SendMessage(context.Background(), 42, 11, "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if tx.calls != 1 {
		t.Fatalf("expected one transaction per send, got %d", tx.calls)
	}
	if len(messages.appended) != 1 || sessions.touchCalls != 1 {
		t.Fatalf("append and touch must both run, appended=%d touches=%d", len(messages.appended), sessions.touchCalls)
	}
}

func TestSendMessageFailsWhenSessionTouchFails(t *testing.T) {
	touchErr := errors.New("session row gone")
	sessions := &stubSessionStore{session: newTestSession(), touchErr: touchErr}
	service := newChatServiceForTest(sessions, &stubMessageStore{}, newTestTutorReader(), nil)

	if _, err := service.SendMessage(context.Background(), 42, 11, "hello"); !errors.Is(err, touchErr) {
		t.Fatalf("a failed session bump must fail the send, got %v", err)
	}
}

func TestListMessagesMarksReadInSameTransaction(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sessions := &stubSessionStore{session: newTestSession()}
	messages := &stubMessageStore{
		messages: []models.Message{
			{ID: 1, SessionID: 11, SenderID: 70, Status: models.MessageStatusSent, SentAt: base},
		},
		total: 1,
	}
	tx := &stubChatTx{sessions: sessions, messages: messages}
	service := NewChatService(tx, sessions, messages, newTestTutorReader(), nil)

	_, _, receipt, err := service.ListMessages(context.Background(), 42, 11, 1, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if receipt == nil {
		t.Fatal("expected a read receipt")
	}
	if tx.calls != 1 {
		t.Fatalf("page read and status write must share one transaction, got %d", tx.calls)
	}
	if messages.markCalls != 1 {
		t.Fatalf("expected 1 status write, got %d", messages.markCalls)
	}
}

func TestSendMessageInvalidatesHistoryCache(t *testing.T) {
	history := &recordingHistoryCache{hit: true}
	service := newChatServiceForTest(&stubSessionStore{session: newTestSession()}, &stubMessageStore{}, newTestTutorReader(), history)

	if _, err := service.SendMessage(context.Background(), 42, 11, "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if history.deletes != 1 {
		t.Fatalf("expected cache invalidation after send, deletes=%d", history.deletes)
	}
}
