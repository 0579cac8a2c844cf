package models

import "time"

const (
	MessageStatusSent = "sent"
	MessageStatusRead = "read"
)

// ChatSession is one conversation between a student (user id) and a
// tutor (tutor profile id). TutorUserID is the account behind the
// tutor profile, denormalized so callers can address the counterpart
// without a second lookup.
type ChatSession struct {
	ID          int64     `json:"id"`
	StudentID   int64     `json:"student_id"`
	TutorID     int64     `json:"tutor_id"`
	TutorUserID int64     `json:"tutor_user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Message body and sender never change after creation; status moves
// sent -> read exactly once, triggered by the recipient.
type Message struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	SenderID  int64     `json:"sender_id"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	SentAt    time.Time `json:"sent_at"`
}

// InboxEntry is a derived per-session summary row; it is computed on
// request and never persisted.
type InboxEntry struct {
	SessionID        int64    `json:"session_id"`
	CounterpartID    int64    `json:"counterpart_id"`
	CounterpartName  string   `json:"counterpart_name"`
	CounterpartImage string   `json:"counterpart_image"`
	LastMessage      *Message `json:"last_message,omitempty"`
	UnreadCount      int      `json:"unread_count"`
}
