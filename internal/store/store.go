package store

import (
	"context"
	"time"
)

const (
	// MaxBodyLength is the maximum message body length in characters.
	MaxBodyLength = 1000
	// DefaultPageSize is used when a caller asks for a page without a size.
	DefaultPageSize = 50
	// MaxPageSize caps the page size of history reads.
	MaxPageSize = 100
)

// User is the marketplace user as seen by the messaging core.
type User struct {
	ID        string
	FirstName string
	LastName  string
	Avatar    string
	CreatedAt time.Time
}

// Profile holds the public attributes shown next to a message.
type Profile struct {
	ID        string
	FirstName string
	LastName  string
	Avatar    string
}

// MessageKind classifies message content.
type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindImage  MessageKind = "image"
	MessageKindSystem MessageKind = "system"
)

// Message represents a persisted chat message.
type Message struct {
	ID              int64
	ConversationKey string      `validate:"required"`
	SenderID        string      `validate:"required"`
	RecipientID     string      `validate:"required"`
	Body            string      `validate:"required,max=1000"`
	Kind            MessageKind `validate:"oneof=text image system"`
	Read            bool
	SentAt          time.Time
	ReadAt          *time.Time
	ListingID       *string

	// Resolved from the user collaborator on reads.
	Sender    Profile
	Recipient Profile
}

// UserStore resolves participant attributes.
type UserStore interface {
	// UpsertUser creates or replaces a user's public attributes.
	UpsertUser(ctx context.Context, user *User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage validates and persists msg, filling ID, SentAt (when zero) and profiles.
	CreateMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// ListByConversation returns one page of a conversation, oldest first within the page,
	// along with the total number of messages in the conversation.
	// Page 1 holds the most recent messages.
	ListByConversation(ctx context.Context, conversationKey string, page, pageSize int) ([]*Message, int, error)

	// ListForUser returns every message sent or received by userID, newest first.
	ListForUser(ctx context.Context, userID string) ([]*Message, error)

	// MarkConversationRead flags unread messages addressed to readerID in the conversation
	// as read at the given time. Returns the number of messages updated.
	MarkConversationRead(ctx context.Context, conversationKey, readerID string, at time.Time) (int64, error)

	// CountUnread counts unread messages addressed to userID.
	CountUnread(ctx context.Context, userID string) (int, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
