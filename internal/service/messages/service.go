// Package messages implements the message operations shared by the realtime
// gateway and the REST API.
package messages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ouatt10/Troc-Scolaire-Backend/internal/conversation"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/store"
)

// ErrNotParticipant is returned when a user acts on a conversation they are not part of.
var ErrNotParticipant = errors.New("not a participant of this conversation")

// SendRequest describes a message to persist.
type SendRequest struct {
	SenderID    string
	RecipientID string
	Body        string
	Kind        store.MessageKind
	ListingID   *string
	// SentAt is assigned by the store when zero.
	SentAt time.Time
}

// Page is one page of a conversation history.
type Page struct {
	Messages []*store.Message
	Page     int
	Limit    int
	Total    int
	Pages    int
}

// Service provides message business logic on top of a store.
type Service struct {
	store store.Store
	now   func() time.Time
}

// New creates a new message service.
func New(st store.Store) *Service {
	return &Service{
		store: st,
		now:   time.Now,
	}
}

// Send derives the conversation key and persists the message.
func (s *Service) Send(ctx context.Context, req SendRequest) (*store.Message, error) {
	if req.SenderID == "" {
		return nil, &store.ValidationError{Field: "SenderID", Reason: "is required"}
	}
	if req.RecipientID == "" {
		return nil, &store.ValidationError{Field: "RecipientID", Reason: "is required"}
	}

	msg := &store.Message{
		ConversationKey: conversation.Key(req.SenderID, req.RecipientID),
		SenderID:        req.SenderID,
		RecipientID:     req.RecipientID,
		Body:            req.Body,
		Kind:            req.Kind,
		ListingID:       req.ListingID,
		SentAt:          req.SentAt,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// History returns a page of a conversation, oldest first within the page.
func (s *Service) History(ctx context.Context, conversationKey string, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = store.DefaultPageSize
	}
	limit = min(limit, store.MaxPageSize)

	msgs, total, err := s.store.ListByConversation(ctx, conversationKey, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}

	return &Page{
		Messages: msgs,
		Page:     page,
		Limit:    limit,
		Total:    total,
		Pages:    (total + limit - 1) / limit,
	}, nil
}

// MarkRead flags every unread message addressed to readerID in the conversation as read.
// It returns the number of messages updated and the other participant of the conversation.
func (s *Service) MarkRead(ctx context.Context, conversationKey, readerID string) (int64, string, error) {
	if conversationKey == "" {
		return 0, "", &store.ValidationError{Field: "ConversationKey", Reason: "is required"}
	}
	if readerID == "" {
		return 0, "", &store.ValidationError{Field: "ReaderID", Reason: "is required"}
	}
	other, ok := conversation.Other(conversationKey, readerID)
	if !ok {
		return 0, "", ErrNotParticipant
	}

	n, err := s.store.MarkConversationRead(ctx, conversationKey, readerID, s.now())
	if err != nil {
		return 0, "", fmt.Errorf("mark read: %w", err)
	}
	return n, other, nil
}

// UnreadCount returns how many messages addressed to userID are unread.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}
