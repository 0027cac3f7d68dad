package messages

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/ouatt10/Troc-Scolaire-Backend/internal/store"
)

// ConversationSummary is one entry of a user's conversation list.
type ConversationSummary struct {
	Key           string
	Other         store.Profile
	LastMessage   string
	LastMessageAt time.Time
	Unread        int
}

// Conversations builds the conversation list of userID, most recently active first.
func (s *Service) Conversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	msgs, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user messages: %w", err)
	}
	return Summarize(userID, msgs), nil
}

// Summarize groups msgs (newest first) by conversation key in first-seen order.
func Summarize(userID string, msgs []*store.Message) []ConversationSummary {
	summaries := make([]ConversationSummary, 0)
	index := make(map[string]int)

	for _, msg := range msgs {
		i, seen := index[msg.ConversationKey]
		if !seen {
			i = len(summaries)
			index[msg.ConversationKey] = i
			summaries = append(summaries, ConversationSummary{
				Key:           msg.ConversationKey,
				Other:         lo.Ternary(msg.SenderID == userID, msg.Recipient, msg.Sender),
				LastMessage:   msg.Body,
				LastMessageAt: msg.SentAt,
			})
		}
		if msg.RecipientID == userID && !msg.Read {
			summaries[i].Unread++
		}
	}

	return summaries
}
