package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ouatt10/Troc-Scolaire-Backend/internal/presence"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/service/messages"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/store"
)

// MessageService is the persistence side the hub needs.
type MessageService interface {
	Send(ctx context.Context, req messages.SendRequest) (*store.Message, error)
	MarkRead(ctx context.Context, conversationKey, readerID string) (int64, string, error)
}

type handlerFunc func(ctx context.Context, c *Client, cmd *Command)

// Option configures a Hub.
type Option func(*Hub)

// WithRequireIdentity makes the hub refuse every command but identify from anonymous connections.
func WithRequireIdentity(required bool) Option {
	return func(h *Hub) {
		h.requireIdentity = required
	}
}

// Hub routes client commands, persists messages and pushes events to live connections.
// Each client's commands are handled in receipt order by its own Serve loop.
type Hub struct {
	messages MessageService
	presence *presence.Registry[*Client]
	log      *zerolog.Logger
	now      func() time.Time

	requireIdentity bool

	mu      sync.RWMutex
	clients map[*Client]struct{}

	handlers map[CommandKind]handlerFunc
}

// NewHub creates a new chat hub instance.
func NewHub(svc MessageService, registry *presence.Registry[*Client], logger *zerolog.Logger, opts ...Option) *Hub {
	if registry == nil {
		registry = presence.NewRegistry[*Client]()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	h := &Hub{
		messages: svc,
		presence: registry,
		log:      logger,
		now:      time.Now,
		clients:  make(map[*Client]struct{}),
	}
	h.handlers = map[CommandKind]handlerFunc{
		CommandIdentify:    h.handleIdentify,
		CommandSendMessage: h.handleSendMessage,
		CommandMarkRead:    h.handleMarkRead,
		CommandTypingBegin: h.handleTyping,
		CommandTypingEnd:   h.handleTyping,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterClient adds a new anonymous connection.
func (h *Hub) RegisterClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.log.Debug().Str("client_id", c.ID).Msg("client connected")
}

// UnregisterClient closes the connection, clears its presence and tells the others.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	userID, ok := c.close()
	if !ok {
		return
	}
	if userID == "" {
		h.log.Debug().Str("client_id", c.ID).Msg("anonymous client disconnected")
		return
	}

	if !h.presence.Unregister(userID, c) {
		h.log.Debug().Str("client_id", c.ID).Str("user_id", userID).Msg("presence already held by a newer connection")
		return
	}
	h.broadcastExcept(c, &Event{Kind: EventPresenceOffline, UserID: userID})
	h.log.Info().Str("client_id", c.ID).Str("user_id", userID).Msg("user disconnected")
}

// Serve handles the client's commands in order until ctx is cancelled or Commands is closed.
func (h *Hub) Serve(ctx context.Context, c *Client) {
	for {
		select {
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			h.Handle(ctx, c, cmd)
		case <-ctx.Done():
			return
		}
	}
}

// Handle dispatches a single command. A failing command never affects later ones.
func (h *Hub) Handle(ctx context.Context, c *Client, cmd *Command) {
	if cmd == nil {
		return
	}
	if c.State() == StateClosed {
		return
	}

	handler, ok := h.handlers[cmd.Kind]
	if !ok {
		h.sendError(c, coreError(ErrCodeBadRequest, "unknown command"))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Str("client_id", c.ID).Str("command", cmd.Kind.String()).
				Str("panic", fmt.Sprint(r)).Msg("command handler panicked")
			h.sendError(c, coreError(ErrCodeInternal, "internal error"))
		}
	}()

	handler(ctx, c, cmd)
}

// Online lists the users that currently hold an identified connection.
func (h *Hub) Online() []string {
	return h.presence.Online()
}

// IsOnline reports whether userID holds an identified connection.
func (h *Hub) IsOnline(userID string) bool {
	_, ok := h.presence.Lookup(userID)
	return ok
}

func (h *Hub) handleIdentify(_ context.Context, c *Client, cmd *Command) {
	if cmd.UserID == "" {
		h.sendError(c, coreError(ErrCodeBadRequest, "user id is required"))
		return
	}
	if err := c.identify(cmd.UserID); err != nil {
		h.sendError(c, err)
		return
	}

	if prev, replaced := h.presence.Register(cmd.UserID, c); replaced && prev != c {
		h.log.Debug().Str("user_id", cmd.UserID).Str("previous_client_id", prev.ID).
			Msg("newer connection takes over presence")
	}
	// A disconnect racing this identify may already have run its unregister.
	if c.State() == StateClosed {
		h.presence.Unregister(cmd.UserID, c)
		return
	}

	h.broadcastExcept(c, &Event{Kind: EventPresenceOnline, UserID: cmd.UserID})
	h.log.Info().Str("client_id", c.ID).Str("user_id", cmd.UserID).
		Int("online", h.presence.Len()).Msg("user connected")
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, cmd *Command) {
	draft := cmd.Draft
	senderID, cerr := h.actingUser(c, draft.SenderID)
	if cerr != nil {
		h.sendError(c, cerr)
		return
	}

	msg, err := h.messages.Send(ctx, messages.SendRequest{
		SenderID:    senderID,
		RecipientID: draft.RecipientID,
		Body:        draft.Body,
		Kind:        store.MessageKindText,
		ListingID:   draft.ListingID,
		SentAt:      h.now(),
	})
	if err != nil {
		reason := "failed to send message"
		var ve *store.ValidationError
		if errors.As(err, &ve) {
			reason = ve.Error()
		} else {
			h.log.Error().Err(err).Str("client_id", c.ID).Str("sender_id", senderID).
				Str("recipient_id", draft.RecipientID).Msg("persist message")
		}
		h.push(c, &Event{Kind: EventMessageSendError, Reason: reason})
		return
	}

	h.push(c, &Event{Kind: EventMessageAck, Message: msg})

	if recipient, ok := h.presence.Lookup(msg.RecipientID); ok {
		h.push(recipient, &Event{Kind: EventMessageIncoming, Message: msg})
	}

	h.log.Debug().Int64("message_id", msg.ID).Str("conversation_key", msg.ConversationKey).
		Str("sender_id", msg.SenderID).Str("recipient_id", msg.RecipientID).Msg("message sent")
}

func (h *Hub) handleMarkRead(ctx context.Context, c *Client, cmd *Command) {
	readerID, cerr := h.actingUser(c, cmd.ReaderID)
	if cerr != nil {
		h.sendError(c, cerr)
		return
	}

	n, otherID, err := h.messages.MarkRead(ctx, cmd.ConversationKey, readerID)
	if err != nil {
		var ve *store.ValidationError
		switch {
		case errors.As(err, &ve):
			h.sendError(c, coreError(ErrCodeBadRequest, ve.Error()))
		case errors.Is(err, messages.ErrNotParticipant):
			h.sendError(c, coreError(ErrCodeNotParticipant, err.Error()))
		default:
			h.log.Error().Err(err).Str("client_id", c.ID).Str("conversation_key", cmd.ConversationKey).
				Msg("mark conversation read")
			h.sendError(c, coreError(ErrCodeStorage, "failed to mark messages as read"))
		}
		return
	}

	if other, ok := h.presence.Lookup(otherID); ok {
		h.push(other, &Event{Kind: EventReadNotice, ConversationKey: cmd.ConversationKey, ReadBy: readerID})
	}

	h.log.Debug().Str("conversation_key", cmd.ConversationKey).Str("reader_id", readerID).
		Int64("updated", n).Msg("conversation read")
}

func (h *Hub) handleTyping(_ context.Context, c *Client, cmd *Command) {
	senderID, cerr := h.actingUser(c, cmd.SenderID)
	if cerr != nil {
		h.sendError(c, cerr)
		return
	}
	if cmd.RecipientID == "" {
		h.sendError(c, coreError(ErrCodeBadRequest, "recipient is required"))
		return
	}

	recipient, ok := h.presence.Lookup(cmd.RecipientID)
	if !ok {
		return
	}
	h.push(recipient, &Event{
		Kind:   EventTypingIndicator,
		UserID: senderID,
		Active: cmd.Kind == CommandTypingBegin,
	})
}

// actingUser resolves who performs a command. Identified connections may omit the id
// but cannot act for someone else; anonymous connections must name the user unless
// identity is required.
func (h *Hub) actingUser(c *Client, claimed string) (string, *CoreError) {
	identity := c.UserID()
	switch {
	case identity == "" && h.requireIdentity:
		return "", coreError(ErrCodeUnauthorized, "identify before sending commands")
	case identity == "" && claimed == "":
		return "", coreError(ErrCodeBadRequest, "user id is required")
	case identity == "":
		return claimed, nil
	case claimed == "" || claimed == identity:
		return identity, nil
	default:
		return "", coreError(ErrCodeUnauthorized, "cannot act on behalf of another user")
	}
}

func (h *Hub) broadcastExcept(sender *Client, event *Event) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c != sender {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.push(c, event)
	}
}

func (h *Hub) push(c *Client, event *Event) {
	if !c.deliver(event) {
		h.log.Warn().Str("client_id", c.ID).Str("event", event.Kind.String()).Msg("dropping event for slow client")
	}
}

func (h *Hub) sendError(c *Client, err *CoreError) {
	h.push(c, &Event{Kind: EventError, Error: err})
}
