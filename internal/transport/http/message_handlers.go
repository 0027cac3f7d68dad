package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/ouatt10/Troc-Scolaire-Backend/internal/conversation"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/proto"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/service/messages"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/store"
)

// MessageHandlers provides the pull-based message endpoints.
type MessageHandlers struct {
	messages *messages.Service
	pageSize int
	log      *zerolog.Logger
}

// NewMessageHandlers creates message handlers. pageSize applies when the query has no limit.
func NewMessageHandlers(svc *messages.Service, pageSize int, logger *zerolog.Logger) *MessageHandlers {
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}
	return &MessageHandlers{
		messages: svc,
		pageSize: pageSize,
		log:      logger,
	}
}

// ConversationResponse is one entry of the conversation list.
type ConversationResponse struct {
	ConversationKey string            `json:"conversationKey"`
	OtherUser       proto.Participant `json:"otherUser"`
	LastMessage     string            `json:"lastMessage"`
	LastMessageAt   int64             `json:"lastMessageAt"`
	UnreadCount     int               `json:"unreadCount"`
}

// PaginationResponse describes a history page.
type PaginationResponse struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// HistoryResponse is a page of a conversation, oldest first.
type HistoryResponse struct {
	Data       []proto.EventMessage `json:"data"`
	Pagination PaginationResponse   `json:"pagination"`
}

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	Recipient  string  `json:"recipient" binding:"required"`
	Body       string  `json:"body" binding:"required"`
	Kind       string  `json:"kind" binding:"omitempty,oneof=text image system"`
	ListingRef *string `json:"listingRef"`
}

// MarkReadResponse reports how many messages were flagged.
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

// UnreadCountResponse holds the unread total of the caller.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// ListConversations returns the caller's conversations, most recently active first.
// GET /api/messages/conversations
func (h *MessageHandlers) ListConversations(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	summaries, err := h.messages.Conversations(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "failed to list conversations")
		return
	}

	c.JSON(http.StatusOK, lo.Map(summaries, func(s messages.ConversationSummary, _ int) ConversationResponse {
		return ConversationResponse{
			ConversationKey: s.Key,
			OtherUser:       participant(s.Other.ID, s.Other),
			LastMessage:     s.LastMessage,
			LastMessageAt:   s.LastMessageAt.UnixMilli(),
			UnreadCount:     s.Unread,
		}
	}))
}

// GetHistory returns one page of a conversation the caller takes part in.
// GET /api/messages/:conversationKey?page=&limit=
func (h *MessageHandlers) GetHistory(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	key := c.Param("conversationKey")
	if !conversation.Contains(key, userID) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: messages.ErrNotParticipant.Error()})
		return
	}

	page, err := queryInt(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
		return
	}
	limit, err := queryInt(c, "limit", h.pageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		return
	}

	result, err := h.messages.History(c.Request.Context(), key, page, limit)
	if err != nil {
		h.fail(c, err, "failed to load messages")
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{
		Data: lo.Map(result.Messages, func(m *store.Message, _ int) proto.EventMessage {
			return messageToProto(m)
		}),
		Pagination: PaginationResponse{
			Page:  result.Page,
			Limit: result.Limit,
			Total: result.Total,
			Pages: result.Pages,
		},
	})
}

// SendMessage persists a message from the caller.
// POST /api/messages
func (h *MessageHandlers) SendMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), messages.SendRequest{
		SenderID:    userID,
		RecipientID: req.Recipient,
		Body:        req.Body,
		Kind:        store.MessageKind(req.Kind),
		ListingID:   req.ListingRef,
	})
	if err != nil {
		h.fail(c, err, "failed to send message")
		return
	}

	c.JSON(http.StatusCreated, messageToProto(msg))
}

// MarkRead flags the caller's unread messages of a conversation as read.
// PUT /api/messages/:conversationKey/mark-read
func (h *MessageHandlers) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	n, _, err := h.messages.MarkRead(c.Request.Context(), c.Param("conversationKey"), userID)
	if err != nil {
		h.fail(c, err, "failed to mark messages as read")
		return
	}

	c.JSON(http.StatusOK, MarkReadResponse{Updated: n})
}

// UnreadCount returns the number of unread messages addressed to the caller.
// GET /api/messages/unread/count
func (h *MessageHandlers) UnreadCount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	n, err := h.messages.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "failed to count unread messages")
		return
	}

	c.JSON(http.StatusOK, UnreadCountResponse{Count: n})
}

// fail maps service errors to HTTP statuses. Unexpected errors are logged and hidden.
func (h *MessageHandlers) fail(c *gin.Context, err error, msg string) {
	var ve *store.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ve.Error()})
	case errors.Is(err, messages.ErrNotParticipant):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msg})
	}
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("must be a positive integer")
	}
	return n, nil
}
