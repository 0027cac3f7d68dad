package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeIdentityAnnounce = "identity-announce"
	InboundTypeMessageSend      = "message-send"
	InboundTypeReadMark         = "read-mark"
	InboundTypeTypingBegin      = "typing-begin"
	InboundTypeTypingEnd        = "typing-end"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventMessageAck       = "message-ack"
	EventMessageIncoming  = "message-incoming"
	EventMessageSendError = "message-send-error"
	EventReadNotice       = "read-notice"
	EventTypingIndicator  = "typing-indicator"
	EventPresenceOnline   = "presence-online"
	EventPresenceOffline  = "presence-offline"
)

// Protocol-level error codes. Domain errors reuse the core codes.
const (
	ErrCodeInvalidMessage     = "invalid_message"
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeRateLimited        = "rate_limited"
)

// IdentityAnnounceData binds the connection to a user.
type IdentityAnnounceData struct {
	UserID   string `json:"userId" validate:"required"`
	Token    string `json:"token,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// MessageSendData is a chat message from the client.
// Sender may be omitted on an identified connection. Body length is checked after trimming, by the store.
type MessageSendData struct {
	Sender     string  `json:"sender,omitempty"`
	Recipient  string  `json:"recipient" validate:"required"`
	Body       string  `json:"body" validate:"required"`
	ListingRef *string `json:"listingRef,omitempty"`
}

// ReadMarkData marks a conversation as read by the reader.
type ReadMarkData struct {
	ConversationKey string `json:"conversationKey" validate:"required"`
	ReaderID        string `json:"readerId,omitempty"`
}

// TypingData starts or stops a typing indicator.
type TypingData struct {
	Sender    string `json:"sender,omitempty"`
	Recipient string `json:"recipient" validate:"required"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Participant is the public profile attached to a message.
type Participant struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}

// EventMessage is a persisted message as seen by clients.
type EventMessage struct {
	ID              int64       `json:"id"`
	ConversationKey string      `json:"conversationKey"`
	Sender          Participant `json:"sender"`
	Recipient       Participant `json:"recipient"`
	Body            string      `json:"body"`
	Kind            string      `json:"kind"`
	Read            bool        `json:"read"`
	SentAt          int64       `json:"sentAt"`
	ReadAt          *int64      `json:"readAt,omitempty"`
	ListingRef      *string     `json:"listingRef,omitempty"`
}

// EventSendError reports a failed message-send.
type EventSendError struct {
	Reason string `json:"reason"`
}

// EventReadReceipt tells a participant the conversation was read.
type EventReadReceipt struct {
	ConversationKey string `json:"conversationKey"`
	ReadBy          string `json:"readBy"`
}

// EventTyping relays a typing indicator.
type EventTyping struct {
	UserID string `json:"userId"`
	Active bool   `json:"active"`
}

// EventPresence announces a user going online or offline.
type EventPresence struct {
	UserID string `json:"userId"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
