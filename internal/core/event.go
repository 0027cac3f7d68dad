package core

import "github.com/ouatt10/Troc-Scolaire-Backend/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventPresenceOnline notifies other connections that a user identified.
	EventPresenceOnline EventKind = iota
	// EventPresenceOffline notifies other connections that a user disconnected.
	EventPresenceOffline
	// EventMessageAck confirms to the sender that a message was persisted.
	EventMessageAck
	// EventMessageIncoming delivers a new message to a present recipient.
	EventMessageIncoming
	// EventMessageSendError tells the sender a message could not be sent.
	EventMessageSendError
	// EventReadNotice tells a participant the other side read the conversation.
	EventReadNotice
	// EventTypingIndicator relays a typing start/stop.
	EventTypingIndicator
	// EventError notifies clients about a domain error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventPresenceOnline:
		return "presence_online"
	case EventPresenceOffline:
		return "presence_offline"
	case EventMessageAck:
		return "message_ack"
	case EventMessageIncoming:
		return "message_incoming"
	case EventMessageSendError:
		return "message_send_error"
	case EventReadNotice:
		return "read_notice"
	case EventTypingIndicator:
		return "typing_indicator"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind EventKind

	// Presence and typing events name the user concerned.
	UserID string
	Active bool

	Message *store.Message

	ConversationKey string
	ReadBy          string

	Reason string
	Error  *CoreError
}
