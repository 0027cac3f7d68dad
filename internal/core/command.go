package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandIdentify announces the user identity of the connection.
	CommandIdentify CommandKind = iota
	// CommandSendMessage persists a message and pushes it to the recipient.
	CommandSendMessage
	// CommandMarkRead marks a conversation as read by the reader.
	CommandMarkRead
	// CommandTypingBegin forwards a typing indicator.
	CommandTypingBegin
	// CommandTypingEnd clears a typing indicator.
	CommandTypingEnd
)

func (k CommandKind) String() string {
	switch k {
	case CommandIdentify:
		return "identify"
	case CommandSendMessage:
		return "send_message"
	case CommandMarkRead:
		return "mark_read"
	case CommandTypingBegin:
		return "typing_begin"
	case CommandTypingEnd:
		return "typing_end"
	default:
		return "unknown"
	}
}

// Draft is a message as submitted by a client.
type Draft struct {
	SenderID    string
	RecipientID string
	Body        string
	ListingID   *string
}

// Command represents an action requested by a client.
// Only the fields of the variant named by Kind are meaningful.
type Command struct {
	Kind CommandKind

	// CommandIdentify
	UserID string

	// CommandSendMessage
	Draft Draft

	// CommandMarkRead
	ConversationKey string
	ReaderID        string

	// CommandTypingBegin, CommandTypingEnd
	SenderID    string
	RecipientID string
}
