package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ouatt10/Troc-Scolaire-Backend/internal/conversation"
)

var validate = validator.New()

// PrepareMessage normalizes msg (trimmed body, default kind) and checks it is storable.
func PrepareMessage(msg *Message) error {
	if msg == nil {
		return &ValidationError{Field: "message", Reason: "is required"}
	}
	msg.Body = strings.TrimSpace(msg.Body)
	if msg.Kind == "" {
		msg.Kind = MessageKindText
	}

	if err := validate.Struct(msg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fieldError(fieldErrs[0])
		}
		return fmt.Errorf("validate message: %w", err)
	}

	if msg.ConversationKey != conversation.Key(msg.SenderID, msg.RecipientID) {
		return &ValidationError{Field: "ConversationKey", Reason: "does not match participants"}
	}
	return nil
}

func fieldError(fe validator.FieldError) *ValidationError {
	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "max":
		reason = "exceeds " + fe.Param() + " characters"
	case "oneof":
		reason = "must be one of " + fe.Param()
	default:
		reason = "failed " + fe.Tag()
	}
	return &ValidationError{Field: fe.Field(), Reason: reason}
}
