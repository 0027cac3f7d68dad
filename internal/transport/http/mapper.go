package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ouatt10/Troc-Scolaire-Backend/internal/core"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/proto"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/store"
)

var validate = newValidator()

// newValidator reports fields by their JSON names so errors match the wire payload.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeIdentityAnnounce:
		var data proto.IdentityAnnounceData
		if perr := decode(inbound.Data, &data); perr != nil {
			return nil, perr
		}
		if data.Protocol != 0 && data.Protocol != proto.ProtocolVersion {
			return nil, &proto.Error{
				Code: proto.ErrCodeUnsupportedVersion,
				Msg:  fmt.Sprintf("protocol %d is not supported, expected %d", data.Protocol, proto.ProtocolVersion),
			}
		}
		return &core.Command{
			Kind:   core.CommandIdentify,
			UserID: data.UserID,
		}, nil
	case proto.InboundTypeMessageSend:
		var data proto.MessageSendData
		if perr := decode(inbound.Data, &data); perr != nil {
			return nil, perr
		}
		return &core.Command{
			Kind: core.CommandSendMessage,
			Draft: core.Draft{
				SenderID:    data.Sender,
				RecipientID: data.Recipient,
				Body:        data.Body,
				ListingID:   data.ListingRef,
			},
		}, nil
	case proto.InboundTypeReadMark:
		var data proto.ReadMarkData
		if perr := decode(inbound.Data, &data); perr != nil {
			return nil, perr
		}
		return &core.Command{
			Kind:            core.CommandMarkRead,
			ConversationKey: data.ConversationKey,
			ReaderID:        data.ReaderID,
		}, nil
	case proto.InboundTypeTypingBegin, proto.InboundTypeTypingEnd:
		var data proto.TypingData
		if perr := decode(inbound.Data, &data); perr != nil {
			return nil, perr
		}
		kind := core.CommandTypingBegin
		if inbound.Type == proto.InboundTypeTypingEnd {
			kind = core.CommandTypingEnd
		}
		return &core.Command{
			Kind:        kind,
			SenderID:    data.Sender,
			RecipientID: data.Recipient,
		}, nil
	default:
		return nil, &proto.Error{Code: proto.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

// decode unmarshals a payload and validates its tags.
func decode(raw json.RawMessage, dst any) *proto.Error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed payload"}
	}
	if err := validate.Struct(dst); err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: validationMessage(err)}
	}
	return nil
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid payload"
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessageAck, core.EventMessageIncoming:
		name := proto.EventMessageAck
		if event.Kind == core.EventMessageIncoming {
			name = proto.EventMessageIncoming
		}
		if event.Message == nil {
			return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: name,
			Data:  messageToProto(event.Message),
		}
	case core.EventMessageSendError:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageSendError,
			Data:  proto.EventSendError{Reason: event.Reason},
		}
	case core.EventReadNotice:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReadNotice,
			Data: proto.EventReadReceipt{
				ConversationKey: event.ConversationKey,
				ReadBy:          event.ReadBy,
			},
		}
	case core.EventTypingIndicator:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventTypingIndicator,
			Data:  proto.EventTyping{UserID: event.UserID, Active: event.Active},
		}
	case core.EventPresenceOnline:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPresenceOnline,
			Data:  proto.EventPresence{UserID: event.UserID},
		}
	case core.EventPresenceOffline:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPresenceOffline,
			Data:  proto.EventPresence{UserID: event.UserID},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func messageToProto(msg *store.Message) proto.EventMessage {
	out := proto.EventMessage{
		ID:              msg.ID,
		ConversationKey: msg.ConversationKey,
		Sender:          participant(msg.SenderID, msg.Sender),
		Recipient:       participant(msg.RecipientID, msg.Recipient),
		Body:            msg.Body,
		Kind:            string(msg.Kind),
		Read:            msg.Read,
		SentAt:          msg.SentAt.UnixMilli(),
		ListingRef:      msg.ListingID,
	}
	if msg.ReadAt != nil {
		readAt := msg.ReadAt.UnixMilli()
		out.ReadAt = &readAt
	}
	return out
}

// participant falls back to the bare id when the user collaborator has no profile.
func participant(id string, p store.Profile) proto.Participant {
	return proto.Participant{
		ID:        id,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Avatar:    p.Avatar,
	}
}
