package http

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ouatt10/Troc-Scolaire-Backend/internal/core"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/proto"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/store"
)

func inbound(t *testing.T, typ string, data any) proto.Inbound {
	t.Helper()

	payload, err := json.Marshal(data)
	require.NoError(t, err)
	return proto.Inbound{Type: typ, Data: payload}
}

func TestInboundToCommand(t *testing.T) {
	listing := "listing-1"

	cmd, perr := inboundToCommand(inbound(t, proto.InboundTypeMessageSend, proto.MessageSendData{
		Sender: "alice", Recipient: "bob", Body: "hi", ListingRef: &listing,
	}))
	require.Nil(t, perr)
	require.Equal(t, core.CommandSendMessage, cmd.Kind)
	require.Equal(t, core.Draft{SenderID: "alice", RecipientID: "bob", Body: "hi", ListingID: &listing}, cmd.Draft)

	cmd, perr = inboundToCommand(inbound(t, proto.InboundTypeReadMark, proto.ReadMarkData{ConversationKey: "alice_bob", ReaderID: "bob"}))
	require.Nil(t, perr)
	require.Equal(t, core.CommandMarkRead, cmd.Kind)
	require.Equal(t, "alice_bob", cmd.ConversationKey)
	require.Equal(t, "bob", cmd.ReaderID)

	cmd, perr = inboundToCommand(inbound(t, proto.InboundTypeTypingEnd, proto.TypingData{Recipient: "bob"}))
	require.Nil(t, perr)
	require.Equal(t, core.CommandTypingEnd, cmd.Kind)
	require.Equal(t, "bob", cmd.RecipientID)

	cmd, perr = inboundToCommand(inbound(t, proto.InboundTypeIdentityAnnounce, proto.IdentityAnnounceData{UserID: "alice", Protocol: proto.ProtocolVersion}))
	require.Nil(t, perr)
	require.Equal(t, core.CommandIdentify, cmd.Kind)
	require.Equal(t, "alice", cmd.UserID)
}

func TestInboundToCommandLeavesBodyLengthToStore(t *testing.T) {
	padded := "  " + strings.Repeat("é", store.MaxBodyLength) + "\n"

	cmd, perr := inboundToCommand(inbound(t, proto.InboundTypeMessageSend, proto.MessageSendData{
		Recipient: "bob", Body: padded,
	}))
	require.Nil(t, perr)
	require.Equal(t, padded, cmd.Draft.Body)
}

func TestInboundToCommandRejects(t *testing.T) {
	cases := []struct {
		name string
		in   proto.Inbound
		code string
		msg  string
	}{
		{
			name: "missing user id",
			in:   inbound(t, proto.InboundTypeIdentityAnnounce, map[string]string{}),
			code: core.ErrCodeBadRequest,
			msg:  "userId is required",
		},
		{
			name: "missing conversation key",
			in:   inbound(t, proto.InboundTypeReadMark, map[string]string{"readerId": "bob"}),
			code: core.ErrCodeBadRequest,
			msg:  "conversationKey is required",
		},
		{
			name: "malformed",
			in:   proto.Inbound{Type: proto.InboundTypeTypingBegin, Data: json.RawMessage(`"nope"`)},
			code: core.ErrCodeBadRequest,
			msg:  "malformed payload",
		},
		{
			name: "unknown type",
			in:   proto.Inbound{Type: "join"},
			code: proto.ErrCodeInvalidMessage,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, perr := inboundToCommand(tc.in)
			require.Nil(t, cmd)
			require.NotNil(t, perr)
			require.Equal(t, tc.code, perr.Code)
			if tc.msg != "" {
				require.Equal(t, tc.msg, perr.Msg)
			}
		})
	}
}

func TestOutboundFromEvent(t *testing.T) {
	sentAt := time.UnixMilli(1700000000123)
	readAt := sentAt.Add(time.Minute)
	msg := &store.Message{
		ID:              7,
		ConversationKey: "alice_bob",
		SenderID:        "alice",
		RecipientID:     "bob",
		Body:            "hi",
		Kind:            store.MessageKindText,
		Read:            true,
		SentAt:          sentAt,
		ReadAt:          &readAt,
		Sender:          store.Profile{ID: "alice", FirstName: "Alice"},
	}

	out := outboundFromEvent(&core.Event{Kind: core.EventMessageIncoming, Message: msg})
	require.Equal(t, proto.OutboundTypeEvent, out.Type)
	require.Equal(t, proto.EventMessageIncoming, out.Event)

	data, ok := out.Data.(proto.EventMessage)
	require.True(t, ok)
	require.Equal(t, int64(1700000000123), data.SentAt)
	require.Equal(t, readAt.UnixMilli(), *data.ReadAt)
	require.Equal(t, "Alice", data.Sender.FirstName)
	require.Equal(t, "bob", data.Recipient.ID)

	out = outboundFromEvent(&core.Event{Kind: core.EventReadNotice, ConversationKey: "alice_bob", ReadBy: "bob"})
	require.Equal(t, proto.EventReadNotice, out.Event)
	require.Equal(t, proto.EventReadReceipt{ConversationKey: "alice_bob", ReadBy: "bob"}, out.Data)

	out = outboundFromEvent(&core.Event{Kind: core.EventMessageSendError, Reason: "failed to send message"})
	require.Equal(t, proto.EventSendError{Reason: "failed to send message"}, out.Data)

	out = outboundFromEvent(&core.Event{Kind: core.EventError, Error: &core.CoreError{Code: core.ErrCodeAlreadyIdentified, Message: "already identified"}})
	require.Equal(t, proto.OutboundTypeError, out.Type)
	require.Equal(t, core.ErrCodeAlreadyIdentified, out.Error.Code)
}
