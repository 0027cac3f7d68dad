// Command ws_smoke announces a user, sends one message and waits for the acknowledgement.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/ouatt10/Troc-Scolaire-Backend/internal/proto"
)

type options struct {
	addr      string
	user      string
	token     string
	recipient string
	text      string
	timeout   time.Duration
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:           "ws_smoke",
		Short:         "Send one message through the realtime gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", "ws://localhost:8080/ws", "WebSocket address")
	flags.StringVar(&opts.user, "user", "tester", "user id to announce")
	flags.StringVar(&opts.token, "token", "", "bearer token for the announced user")
	flags.StringVar(&opts.recipient, "to", "receiver", "recipient user id")
	flags.StringVar(&opts.text, "text", "hello from smoke test", "message body to send")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Second, "total timeout for the run")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ws_smoke: %v\n", err)
		os.Exit(1)
	}
}

func run(parent context.Context, opts options) error {
	ctx, cancel := context.WithTimeout(parent, opts.timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, opts.addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeIdentityAnnounce, proto.IdentityAnnounceData{
		UserID:   opts.user,
		Token:    opts.token,
		Protocol: proto.ProtocolVersion,
	}); err != nil {
		return err
	}
	if err := send(ctx, conn, proto.InboundTypeMessageSend, proto.MessageSendData{
		Recipient: opts.recipient,
		Body:      opts.text,
	}); err != nil {
		return err
	}

	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if outbound.Error != nil {
			return fmt.Errorf("server error %s: %s", outbound.Error.Code, outbound.Error.Msg)
		}

		switch outbound.Event {
		case proto.EventMessageAck:
			var evt proto.EventMessage
			if err := json.Unmarshal(outbound.Data, &evt); err != nil {
				return fmt.Errorf("unmarshal ack: %w", err)
			}
			fmt.Printf("ack: id=%d conversation=%s body=%q sent_at=%d\n", evt.ID, evt.ConversationKey, evt.Body, evt.SentAt)
			return nil
		case proto.EventMessageSendError:
			var evt proto.EventSendError
			if err := json.Unmarshal(outbound.Data, &evt); err != nil {
				return fmt.Errorf("unmarshal send error: %w", err)
			}
			return errors.New(evt.Reason)
		default:
			fmt.Printf("event: %s %s\n", outbound.Event, string(outbound.Data))
		}
	}
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}
