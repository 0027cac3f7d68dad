package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ouatt10/Troc-Scolaire-Backend/internal/auth"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/config"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/core"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub             *core.Hub
	auth            *auth.Service
	requireToken    bool
	maxMessageBytes int64
	eventBuffer     int
	rateLimit       int
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. authService may be nil when tokens are not checked.
func NewWSHandler(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:             hub,
		auth:            authService,
		requireToken:    cfg.RequireToken,
		maxMessageBytes: cfg.MaxMessageBytes,
		eventBuffer:     cfg.EventBuffer,
		rateLimit:       cfg.RateLimitPerMinute,
		log:             logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := core.NewClient(uuid.NewString(), h.eventBuffer)
	h.hub.RegisterClient(client)

	// Unregister only once Serve has returned, so no identify can run after it.
	served := make(chan struct{})
	go func() {
		defer close(served)
		h.hub.Serve(ctx, client)
	}()
	defer func() {
		cancel()
		<-served
		h.hub.UnregisterClient(client)
	}()

	limiter := newRateLimiter(h.rateLimit)
	limiter.startReset(ctx.Done())

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel()
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, limiter *rateLimiter) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("read ws inbound")
			return err
		}

		if !limiter.allow() {
			if err := writeError(ctx, conn, &proto.Error{Code: proto.ErrCodeRateLimited, Msg: "too many messages"}); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr == nil && cmd.Kind == core.CommandIdentify {
			protoErr = h.authorizeIdentity(inbound.Data)
		}
		if protoErr != nil {
			if err := writeError(ctx, conn, protoErr); err != nil {
				return err
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// authorizeIdentity checks the optional token of an identity announce.
// A token must belong to the announced user; it is mandatory when require_token is set.
func (h *WSHandler) authorizeIdentity(raw json.RawMessage) *proto.Error {
	var data proto.IdentityAnnounceData
	if err := json.Unmarshal(raw, &data); err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed payload"}
	}

	if data.Token == "" {
		if h.requireToken {
			return &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "token is required"}
		}
		return nil
	}
	if h.auth == nil {
		return nil
	}

	userID, err := h.auth.Authenticate(data.Token)
	if err != nil {
		h.log.Debug().Err(err).Str("user_id", data.UserID).Msg("identity token rejected")
		return &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "invalid token"}
	}
	if userID != data.UserID {
		return &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "token does not match user"}
	}
	return nil
}

func writeError(ctx context.Context, conn *websocket.Conn, perr *proto.Error) error {
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: perr,
	})
}
