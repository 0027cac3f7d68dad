package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ouatt10/Troc-Scolaire-Backend/internal/auth"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/config"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/core"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/presence"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/proto"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/service/messages"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/store"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/store/sqlite"
)

const testJWTSecret = "test-secret"

type testEnv struct {
	ts       *httptest.Server
	handler  stdhttp.Handler
	auth     *auth.Service
	messages *messages.Service
	hub      *core.Hub
}

// rawOutbound keeps event data undecoded so tests can pick the payload type.
type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// newTestEnv starts a server over an in-memory store seeded with alice, bob and carol.
func newTestEnv(t *testing.T, mutate func(cfg *config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	for _, u := range []store.User{
		{ID: "alice", FirstName: "Alice", LastName: "Kone"},
		{ID: "bob", FirstName: "Bob", LastName: "Traore"},
		{ID: "carol", FirstName: "Carol"},
	} {
		require.NoError(t, st.UpsertUser(context.Background(), &u))
	}

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.JWTSecret = testJWTSecret
	cfg.JWTIssuer = "test"
	cfg.JWTAudience = "test"
	if mutate != nil {
		mutate(&cfg)
	}

	disabledLogger := zerolog.Nop()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	})
	svc := messages.New(st)
	hub := core.NewHub(svc, presence.NewRegistry[*core.Client](), &disabledLogger, core.WithRequireIdentity(cfg.RequireToken))

	server := NewServer(hub, svc, authService, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{
		ts:       ts,
		handler:  server.Handler,
		auth:     authService,
		messages: svc,
		hub:      hub,
	}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()

	token, err := e.auth.IssueToken(context.Background(), userID)
	require.NoError(t, err)
	return token
}

func (e *testEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}))
}

// readUntil skips outbound frames until one matches event, or an error when event is empty.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) rawOutbound {
	t.Helper()

	for {
		var out rawOutbound
		require.NoError(t, wsjson.Read(ctx, conn, &out), "waiting for %q", event)
		if event == "" && out.Type == proto.OutboundTypeError {
			return out
		}
		if event != "" && out.Type == proto.OutboundTypeEvent && out.Event == event {
			return out
		}
	}
}

func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) *proto.Error {
	t.Helper()

	out := readUntil(t, ctx, conn, "")
	require.NotNil(t, out.Error)
	return out.Error
}

func decodeData[T any](t *testing.T, out rawOutbound) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(out.Data, &v))
	return v
}

// waitOnline blocks until the hub lists userID as present.
func (e *testEnv) waitOnline(t *testing.T, userID string) {
	t.Helper()

	require.Eventually(t, func() bool { return e.hub.IsOnline(userID) }, 2*time.Second, 10*time.Millisecond)
}
