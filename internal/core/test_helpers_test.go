package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ouatt10/Troc-Scolaire-Backend/internal/presence"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/service/messages"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/store"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/store/sqlite"
)

func newTestHub(tb testing.TB, opts ...Option) (*Hub, *messages.Service) {
	tb.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = st.Close() })

	for _, id := range []string{"alice", "bob", "carol"} {
		require.NoError(tb, st.UpsertUser(context.Background(), &store.User{ID: id, FirstName: id}))
	}

	svc := messages.New(st)
	return NewHub(svc, presence.NewRegistry[*Client](), nil, opts...), svc
}

// connect registers a client and, when user is non-empty, identifies it.
func connect(t *testing.T, hub *Hub, id, user string) *Client {
	t.Helper()

	c := NewClient(id, 16)
	hub.RegisterClient(c)
	if user != "" {
		hub.Handle(context.Background(), c, &Command{Kind: CommandIdentify, UserID: user})
		require.Equal(t, StateIdentified, c.State(), "client %s not identified", id)
	}
	return c
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				return ev
			}
		case <-deadline:
			require.FailNow(t, "event not received", "expected event kind %v", kind)
			return nil
		}
	}
}

// drain discards pending events.
func drain(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func noEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()

	select {
	case ev := <-ch:
		require.FailNow(t, "unexpected event", "%v: %+v", ev.Kind, ev)
	case <-time.After(50 * time.Millisecond):
	}
}
