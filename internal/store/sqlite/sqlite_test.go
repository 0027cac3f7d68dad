package sqlite

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ouatt10/Troc-Scolaire-Backend/internal/conversation"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUsers(t *testing.T, s *SQLiteStore, ids ...string) {
	t.Helper()

	for _, id := range ids {
		require.NoError(t, s.UpsertUser(context.Background(), &store.User{
			ID:        id,
			FirstName: "First " + id,
			LastName:  "Last " + id,
			Avatar:    "https://cdn.example.com/" + id + ".png",
		}))
	}
}

func send(t *testing.T, s *SQLiteStore, from, to, body string, at time.Time) *store.Message {
	t.Helper()

	msg := &store.Message{
		ConversationKey: conversation.Key(from, to),
		SenderID:        from,
		RecipientID:     to,
		Body:            body,
		SentAt:          at,
	}
	require.NoError(t, s.CreateMessage(context.Background(), msg))
	return msg
}

func TestCreateMessageResolvesProfiles(t *testing.T) {
	s := newTestStore(t)
	seedUsers(t, s, "alice", "bob")

	listing := "listing-42"
	msg := &store.Message{
		ConversationKey: "alice_bob",
		SenderID:        "alice",
		RecipientID:     "bob",
		Body:            " hello ",
		ListingID:       &listing,
	}
	require.NoError(t, s.CreateMessage(context.Background(), msg))

	require.NotZero(t, msg.ID)
	require.Equal(t, "hello", msg.Body)
	require.Equal(t, store.MessageKindText, msg.Kind)
	require.False(t, msg.Read)
	require.Nil(t, msg.ReadAt)
	require.False(t, msg.SentAt.IsZero())
	require.NotNil(t, msg.ListingID)
	require.Equal(t, listing, *msg.ListingID)
	require.Equal(t, "First alice", msg.Sender.FirstName)
	require.Equal(t, "bob", msg.Recipient.ID)
	require.Equal(t, "https://cdn.example.com/bob.png", msg.Recipient.Avatar)
}

func TestCreateMessageKeepsCallerTimestamp(t *testing.T) {
	s := newTestStore(t)

	at := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	msg := send(t, s, "alice", "bob", "hi", at)
	require.True(t, at.Equal(msg.SentAt), "got %v", msg.SentAt)
}

func TestCreateMessageValidation(t *testing.T) {
	s := newTestStore(t)

	err := s.CreateMessage(context.Background(), &store.Message{
		ConversationKey: "alice_bob",
		SenderID:        "alice",
		RecipientID:     "bob",
		Body:            "",
	})
	var ve *store.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)

	_, total, err := s.ListByConversation(context.Background(), "alice_bob", 1, 10)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestListByConversationOrdering(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// Inserted out of order on purpose.
	send(t, s, "bob", "alice", "second", base.Add(2*time.Second))
	send(t, s, "alice", "bob", "first", base.Add(time.Second))
	send(t, s, "alice", "bob", "third", base.Add(3*time.Second))
	send(t, s, "alice", "carol", "elsewhere", base)

	messages, total, err := s.ListByConversation(context.Background(), "alice_bob", 1, 50)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, messages, 3)
	require.Equal(t, "first", messages[0].Body)
	require.Equal(t, "second", messages[1].Body)
	require.Equal(t, "third", messages[2].Body)
}

func TestListByConversationPagination(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 10; i++ {
		send(t, s, "alice", "bob", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	page1, total, err := s.ListByConversation(context.Background(), "alice_bob", 1, 4)
	require.NoError(t, err)
	require.Equal(t, 10, total)
	require.Equal(t, []string{"m7", "m8", "m9", "m10"}, bodies(page1))

	page2, _, err := s.ListByConversation(context.Background(), "alice_bob", 2, 4)
	require.NoError(t, err)
	require.Equal(t, []string{"m3", "m4", "m5", "m6"}, bodies(page2))

	page3, _, err := s.ListByConversation(context.Background(), "alice_bob", 3, 4)
	require.NoError(t, err)
	require.Equal(t, []string{"m1", "m2"}, bodies(page3))

	page4, _, err := s.ListByConversation(context.Background(), "alice_bob", 4, 4)
	require.NoError(t, err)
	require.Empty(t, page4)
}

func TestListByConversationHugePageIsEmpty(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		send(t, s, "alice", "bob", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	for _, page := range []int{math.MaxInt, math.MaxInt / 2, math.MaxInt/store.MaxPageSize + 2} {
		messages, total, err := s.ListByConversation(context.Background(), "alice_bob", page, store.MaxPageSize)
		require.NoError(t, err)
		require.Equal(t, 3, total)
		require.Empty(t, messages, "page %d", page)
	}

	messages, _, err := s.ListByConversation(context.Background(), "alice_bob", 1, math.MaxInt)
	require.NoError(t, err)
	require.Len(t, messages, 3)
}

func TestListForUserNewestFirst(t *testing.T) {
	s := newTestStore(t)
	seedUsers(t, s, "alice", "bob", "carol")
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	send(t, s, "alice", "bob", "one", base)
	send(t, s, "carol", "alice", "two", base.Add(time.Minute))
	send(t, s, "bob", "carol", "unrelated", base.Add(2*time.Minute))

	messages, err := s.ListForUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"two", "one"}, bodies(messages))
	require.Equal(t, "First carol", messages[0].Sender.FirstName)
}

func TestMarkConversationReadIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	send(t, s, "alice", "bob", "a", base)
	send(t, s, "alice", "bob", "b", base.Add(time.Second))
	send(t, s, "bob", "alice", "reply", base.Add(2*time.Second))

	readAt := base.Add(time.Hour)
	n, err := s.MarkConversationRead(ctx, "alice_bob", "bob", readAt)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = s.MarkConversationRead(ctx, "alice_bob", "bob", readAt.Add(time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)

	messages, _, err := s.ListByConversation(ctx, "alice_bob", 1, 10)
	require.NoError(t, err)
	for _, m := range messages {
		if m.RecipientID == "bob" {
			require.True(t, m.Read)
			require.NotNil(t, m.ReadAt)
			require.True(t, readAt.Equal(*m.ReadAt), "read timestamp must not move")
		} else {
			require.False(t, m.Read)
			require.Nil(t, m.ReadAt)
		}
	}
}

func TestCountUnreadAccounting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		send(t, s, "alice", "bob", "ping", time.Time{})
	}
	send(t, s, "carol", "bob", "other thread", time.Time{})

	before, err := s.CountUnread(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 4, before)

	_, err = s.MarkConversationRead(ctx, conversation.Key("bob", "alice"), "bob", time.Now())
	require.NoError(t, err)

	after, err := s.CountUnread(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, before-3, after)
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetMessage(context.Background(), 99)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpsertUserUpdatesProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, &store.User{ID: "alice", FirstName: "Alice"}))
	require.NoError(t, s.UpsertUser(ctx, &store.User{ID: "alice", FirstName: "Alicia", Avatar: "a.png"}))

	user, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "Alicia", user.FirstName)
	require.Equal(t, "a.png", user.Avatar)
}

func TestClosedStoreReturnsStorageError(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.CountUnread(context.Background(), "bob")
	var se *store.StorageError
	require.True(t, errors.As(err, &se), "got %v", err)
}

func bodies(messages []*store.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Body)
	}
	return out
}
