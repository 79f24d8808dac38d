package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revahq/reva-widget/store"
	"github.com/revahq/reva-widget/store/db/memory"
)

// brokenDriver simulates disabled storage: every operation fails.
type brokenDriver struct{}

func (brokenDriver) Get(context.Context, string) (string, error) { return "", store.ErrUnavailable }
func (brokenDriver) Set(context.Context, string, string) error   { return store.ErrUnavailable }
func (brokenDriver) Delete(context.Context, string) error        { return store.ErrUnavailable }
func (brokenDriver) Close() error                                { return nil }

func TestSessionID_StableAcrossCalls(t *testing.T) {
	ctx := context.Background()
	s := store.New(memory.NewDB(), "store_1")

	first := s.SessionID(ctx)
	require.NotEmpty(t, first)
	assert.Equal(t, first, s.SessionID(ctx))
}

func TestSessionID_NewAfterClearAll(t *testing.T) {
	ctx := context.Background()
	s := store.New(memory.NewDB(), "store_1")

	first := s.SessionID(ctx)
	s.ClearAllSessionData(ctx)
	assert.NotEqual(t, first, s.SessionID(ctx))
}

func TestSessionID_EphemeralWhenStorageBroken(t *testing.T) {
	ctx := context.Background()
	s := store.New(brokenDriver{}, "store_1")

	// Never errors, and the one generated id stays stable for the process.
	first := s.SessionID(ctx)
	require.NotEmpty(t, first)
	assert.Equal(t, first, s.SessionID(ctx))
}

func TestConversationID_RoundTripAndClear(t *testing.T) {
	ctx := context.Background()
	s := store.New(memory.NewDB(), "store_1")

	assert.Empty(t, s.ConversationID(ctx))

	s.SetConversationID(ctx, "x")
	assert.Equal(t, "x", s.ConversationID(ctx))

	session := s.SessionID(ctx)
	s.ClearConversation(ctx)
	assert.Empty(t, s.ConversationID(ctx))
	assert.Equal(t, session, s.SessionID(ctx), "clearing the conversation must not touch the session id")
}

func TestConversationID_BrokenStorageYieldsEmpty(t *testing.T) {
	s := store.New(brokenDriver{}, "store_1")
	assert.Empty(t, s.ConversationID(context.Background()))
	// Writes are swallowed, not surfaced.
	s.SetConversationID(context.Background(), "x")
}

func TestRecoveryDismissal(t *testing.T) {
	ctx := context.Background()
	s := store.New(memory.NewDB(), "store_1")

	assert.True(t, s.RecoveryDismissedAt(ctx).IsZero())

	s.SetRecoveryDismissed(ctx)
	at := s.RecoveryDismissedAt(ctx)
	assert.WithinDuration(t, time.Now(), at, 5*time.Second)

	// Dismissal is scoped per store id.
	other := store.New(memory.NewDB(), "store_2")
	assert.True(t, other.RecoveryDismissedAt(ctx).IsZero())
}
