package ticket

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewStore("redis://" + s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, s
}

func TestIssueAndRedeem(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, "user-123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := store.Redeem(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestRedeemIsOneTime(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, "user-123")
	require.NoError(t, err)

	_, err = store.Redeem(ctx, token)
	require.NoError(t, err)

	// The first redeem consumed the ticket.
	_, err = store.Redeem(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestRedeemUnknownTicket(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.Redeem(context.Background(), "made-up")
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestTicketExpires(t *testing.T) {
	store, s := setupTestStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, "user-123")
	require.NoError(t, err)

	s.FastForward(defaultTTL + time.Second)

	_, err = store.Redeem(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestPing(t *testing.T) {
	store, _ := setupTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
