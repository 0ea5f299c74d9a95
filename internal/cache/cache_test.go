package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/settleup/internal/models"
)

func TestMemoryPairIsOrderIndependent(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_, ok, err := c.GetPair(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	// Stored from bob's side: alice owes bob 12.50.
	require.NoError(t, c.PutPair(ctx, models.PairwiseBalance{
		UserA:       "bob",
		UserB:       "alice",
		Amount:      1250,
		Direction:   models.BOwesA,
		LastUpdated: time.Unix(1700000000, 0),
	}))

	fromAlice, ok, err := c.GetPair(ctx, "alice", "bob")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", fromAlice.UserA)
	assert.Equal(t, int64(-1250), int64(fromAlice.Amount))
	assert.Equal(t, models.AOwesB, fromAlice.Direction)

	fromBob, ok, err := c.GetPair(ctx, "bob", "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1250), int64(fromBob.Amount))
}

func TestMemoryGroupIsCopied(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	members := []models.MemberBalance{{UserID: "a", NetBalance: 100}, {UserID: "b", NetBalance: -100}}
	require.NoError(t, c.PutGroup(ctx, models.GroupBalance{GroupID: "g1", Members: members}))
	members[0].NetBalance = 999

	got, ok, err := c.GetGroup(ctx, "g1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(100), int64(got.Members[0].NetBalance))

	got.Members[1].NetBalance = 5
	again, _, _ := c.GetGroup(ctx, "g1")
	assert.Equal(t, int64(-100), int64(again.Members[1].NetBalance))
}

func TestPairKey(t *testing.T) {
	assert.Equal(t, PairKey("x", "y"), PairKey("y", "x"))
}
