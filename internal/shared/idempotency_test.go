package shared_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pocketledger/pocketledger/internal/shared"
)

func TestIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := shared.NewIdempotencyStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "k1", "transactions"))
	require.ErrorIs(t, store.CheckAndInsert(ctx, "k1", "transactions"), shared.ErrIdempotencyConflict)
	require.NoError(t, store.CheckAndInsert(ctx, "k1", "accounts"))

	require.NoError(t, store.Delete(ctx, "k1", "transactions"))
	require.NoError(t, store.CheckAndInsert(ctx, "k1", "transactions"))

	mr.FastForward(2 * time.Minute)
	require.NoError(t, store.CheckAndInsert(ctx, "k1", "accounts"))

	require.Error(t, store.CheckAndInsert(ctx, "", "transactions"))
}
