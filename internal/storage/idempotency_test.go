package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linemk/bookstore-checkout/internal/storage"
)

func newIdempotencyRepo(t *testing.T) (storage.IdempotencyStorage, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return storage.NewIdempotencyRepository(client, time.Hour), srv
}

func TestIdempotency_AcquireCompleteReplay(t *testing.T) {
	repo, _ := newIdempotencyRepo(t)
	ctx := context.Background()

	owner, number, err := repo.Acquire(ctx, 7, "key-1")
	require.NoError(t, err)
	assert.NotEmpty(t, owner)
	assert.Empty(t, number)

	// пока первый запрос не завершён, второй получает отказ
	_, _, err = repo.Acquire(ctx, 7, "key-1")
	assert.ErrorIs(t, err, storage.ErrIdempotencyKeyBusy)

	// ключи разных пользователей независимы
	otherOwner, _, err := repo.Acquire(ctx, 8, "key-1")
	require.NoError(t, err)
	assert.NotEqual(t, owner, otherOwner)

	require.NoError(t, repo.Complete(ctx, 7, "key-1", owner, "ORD-20240301-X"))

	replayOwner, number, err := repo.Acquire(ctx, 7, "key-1")
	require.NoError(t, err)
	assert.Empty(t, replayOwner)
	assert.Equal(t, "ORD-20240301-X", number)
}

func TestIdempotency_Release(t *testing.T) {
	repo, _ := newIdempotencyRepo(t)
	ctx := context.Background()

	owner, _, err := repo.Acquire(ctx, 7, "key-2")
	require.NoError(t, err)

	// чужой owner не может отпустить ключ
	require.NoError(t, repo.Release(ctx, 7, "key-2", "someone-else"))
	_, _, err = repo.Acquire(ctx, 7, "key-2")
	assert.ErrorIs(t, err, storage.ErrIdempotencyKeyBusy)

	require.NoError(t, repo.Release(ctx, 7, "key-2", owner))
	newOwner, number, err := repo.Acquire(ctx, 7, "key-2")
	require.NoError(t, err)
	assert.NotEmpty(t, newOwner)
	assert.Empty(t, number)
}

func TestIdempotency_CompleteAfterExpiry(t *testing.T) {
	repo, srv := newIdempotencyRepo(t)
	ctx := context.Background()

	owner, _, err := repo.Acquire(ctx, 7, "key-3")
	require.NoError(t, err)

	srv.FastForward(2 * time.Hour)

	// ключ истёк, Complete ничего не записывает
	require.NoError(t, repo.Complete(ctx, 7, "key-3", owner, "ORD-1"))
	_, number, err := repo.Acquire(ctx, 7, "key-3")
	require.NoError(t, err)
	assert.Empty(t, number)
}
