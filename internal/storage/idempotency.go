package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrIdempotencyKeyBusy = errors.New("request with this idempotency key is in progress")

// IdempotencyStorage хранит ключи идемпотентности оформления заказа.
// Ключ проходит состояния: нет -> pending:<owner> -> done:<orderNumber>.
type IdempotencyStorage interface {
	// Acquire захватывает ключ. Если ключ уже завершён, возвращает номер заказа
	// и пустой owner. Если ключ захвачен другим запросом — ErrIdempotencyKeyBusy.
	Acquire(ctx context.Context, userID int64, key string) (owner string, orderNumber string, err error)
	// Complete запоминает номер заказа, если ключ всё ещё принадлежит owner.
	Complete(ctx context.Context, userID int64, key, owner, orderNumber string) error
	// Release освобождает ключ после неудачного оформления.
	Release(ctx context.Context, userID int64, key, owner string) error
}

const (
	pendingPrefix = "pending:"
	donePrefix    = "done:"
)

// замена значения только владельцем ключа
var completeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
end
return false`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type redisIdempotencyRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyRepository(client *redis.Client, ttl time.Duration) IdempotencyStorage {
	return &redisIdempotencyRepository{client: client, ttl: ttl}
}

func idempotencyKey(userID int64, key string) string {
	return fmt.Sprintf("bookstore:checkout:%d:%s", userID, key)
}

func (r *redisIdempotencyRepository) Acquire(ctx context.Context, userID int64, key string) (string, string, error) {
	k := idempotencyKey(userID, key)
	owner := uuid.NewString()

	// вторая попытка нужна, если ключ истёк между SETNX и GET
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := r.client.SetNX(ctx, k, pendingPrefix+owner, r.ttl).Result()
		if err != nil {
			return "", "", fmt.Errorf("failed to acquire idempotency key: %w", err)
		}
		if ok {
			return owner, "", nil
		}

		val, err := r.client.Get(ctx, k).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return "", "", fmt.Errorf("failed to read idempotency key: %w", err)
		}
		if number, found := strings.CutPrefix(val, donePrefix); found {
			return "", number, nil
		}
		return "", "", ErrIdempotencyKeyBusy
	}
	return "", "", ErrIdempotencyKeyBusy
}

func (r *redisIdempotencyRepository) Complete(ctx context.Context, userID int64, key, owner, orderNumber string) error {
	k := idempotencyKey(userID, key)
	err := completeScript.Run(ctx, r.client, []string{k}, pendingPrefix+owner, donePrefix+orderNumber, r.ttl.Milliseconds()).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}
	return nil
}

func (r *redisIdempotencyRepository) Release(ctx context.Context, userID int64, key, owner string) error {
	k := idempotencyKey(userID, key)
	if err := releaseScript.Run(ctx, r.client, []string{k}, pendingPrefix+owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
