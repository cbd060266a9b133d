package session

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "eventhive:session:"

// deleteIfScript deletes KEYS[1] when it equals ARGV[1] and returns the count removed.
var deleteIfScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisBackend stores tokens in Redis, for clients that share a profile across
// machines. Keys carry no TTL; the server decides when a token expires.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) key(key string) string {
	return redisKeyPrefix + key
}

func (r *RedisBackend) Put(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisBackend) DeleteIf(ctx context.Context, key, value string) (bool, error) {
	n, err := deleteIfScript.Run(ctx, r.client, []string{r.key(key)}, value).Int()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
