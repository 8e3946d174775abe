package session

import (
	"encoding/json"
	"time"

	"github.com/go-redis/redis"
)

const redisKeyPrefix = "google-auth:session:"

// RedisStorage keeps sessions in Redis with a server-side TTL, so sessions
// survive restarts and are shared between replicas.
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(address string, password string) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       0, // use default DB
	})

	if err := client.Ping().Err(); err != nil {
		return nil, err
	}

	return &RedisStorage{client: client}, nil
}

func (r *RedisStorage) Put(s *Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		// Already expired; storing it would be a Get followed by a miss.
		return nil
	}

	return r.client.Set(redisKeyPrefix+s.ID, string(payload), ttl).Err()
}

func (r *RedisStorage) Get(id string) (*Session, error) {
	payload, err := r.client.Get(redisKeyPrefix + id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s := &Session{}
	if err := json.Unmarshal([]byte(payload), s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *RedisStorage) Delete(id string) error {
	return r.client.Del(redisKeyPrefix + id).Err()
}

// Sweep is a no-op; Redis evicts expired keys itself.
func (r *RedisStorage) Sweep(time.Time) error {
	return nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
