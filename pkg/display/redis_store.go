package display

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tinyland-inc/gamelink/pkg/remote"
)

// RedisStore keeps one hash per worker, keyed by channel id, so a restarted
// bridge keeps editing the messages it posted before.
type RedisStore struct {
	client   goredis.UniversalClient
	instance string
}

func NewRedisStore(client goredis.UniversalClient, instance string) *RedisStore {
	if instance == "" {
		instance = "default"
	}
	return &RedisStore{client: client, instance: instance}
}

func (s *RedisStore) keyWorker(worker string) string {
	return fmt.Sprintf("gamelink:%s:display:%s", s.instance, worker)
}

func (s *RedisStore) Get(ctx context.Context, worker, channelID string) (remote.MessageRef, bool, error) {
	raw, err := s.client.HGet(ctx, s.keyWorker(worker), channelID).Result()
	if errors.Is(err, goredis.Nil) {
		return remote.MessageRef{}, false, nil
	}
	if err != nil {
		return remote.MessageRef{}, false, fmt.Errorf("redis hget: %w", err)
	}
	var ref remote.MessageRef
	if err := json.Unmarshal([]byte(raw), &ref); err != nil {
		return remote.MessageRef{}, false, fmt.Errorf("decode tracked message: %w", err)
	}
	return ref, !ref.IsZero(), nil
}

func (s *RedisStore) Put(ctx context.Context, worker, channelID string, ref remote.MessageRef) error {
	payload, err := json.Marshal(ref)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.keyWorker(worker), channelID, payload).Err()
}

func (s *RedisStore) Delete(ctx context.Context, worker, channelID string) error {
	return s.client.HDel(ctx, s.keyWorker(worker), channelID).Err()
}

func (s *RedisStore) DeleteWorker(ctx context.Context, worker string) error {
	return s.client.Del(ctx, s.keyWorker(worker)).Err()
}
