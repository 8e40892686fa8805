package push

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix  = "push:subs:"
	MaxSubsPerUser  = 10
	SubscriptionTTL = 30 * 24 * time.Hour
)

// SubscriptionStore хранит подписки пользователя (не больше MaxSubsPerUser, последние).
type SubscriptionStore interface {
	Add(ctx context.Context, userID int64, sub Subscription) error
	Remove(ctx context.Context, userID int64, endpoint string) error
	List(ctx context.Context, userID int64) ([]Subscription, error)
}

// RedisSubscriptions — подписки в списке Redis push:subs:{user_id}.
type RedisSubscriptions struct {
	rdb *redis.Client
}

func NewRedisSubscriptions(rdb *redis.Client) *RedisSubscriptions {
	return &RedisSubscriptions{rdb: rdb}
}

func subsKey(userID int64) string {
	return redisKeyPrefix + strconv.FormatInt(userID, 10)
}

func (s *RedisSubscriptions) Add(ctx context.Context, userID int64, sub Subscription) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	key := subsKey(userID)
	// повторная подписка того же endpoint не плодит дубликаты
	if err := s.Remove(ctx, userID, sub.Endpoint); err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, string(raw))
	pipe.LTrim(ctx, key, -MaxSubsPerUser, -1)
	pipe.Expire(ctx, key, SubscriptionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push subscriptions add: %w", err)
	}
	return nil
}

func (s *RedisSubscriptions) Remove(ctx context.Context, userID int64, endpoint string) error {
	key := subsKey(userID)
	list, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("push subscriptions remove: %w", err)
	}
	for _, item := range list {
		var sub Subscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint == endpoint {
			if err := s.rdb.LRem(ctx, key, 0, item).Err(); err != nil {
				return fmt.Errorf("push subscriptions remove: %w", err)
			}
		}
	}
	return nil
}

func (s *RedisSubscriptions) List(ctx context.Context, userID int64) ([]Subscription, error) {
	list, err := s.rdb.LRange(ctx, subsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("push subscriptions list: %w", err)
	}
	return decodeSubscriptions(list), nil
}

func decodeSubscriptions(list []string) []Subscription {
	subs := make([]Subscription, 0, len(list))
	for _, item := range list {
		var sub Subscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint != "" {
			subs = append(subs, sub)
		}
	}
	return subs
}
