package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/railzwaylabs/agencyops/internal/cascade/domain"
	"github.com/redis/go-redis/v9"
)

const (
	planKeyPrefix  = "cascade:plan:"
	stepsKeyPrefix = "cascade:steps:"
)

// RedisStore keeps plans as JSON strings and completed steps as a set per
// plan. Both expire with the plan TTL.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) domain.Store {
	return &RedisStore{client: client}
}

func planKey(planID string) string  { return planKeyPrefix + planID }
func stepsKey(planID string) string { return stepsKeyPrefix + planID }

func (s *RedisStore) SavePlan(ctx context.Context, plan *domain.Plan, ttl time.Duration) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, planKey(plan.ID), data, ttl).Err()
}

func (s *RedisStore) LoadPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	data, err := s.client.Get(ctx, planKey(planID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var plan domain.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *RedisStore) MarkStep(ctx context.Context, planID, step string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, stepsKey(planID), step)
		pipe.Expire(ctx, stepsKey(planID), ttl)
		return nil
	})
	return err
}

func (s *RedisStore) StepDone(ctx context.Context, planID, step string) (bool, error) {
	return s.client.SIsMember(ctx, stepsKey(planID), step).Result()
}

func (s *RedisStore) Forget(ctx context.Context, planID string) error {
	return s.client.Del(ctx, planKey(planID), stepsKey(planID)).Err()
}
