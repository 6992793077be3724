package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-session-engine/internal/domain"
)

// ProfileStore persists per-learner difficulty profiles in Redis so the
// rolling window survives process restarts.
// Keys: SET learner:{learnerID}:profile {json DifficultyProfile}
type ProfileStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProfileStore(client *redis.Client, ttl time.Duration) *ProfileStore {
	return &ProfileStore{client: client, ttl: ttl}
}

func (s *ProfileStore) Get(ctx context.Context, learnerID string) (domain.DifficultyProfile, bool, error) {
	data, err := s.client.Get(ctx, s.key(learnerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.DifficultyProfile{}, false, nil
	}
	if err != nil {
		return domain.DifficultyProfile{}, false, fmt.Errorf("load profile: %w", err)
	}
	var profile domain.DifficultyProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return domain.DifficultyProfile{}, false, fmt.Errorf("unmarshal profile: %w", err)
	}
	return profile, true, nil
}

func (s *ProfileStore) Put(ctx context.Context, profile domain.DifficultyProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := s.client.Set(ctx, s.key(profile.LearnerID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *ProfileStore) key(learnerID string) string {
	return "learner:" + learnerID + ":profile"
}
