package memory

import (
	"context"
	"sync"

	"quiz-session-engine/internal/domain"
)

// ProfileStore is an in-memory implementation of engine.ProfileRepository.
// Profiles are lost on restart; pair with the Redis store when the window
// must survive the process.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.DifficultyProfile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]domain.DifficultyProfile),
	}
}

func (s *ProfileStore) Get(_ context.Context, learnerID string) (domain.DifficultyProfile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[learnerID]
	if !ok {
		return domain.DifficultyProfile{}, false, nil
	}
	profile.Window = append([]domain.AnswerSample(nil), profile.Window...)
	return profile, true, nil
}

func (s *ProfileStore) Put(_ context.Context, profile domain.DifficultyProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile.Window = append([]domain.AnswerSample(nil), profile.Window...)
	s.profiles[profile.LearnerID] = profile
	return nil
}
