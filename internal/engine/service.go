package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quiz-session-engine/internal/domain"
)

// SessionRepository abstracts how live sessions are stored (in-memory,
// Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
}

// QuestionBank supplies distinct questions for a topic and tier. It must
// return domain.ErrInsufficientContent when fewer than count are available.
type QuestionBank interface {
	FetchQuestions(ctx context.Context, topic string, tier domain.Tier, count int) ([]domain.Question, error)
}

// ProfileRepository stores per-learner difficulty profiles across sessions.
type ProfileRepository interface {
	Get(ctx context.Context, learnerID string) (domain.DifficultyProfile, bool, error)
	Put(ctx context.Context, profile domain.DifficultyProfile) error
}

// Options carries the engine tunables and test hooks.
type Options struct {
	Scoring  ScoringConfig
	Adaptive AdaptiveConfig
	// Clock overrides time.Now for deterministic deadline tests.
	Clock  func() time.Time
	Logger *zerolog.Logger
}

// Service is the session controller: the sole entry point to the session
// state machine and the only component that mutates a Session.
type Service struct {
	sessions SessionRepository
	bank     QuestionBank
	profiles ProfileRepository
	scoring  ScoringConfig
	adaptive AdaptiveConfig
	now      func() time.Time
	log      zerolog.Logger

	learnerMu    sync.Mutex
	learnerLocks map[string]*sync.Mutex
}

func NewService(sessions SessionRepository, bank QuestionBank, profiles ProfileRepository, opts Options) *Service {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Service{
		sessions:     sessions,
		bank:         bank,
		profiles:     profiles,
		scoring:      opts.Scoring.normalized(),
		adaptive:     opts.Adaptive.normalized(),
		now:          now,
		log:          log,
		learnerLocks: make(map[string]*sync.Mutex),
	}
}

// CreateSession validates the config, resolves the difficulty tier, fetches
// the question sequence, and arms the first deadline. Creation is
// all-or-nothing: a bank failure leaves no session behind.
func (s *Service) CreateSession(ctx context.Context, learnerID string, cfg domain.SessionConfig) (domain.SessionView, error) {
	if learnerID == "" {
		return domain.SessionView{}, fmt.Errorf("%w: learner id is required", domain.ErrInvalidConfig)
	}
	if cfg.QuestionCount < 1 {
		return domain.SessionView{}, fmt.Errorf("%w: question count must be at least 1", domain.ErrInvalidConfig)
	}
	if cfg.TimeLimitSec < 0 {
		return domain.SessionView{}, fmt.Errorf("%w: time limit must be positive", domain.ErrInvalidConfig)
	}
	if cfg.Difficulty != "" && !cfg.Difficulty.Valid() {
		return domain.SessionView{}, fmt.Errorf("%w: unknown difficulty %q", domain.ErrInvalidConfig, cfg.Difficulty)
	}

	if cfg.Difficulty == "" {
		cfg.Difficulty = s.resolveTier(ctx, learnerID)
	}

	questions, err := s.bank.FetchQuestions(ctx, cfg.Topic, cfg.Difficulty, cfg.QuestionCount)
	if err != nil {
		return domain.SessionView{}, err
	}
	if len(questions) < cfg.QuestionCount {
		return domain.SessionView{}, domain.ErrInsufficientContent
	}
	questions = questions[:cfg.QuestionCount]
	if cfg.TimeLimitSec == 0 {
		for _, q := range questions {
			if q.TimeLimitSec <= 0 {
				return domain.SessionView{}, fmt.Errorf("%w: question %s has no time limit and none was configured", domain.ErrInvalidConfig, q.ID)
			}
		}
	}

	sess := newSession(uuid.NewString(), learnerID, cfg, questions, s.scoring, s.now())
	s.sessions.Put(sess)
	s.log.Info().
		Str("session", sess.id).
		Str("learner", learnerID).
		Str("topic", cfg.Topic).
		Str("difficulty", string(cfg.Difficulty)).
		Int("questions", cfg.QuestionCount).
		Msg("session created")
	return sess.snapshot(), nil
}

// resolveTier picks the default difficulty for a learner who expressed no
// preference: the standing recommendation when a profile exists, Medium
// otherwise. Profile store failures fall back to Medium rather than
// blocking creation.
func (s *Service) resolveTier(ctx context.Context, learnerID string) domain.Tier {
	profile, ok, err := s.profiles.Get(ctx, learnerID)
	if err != nil {
		s.log.Warn().Err(err).Str("learner", learnerID).Msg("profile lookup failed, defaulting to medium")
		return domain.TierMedium
	}
	if ok && profile.Recommended.Valid() {
		return profile.Recommended
	}
	return domain.TierMedium
}

// SubmitAnswer grades the current question. A nil option represents an
// absent submission and is always incorrect.
func (s *Service) SubmitAnswer(ctx context.Context, sessionID string, questionIndex int, option *string) (*domain.AnswerResult, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	submitted := ""
	present := option != nil
	if present {
		submitted = *option
	}
	result, err := sess.submit(s.now(), questionIndex, submitted, present, s.recorder(ctx, sess))
	if err != nil {
		return nil, err
	}
	s.log.Debug().
		Str("session", sessionID).
		Int("index", questionIndex).
		Bool("correct", result.Correct).
		Bool("timedOut", result.TimedOut).
		Float64("scoreDelta", result.ScoreDelta).
		Msg("answer recorded")
	return result, nil
}

// ForceTimeout applies timeout semantics to the current question when its
// deadline has passed. Idempotent: a nil result means nothing was due.
// The engine does not depend on anyone calling this; every read applies
// the same check lazily.
func (s *Service) ForceTimeout(ctx context.Context, sessionID string) (*domain.AnswerResult, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if sess.completed() {
		return nil, domain.ErrSessionCompleted
	}
	return sess.reapExpired(s.now(), s.recorder(ctx, sess)), nil
}

// GetSessionView returns current progress. An expired, unprocessed deadline
// is resolved first so an expired question is never shown as live.
func (s *Service) GetSessionView(ctx context.Context, sessionID string) (domain.SessionView, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	sess.reapExpired(s.now(), s.recorder(ctx, sess))
	return sess.snapshot(), nil
}

// RecommendedTier exposes a learner's standing recommendation (Medium when
// no profile exists yet).
func (s *Service) RecommendedTier(ctx context.Context, learnerID string) domain.Tier {
	return s.resolveTier(ctx, learnerID)
}

func (s *Service) recorder(ctx context.Context, sess *Session) recommendFunc {
	return func(correct bool, speed float64) domain.Tier {
		return s.recordAnswer(ctx, sess.learnerID, sess.cfg.Difficulty, correct, speed)
	}
}

// recordAnswer folds one graded answer into the learner's rolling window
// under a per-learner lock, so two concurrent sessions of the same learner
// cannot lose samples. Store failures are logged, not surfaced: grading
// already happened and must not be rolled back.
func (s *Service) recordAnswer(ctx context.Context, learnerID string, tier domain.Tier, correct bool, speed float64) domain.Tier {
	unlock := s.lockLearner(learnerID)
	defer unlock()

	profile, ok, err := s.profiles.Get(ctx, learnerID)
	if err != nil {
		s.log.Warn().Err(err).Str("learner", learnerID).Msg("profile load failed")
	}
	if !ok {
		profile = domain.DifficultyProfile{LearnerID: learnerID}
	}
	if tier.Valid() {
		profile.Tier = tier
	}
	recordSample(&profile, s.adaptive, domain.AnswerSample{Correct: correct, Speed: speed}, s.now())
	if err := s.profiles.Put(ctx, profile); err != nil {
		s.log.Warn().Err(err).Str("learner", learnerID).Msg("profile save failed")
	}
	return profile.Recommended
}

func (s *Service) lockLearner(learnerID string) func() {
	s.learnerMu.Lock()
	mu, ok := s.learnerLocks[learnerID]
	if !ok {
		mu = &sync.Mutex{}
		s.learnerLocks[learnerID] = mu
	}
	s.learnerMu.Unlock()
	mu.Lock()
	return mu.Unlock
}
