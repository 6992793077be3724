package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-session-engine/internal/domain"
)

// QuestionLoader fetches question content from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, topic string, tier domain.Tier) ([]domain.Question, error)
}

// QuestionBank caches per-topic/tier question sets with TTL to avoid
// repeated loader hits.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

// FetchQuestions returns the first count questions for a topic and tier,
// or domain.ErrInsufficientContent when the bank holds fewer.
func (b *QuestionBank) FetchQuestions(ctx context.Context, topic string, tier domain.Tier, count int) ([]domain.Question, error) {
	questions, err := b.load(ctx, topic, tier)
	if err != nil {
		return nil, err
	}
	if len(questions) < count {
		return nil, domain.ErrInsufficientContent
	}
	return append([]domain.Question(nil), questions[:count]...), nil
}

func (b *QuestionBank) load(ctx context.Context, topic string, tier domain.Tier) ([]domain.Question, error) {
	key := topic + "|" + string(tier)
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[key]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.questions, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(key, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[key]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.questions, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadQuestions(ctx, topic, tier)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrBankUnavailable, err)
		}

		b.mu.Lock()
		b.cache[key] = cachedSet{
			questions: questions,
			expiresAt: now.Add(b.ttlWithJitter()),
		}
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves questions from a fixed slice (tests/demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, topic string, tier domain.Tier) ([]domain.Question, error) {
	matched := make([]domain.Question, 0, len(l.questions))
	for _, q := range l.questions {
		if q.Topic == topic && q.Difficulty == tier {
			matched = append(matched, q)
		}
	}
	return matched, nil
}
