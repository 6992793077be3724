package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/infra/memory"
)

// QuestionBank caches per-topic/tier question sets in Redis as JSON blobs
// and falls back to a loader on cache miss.
// Keys: SET bank:{topic}:{tier} {json []Question}
type QuestionBank struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
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
	key := b.key(topic, tier)

	if questions, ok := b.fromCache(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := b.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := b.fromCache(ctx, key); ok {
			return questions, nil
		}

		questions, err := b.loader.LoadQuestions(ctx, topic, tier)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrBankUnavailable, err)
		}

		if data, err := json.Marshal(questions); err == nil {
			_ = b.client.Set(ctx, key, data, b.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) fromCache(ctx context.Context, key string) ([]domain.Question, bool) {
	data, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

func (b *QuestionBank) key(topic string, tier domain.Tier) string {
	return "bank:" + topic + ":" + string(tier)
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
