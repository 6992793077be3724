package engine_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/engine"
	"quiz-session-engine/internal/infra/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func bankQuestions() []domain.Question {
	var qs []domain.Question
	for i := 1; i <= 5; i++ {
		qs = append(qs, domain.Question{
			ID:           fmt.Sprintf("med-%d", i),
			Prompt:       fmt.Sprintf("medium question %d", i),
			Options:      []string{"a", "b", "c"},
			Correct:      "b",
			Explanation:  "b is right",
			TimeLimitSec: 30,
			Topic:        "math",
			Difficulty:   domain.TierMedium,
		})
	}
	for i := 1; i <= 5; i++ {
		qs = append(qs, domain.Question{
			ID:           fmt.Sprintf("hard-%d", i),
			Prompt:       fmt.Sprintf("hard question %d", i),
			Options:      []string{"a", "b", "c"},
			Correct:      "c",
			TimeLimitSec: 45,
			Topic:        "math",
			Difficulty:   domain.TierHard,
		})
	}
	for i := 1; i <= 4; i++ {
		qs = append(qs, domain.Question{
			ID:           fmt.Sprintf("hist-%d", i),
			Prompt:       fmt.Sprintf("history question %d", i),
			Options:      []string{"a", "b"},
			Correct:      "a",
			TimeLimitSec: 20,
			Topic:        "history",
			Difficulty:   domain.TierEasy,
		})
	}
	return qs
}

func newTestService(clock *fakeClock) *engine.Service {
	bank := memory.NewQuestionBank(memory.NewStaticQuestionLoader(bankQuestions()), 5*time.Minute)
	return engine.NewService(memory.NewSessionStore(), bank, memory.NewProfileStore(), engine.Options{
		Clock: clock.Now,
	})
}

func mediumConfig(count int) domain.SessionConfig {
	return domain.SessionConfig{
		Topic:         "math",
		Difficulty:    domain.TierMedium,
		QuestionCount: count,
		TimeLimitSec:  30,
	}
}

func strptr(s string) *string { return &s }

func TestCreateSessionValidation(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newFakeClock())

	if _, err := service.CreateSession(ctx, "", mediumConfig(3)); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected invalid config for empty learner, got %v", err)
	}
	if _, err := service.CreateSession(ctx, "l1", mediumConfig(0)); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected invalid config for zero count, got %v", err)
	}

	cfg := mediumConfig(3)
	cfg.TimeLimitSec = -1
	if _, err := service.CreateSession(ctx, "l1", cfg); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected invalid config for negative limit, got %v", err)
	}

	cfg = mediumConfig(3)
	cfg.Difficulty = domain.Tier("brutal")
	if _, err := service.CreateSession(ctx, "l1", cfg); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected invalid config for unknown tier, got %v", err)
	}
}

func TestCreateSessionInsufficientContent(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newFakeClock())

	cfg := domain.SessionConfig{Topic: "history", Difficulty: domain.TierEasy, QuestionCount: 10, TimeLimitSec: 20}
	_, err := service.CreateSession(ctx, "l1", cfg)
	if !errors.Is(err, domain.ErrInsufficientContent) {
		t.Fatalf("expected insufficient content, got %v", err)
	}
}

func TestCreateSessionBankFailure(t *testing.T) {
	ctx := context.Background()
	bank := memory.NewQuestionBank(failingLoader{}, time.Minute)
	service := engine.NewService(memory.NewSessionStore(), bank, memory.NewProfileStore(), engine.Options{})

	_, err := service.CreateSession(ctx, "l1", mediumConfig(3))
	if !errors.Is(err, domain.ErrBankUnavailable) {
		t.Fatalf("expected bank unavailable, got %v", err)
	}
}

type failingLoader struct{}

func (failingLoader) LoadQuestions(context.Context, string, domain.Tier) ([]domain.Question, error) {
	return nil, errors.New("connection refused")
}

func TestUnknownSession(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newFakeClock())

	if _, err := service.GetSessionView(ctx, "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, "nope", 0, strptr("a")); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.ForceTimeout(ctx, "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHappyPathThreeQuestions(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service := newTestService(clock)

	view, err := service.CreateSession(ctx, "l1", mediumConfig(3))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.QuestionCount != 3 || view.CurrentIndex != 0 || view.State != domain.SessionActive {
		t.Fatalf("unexpected initial view: %+v", view)
	}
	if view.Question == nil || view.Question.TimeLimitSec != 30 {
		t.Fatalf("expected a live 30s question, got %+v", view.Question)
	}
	wantDeadline := clock.Now().Add(30 * time.Second)
	if !view.Question.Deadline.Equal(wantDeadline) {
		t.Fatalf("expected deadline %v, got %v", wantDeadline, view.Question.Deadline)
	}

	var deltas []float64
	for i, wait := range []time.Duration{5 * time.Second, 10 * time.Second, 29 * time.Second} {
		clock.Advance(wait)
		result, err := service.SubmitAnswer(ctx, view.SessionID, i, strptr("b"))
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if !result.Correct {
			t.Fatalf("expected correct at index %d", i)
		}
		if result.ElapsedSec != wait.Seconds() {
			t.Fatalf("expected elapsed %v, got %f", wait, result.ElapsedSec)
		}
		if result.CorrectOption != "b" || result.Explanation == "" {
			t.Fatalf("expected revealed answer, got %+v", result)
		}
		deltas = append(deltas, result.ScoreDelta)

		if i < 2 {
			if result.Next == nil || result.Next.Index != i+1 {
				t.Fatalf("expected next question at %d, got %+v", i+1, result.Next)
			}
		} else {
			if result.Summary == nil {
				t.Fatalf("expected completion summary")
			}
			if result.Summary.Accuracy != 1.0 {
				t.Fatalf("expected 100%% accuracy, got %f", result.Summary.Accuracy)
			}
			if result.Summary.TopicAccuracy["math"] != 1.0 {
				t.Fatalf("expected math accuracy 1.0, got %+v", result.Summary.TopicAccuracy)
			}
			if !result.Summary.Recommended.Valid() {
				t.Fatalf("expected a recommendation, got %q", result.Summary.Recommended)
			}
		}
	}
	if deltas[1] > deltas[0] || deltas[2] >= deltas[1] {
		t.Fatalf("expected slower answers to score no more: %v", deltas)
	}

	final, err := service.GetSessionView(ctx, view.SessionID)
	if err != nil {
		t.Fatalf("final view: %v", err)
	}
	if final.State != domain.SessionCompleted || final.CurrentIndex != 3 {
		t.Fatalf("expected completed at index 3, got %+v", final)
	}
	if final.Question != nil || final.Summary == nil {
		t.Fatalf("completed view must carry the summary only, got %+v", final)
	}
}

func TestSubmitStaleIndex(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service := newTestService(clock)

	view, err := service.CreateSession(ctx, "l1", mediumConfig(2))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := service.SubmitAnswer(ctx, view.SessionID, 1, strptr("b")); !errors.Is(err, domain.ErrStaleQuestion) {
		t.Fatalf("expected stale for future index, got %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, view.SessionID, 0, strptr("b")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Re-answering a passed index must conflict, never double-score.
	if _, err := service.SubmitAnswer(ctx, view.SessionID, 0, strptr("b")); !errors.Is(err, domain.ErrStaleQuestion) {
		t.Fatalf("expected stale for passed index, got %v", err)
	}
}

func TestSubmitAfterCompletion(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service := newTestService(clock)

	view, _ := service.CreateSession(ctx, "l1", mediumConfig(1))
	if _, err := service.SubmitAnswer(ctx, view.SessionID, 0, strptr("b")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, view.SessionID, 1, strptr("b")); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected completed error, got %v", err)
	}
	if _, err := service.ForceTimeout(ctx, view.SessionID); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected completed error from timeout, got %v", err)
	}
}

func TestLateSubmissionGradesAsTimeout(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service := newTestService(clock)

	cfg := mediumConfig(2)
	cfg.TimeLimitSec = 5
	view, _ := service.CreateSession(ctx, "l1", cfg)

	clock.Advance(6 * time.Second)
	result, err := service.SubmitAnswer(ctx, view.SessionID, 0, strptr("b"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Correct || !result.TimedOut {
		t.Fatalf("late submission must grade as timeout, got %+v", result)
	}
	if result.ElapsedSec != 5 {
		t.Fatalf("expected elapsed clamped to the limit, got %f", result.ElapsedSec)
	}
	if result.ScoreDelta != 0 {
		t.Fatalf("expected zero score, got %f", result.ScoreDelta)
	}
}

func TestViewAppliesExpiredDeadline(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service := newTestService(clock)

	cfg := mediumConfig(1)
	cfg.TimeLimitSec = 5
	view, _ := service.CreateSession(ctx, "l1", cfg)

	clock.Advance(6 * time.Second)
	after, err := service.GetSessionView(ctx, view.SessionID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if after.State != domain.SessionCompleted {
		t.Fatalf("expected completed after expiry, got %+v", after)
	}
	if after.Summary == nil || after.Summary.Accuracy != 0 {
		t.Fatalf("expected the timed-out question recorded as incorrect, got %+v", after.Summary)
	}
}

func TestForceTimeoutIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service := newTestService(clock)

	view, _ := service.CreateSession(ctx, "l1", mediumConfig(2))

	// Nothing expired yet: a no-op.
	if result, err := service.ForceTimeout(ctx, view.SessionID); err != nil || result != nil {
		t.Fatalf("expected no-op, got result=%+v err=%v", result, err)
	}

	clock.Advance(31 * time.Second)
	result, err := service.ForceTimeout(ctx, view.SessionID)
	if err != nil {
		t.Fatalf("timeout: %v", err)
	}
	if result == nil || result.Correct || !result.TimedOut {
		t.Fatalf("expected a timeout record, got %+v", result)
	}

	// The next question was just armed; calling again changes nothing.
	if result, err := service.ForceTimeout(ctx, view.SessionID); err != nil || result != nil {
		t.Fatalf("expected idempotent no-op, got result=%+v err=%v", result, err)
	}

	after, _ := service.GetSessionView(ctx, view.SessionID)
	if after.CurrentIndex != 1 {
		t.Fatalf("expected index advanced by exactly one, got %d", after.CurrentIndex)
	}
}

func TestViewIsIdempotentAndMonotonic(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service := newTestService(clock)

	view, _ := service.CreateSession(ctx, "l1", mediumConfig(3))

	first, err := service.GetSessionView(ctx, view.SessionID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	second, err := service.GetSessionView(ctx, view.SessionID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("back-to-back views differ:\n%+v\n%+v", first, second)
	}

	last := first.CurrentIndex
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		if _, err := service.SubmitAnswer(ctx, view.SessionID, i, strptr("a")); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		current, _ := service.GetSessionView(ctx, view.SessionID)
		if current.CurrentIndex < last {
			t.Fatalf("index went backwards: %d -> %d", last, current.CurrentIndex)
		}
		last = current.CurrentIndex
	}
}

func TestConcurrentSubmitSingleWinner(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service := newTestService(clock)

	view, _ := service.CreateSession(ctx, "l1", mediumConfig(2))
	clock.Advance(2 * time.Second)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, results[slot] = service.SubmitAnswer(ctx, view.SessionID, 0, strptr("b"))
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrStaleQuestion):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one winner and one conflict, got wins=%d conflicts=%d", wins, conflicts)
	}

	after, _ := service.GetSessionView(ctx, view.SessionID)
	if after.CurrentIndex != 1 {
		t.Fatalf("expected index advanced exactly once, got %d", after.CurrentIndex)
	}
}

func TestEmptyDifficultyUsesRecommendation(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service := newTestService(clock)

	// A new learner with no history defaults to medium.
	if tier := service.RecommendedTier(ctx, "fresh"); tier != domain.TierMedium {
		t.Fatalf("expected medium default, got %s", tier)
	}

	// Five fast, correct medium answers push the recommendation to hard.
	view, err := service.CreateSession(ctx, "l1", mediumConfig(5))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 5; i++ {
		clock.Advance(2 * time.Second)
		if _, err := service.SubmitAnswer(ctx, view.SessionID, i, strptr("b")); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if tier := service.RecommendedTier(ctx, "l1"); tier != domain.TierHard {
		t.Fatalf("expected hard recommendation, got %s", tier)
	}

	// An empty difficulty picks the recommendation up.
	next, err := service.CreateSession(ctx, "l1", domain.SessionConfig{
		Topic:         "math",
		QuestionCount: 2,
		TimeLimitSec:  45,
	})
	if err != nil {
		t.Fatalf("create follow-up: %v", err)
	}
	if next.Question == nil || next.Question.ID != "hard-1" {
		t.Fatalf("expected a hard question, got %+v", next.Question)
	}
}

func TestTimeoutFeedsDifficultyWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service := newTestService(clock)

	cfg := mediumConfig(5)
	cfg.TimeLimitSec = 5
	view, _ := service.CreateSession(ctx, "l2", cfg)

	for i := 0; i < 5; i++ {
		clock.Advance(6 * time.Second)
		if _, err := service.GetSessionView(ctx, view.SessionID); err != nil {
			t.Fatalf("view %d: %v", i, err)
		}
	}

	after, _ := service.GetSessionView(ctx, view.SessionID)
	if after.State != domain.SessionCompleted {
		t.Fatalf("expected completion through lazy timeouts, got %+v", after)
	}
	// Five misses in the window de-escalate the learner.
	if tier := service.RecommendedTier(ctx, "l2"); tier != domain.TierEasy {
		t.Fatalf("expected easy recommendation after timeouts, got %s", tier)
	}
}
