package engine

import (
	"testing"
	"time"

	"quiz-session-engine/internal/domain"
)

func samples(n int, correct bool, speed float64) []domain.AnswerSample {
	out := make([]domain.AnswerSample, n)
	for i := range out {
		out[i] = domain.AnswerSample{Correct: correct, Speed: speed}
	}
	return out
}

func TestRecommendEscalatesOneTier(t *testing.T) {
	cfg := DefaultAdaptiveConfig()
	window := samples(20, true, 0.4)

	if got := recommendTier(domain.TierMedium, window, cfg); got != domain.TierHard {
		t.Fatalf("expected hard, got %s", got)
	}
	// One step only, even from the bottom tier.
	if got := recommendTier(domain.TierEasy, window, cfg); got != domain.TierMedium {
		t.Fatalf("expected medium, got %s", got)
	}
	// Clamped at the top.
	if got := recommendTier(domain.TierHard, window, cfg); got != domain.TierHard {
		t.Fatalf("expected hard to hold at the bound, got %s", got)
	}
}

func TestRecommendRequiresSpeedForEscalation(t *testing.T) {
	cfg := DefaultAdaptiveConfig()
	// Perfect accuracy but slow answers: hold.
	window := samples(20, true, 0.9)
	if got := recommendTier(domain.TierMedium, window, cfg); got != domain.TierMedium {
		t.Fatalf("expected hold for slow answers, got %s", got)
	}
}

func TestRecommendDeescalatesOnLowAccuracy(t *testing.T) {
	cfg := DefaultAdaptiveConfig()
	window := append(samples(10, true, 0.5), samples(10, false, 0.9)...)

	if got := recommendTier(domain.TierMedium, window, cfg); got != domain.TierEasy {
		t.Fatalf("expected easy, got %s", got)
	}
	if got := recommendTier(domain.TierEasy, window, cfg); got != domain.TierEasy {
		t.Fatalf("expected easy to hold at the bound, got %s", got)
	}
}

func TestRecommendHoldsInTheMiddle(t *testing.T) {
	cfg := DefaultAdaptiveConfig()
	// 70% accuracy: neither threshold fires.
	window := append(samples(14, true, 0.4), samples(6, false, 0.4)...)
	if got := recommendTier(domain.TierMedium, window, cfg); got != domain.TierMedium {
		t.Fatalf("expected hold, got %s", got)
	}
}

func TestRecommendHoldsBelowMinSamples(t *testing.T) {
	cfg := DefaultAdaptiveConfig()
	window := samples(cfg.MinSamples-1, true, 0.1)
	if got := recommendTier(domain.TierMedium, window, cfg); got != domain.TierMedium {
		t.Fatalf("expected hold with too few samples, got %s", got)
	}
}

func TestRecordSampleTrimsWindow(t *testing.T) {
	cfg := DefaultAdaptiveConfig()
	now := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)

	profile := domain.DifficultyProfile{LearnerID: "l1", Tier: domain.TierMedium}
	// Ten misses followed by a full window of fast hits: the misses must
	// age out and the recommendation must escalate.
	for i := 0; i < 10; i++ {
		recordSample(&profile, cfg, domain.AnswerSample{Correct: false, Speed: 0.9}, now)
	}
	for i := 0; i < cfg.WindowSize; i++ {
		recordSample(&profile, cfg, domain.AnswerSample{Correct: true, Speed: 0.3}, now.Add(time.Minute))
	}

	if len(profile.Window) != cfg.WindowSize {
		t.Fatalf("expected window trimmed to %d, got %d", cfg.WindowSize, len(profile.Window))
	}
	if profile.Recommended != domain.TierHard {
		t.Fatalf("expected hard after misses aged out, got %s", profile.Recommended)
	}
	if !profile.UpdatedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("expected UpdatedAt refreshed, got %v", profile.UpdatedAt)
	}
}
