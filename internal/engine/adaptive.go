package engine

import (
	"time"

	"quiz-session-engine/internal/domain"
)

// AdaptiveConfig tunes the per-learner rolling recommendation window.
type AdaptiveConfig struct {
	// WindowSize bounds the trailing set of answer samples considered.
	WindowSize int `yaml:"windowSize"`
	// MinSamples holds the current tier until enough evidence exists.
	MinSamples int `yaml:"minSamples"`
	// EscalateAccuracy and EscalateSpeed must both be met to move up a tier.
	EscalateAccuracy float64 `yaml:"escalateAccuracy"`
	EscalateSpeed    float64 `yaml:"escalateSpeedFactor"`
	// DeescalateAccuracy moves the learner down a tier when windowed
	// accuracy drops to or below it.
	DeescalateAccuracy float64 `yaml:"deescalateAccuracy"`
}

// DefaultAdaptiveConfig mirrors the documented policy: a 20-answer window,
// escalate at >=85% accuracy with answers inside half the budget,
// de-escalate at <=50% accuracy.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		WindowSize:         20,
		MinSamples:         5,
		EscalateAccuracy:   0.85,
		EscalateSpeed:      0.5,
		DeescalateAccuracy: 0.5,
	}
}

func (c AdaptiveConfig) normalized() AdaptiveConfig {
	def := DefaultAdaptiveConfig()
	if c.WindowSize <= 0 {
		c.WindowSize = def.WindowSize
	}
	if c.MinSamples <= 0 {
		c.MinSamples = def.MinSamples
	}
	if c.EscalateAccuracy <= 0 || c.EscalateAccuracy > 1 {
		c.EscalateAccuracy = def.EscalateAccuracy
	}
	if c.EscalateSpeed <= 0 || c.EscalateSpeed > 1 {
		c.EscalateSpeed = def.EscalateSpeed
	}
	if c.DeescalateAccuracy <= 0 || c.DeescalateAccuracy > 1 {
		c.DeescalateAccuracy = def.DeescalateAccuracy
	}
	return c
}

// recordSample appends one answer to the learner's window, trims it to the
// configured size, and refreshes the standing recommendation.
func recordSample(p *domain.DifficultyProfile, cfg AdaptiveConfig, sample domain.AnswerSample, now time.Time) {
	cfg = cfg.normalized()
	p.Window = append(p.Window, sample)
	if over := len(p.Window) - cfg.WindowSize; over > 0 {
		p.Window = p.Window[over:]
	}
	p.Recommended = recommendTier(p.Tier, p.Window, cfg)
	p.UpdatedAt = now
}

// recommendTier applies the windowed policy. Recommendations move at most
// one tier per evaluation and never outside Easy..Hard; with too few
// samples the current tier holds.
func recommendTier(current domain.Tier, window []domain.AnswerSample, cfg AdaptiveConfig) domain.Tier {
	if !current.Valid() {
		current = domain.TierMedium
	}
	if len(window) < cfg.MinSamples {
		return current
	}

	correct := 0
	speedSum := 0.0
	for _, sample := range window {
		if sample.Correct {
			correct++
		}
		speedSum += sample.Speed
	}
	n := float64(len(window))
	accuracy := float64(correct) / n
	speedFactor := speedSum / n

	switch {
	case accuracy >= cfg.EscalateAccuracy && speedFactor <= cfg.EscalateSpeed:
		return current.Escalate()
	case accuracy <= cfg.DeescalateAccuracy:
		return current.Deescalate()
	}
	return current
}
