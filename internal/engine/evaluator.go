package engine

import (
	"time"

	"quiz-session-engine/internal/domain"
)

// ScoringConfig tunes the speed decay curve so product changes do not need
// a code change. A correct answer within FullCreditRatio of the limit earns
// MaxPoints; after that the award decays linearly down to
// MaxPoints*FloorRatio at the deadline.
type ScoringConfig struct {
	MaxPoints       float64 `yaml:"maxPoints"`
	FullCreditRatio float64 `yaml:"fullCreditRatio"`
	FloorRatio      float64 `yaml:"floorRatio"`
}

// DefaultScoringConfig returns the standard curve: 100 points, full credit
// in the first half of the budget, decaying to 20 points at the deadline.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{MaxPoints: 100, FullCreditRatio: 0.5, FloorRatio: 0.2}
}

func (c ScoringConfig) normalized() ScoringConfig {
	def := DefaultScoringConfig()
	if c.MaxPoints <= 0 {
		c.MaxPoints = def.MaxPoints
	}
	if c.FullCreditRatio <= 0 || c.FullCreditRatio > 1 {
		c.FullCreditRatio = def.FullCreditRatio
	}
	if c.FloorRatio < 0 || c.FloorRatio > 1 {
		c.FloorRatio = def.FloorRatio
	}
	return c
}

// Evaluation is the outcome of grading one question.
type Evaluation struct {
	Correct    bool
	ElapsedSec float64
	ScoreDelta float64
}

// Evaluate grades a submission. It is a pure function: an absent option is
// always incorrect, a present option must match the correct one exactly,
// and the score delta falls monotonically with elapsed time.
func Evaluate(q domain.Question, option string, present bool, elapsed, limit time.Duration, cfg ScoringConfig) Evaluation {
	cfg = cfg.normalized()

	ev := Evaluation{ElapsedSec: elapsed.Seconds()}
	if !present || option != q.Correct {
		return ev
	}
	ev.Correct = true
	ev.ScoreDelta = cfg.MaxPoints

	if limit <= 0 {
		return ev
	}
	ratio := elapsed.Seconds() / limit.Seconds()
	if ratio <= cfg.FullCreditRatio {
		return ev
	}
	if ratio > 1 {
		ratio = 1
	}
	floor := cfg.MaxPoints * cfg.FloorRatio
	span := 1 - cfg.FullCreditRatio
	ev.ScoreDelta = cfg.MaxPoints - (cfg.MaxPoints-floor)*(ratio-cfg.FullCreditRatio)/span
	return ev
}
