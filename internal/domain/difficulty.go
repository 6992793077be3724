package domain

import "fmt"

// Tier is a discrete difficulty level. Tiers form the total order
// Easy < Medium < Hard; recommendations move one step at a time and
// never leave the bounds.
type Tier string

const (
	TierEasy   Tier = "easy"
	TierMedium Tier = "medium"
	TierHard   Tier = "hard"
)

var tierOrder = []Tier{TierEasy, TierMedium, TierHard}

// ParseTier validates a tier string; the empty string is passed through so
// callers can treat it as "no preference".
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case "", TierEasy, TierMedium, TierHard:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown difficulty tier %q", s)
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	for _, candidate := range tierOrder {
		if t == candidate {
			return true
		}
	}
	return false
}

// Escalate returns the next tier up, clamped at Hard.
func (t Tier) Escalate() Tier {
	for i, candidate := range tierOrder {
		if t == candidate && i+1 < len(tierOrder) {
			return tierOrder[i+1]
		}
	}
	return t
}

// Deescalate returns the next tier down, clamped at Easy.
func (t Tier) Deescalate() Tier {
	for i, candidate := range tierOrder {
		if t == candidate && i > 0 {
			return tierOrder[i-1]
		}
	}
	return t
}
