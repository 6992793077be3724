package domain

import "time"

// Question is a single multiple-choice question as fetched from the bank.
// Immutable once attached to a session; the Correct option and Explanation
// are never included in a view while the question is live.
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"` // 2-6 option strings, order is meaningful
	Correct      string   `json:"correct"`
	Explanation  string   `json:"explanation,omitempty"`
	TimeLimitSec int      `json:"timeLimitSec"`
	Topic        string   `json:"topic"`
	Difficulty   Tier     `json:"difficulty"`
}

// SessionConfig is the caller-supplied configuration for a new session.
type SessionConfig struct {
	Topic         string `json:"topic"`
	Difficulty    Tier   `json:"difficulty"` // empty means "use the learner's recommended tier"
	QuestionCount int    `json:"questionCount"`
	// TimeLimitSec overrides each question's own limit when > 0.
	TimeLimitSec int `json:"timeLimitSeconds"`
}

// SessionState enumerates session lifecycle states.
type SessionState string

const (
	SessionActive    SessionState = "ACTIVE"
	SessionCompleted SessionState = "COMPLETED"
)

// AnswerRecord is the server-side record of one graded question.
// Submitted is empty when the question timed out.
type AnswerRecord struct {
	QuestionID string    `json:"questionId"`
	Submitted  string    `json:"submitted,omitempty"`
	ElapsedSec float64   `json:"elapsedSec"`
	Correct    bool      `json:"correct"`
	ScoreDelta float64   `json:"scoreDelta"`
	RecordedAt time.Time `json:"recordedAt"`
}

// QuestionView is the public shape of a live question: no correct option,
// no explanation.
type QuestionView struct {
	ID           string    `json:"id"`
	Index        int       `json:"index"`
	Prompt       string    `json:"prompt"`
	Options      []string  `json:"options"`
	TimeLimitSec int       `json:"timeLimitSec"`
	Deadline     time.Time `json:"deadline"`
}

// CompletionSummary is attached to views and answer results once the
// session has run out of questions.
type CompletionSummary struct {
	Score         float64            `json:"score"`
	Accuracy      float64            `json:"accuracy"`
	TopicAccuracy map[string]float64 `json:"topicAccuracy"`
	Recommended   Tier               `json:"recommendedDifficulty"`
}

// SessionView is the caller-facing snapshot of a session.
type SessionView struct {
	SessionID     string             `json:"sessionId"`
	LearnerID     string             `json:"learnerId"`
	State         SessionState       `json:"state"`
	CurrentIndex  int                `json:"currentIndex"`
	QuestionCount int                `json:"questionCount"`
	Question      *QuestionView      `json:"question,omitempty"` // nil once completed
	Summary       *CompletionSummary `json:"summary,omitempty"`  // nil until completed
}

// AnswerResult is returned from a submission (or its timeout equivalent).
// The correct option and explanation are safe to reveal at this point.
type AnswerResult struct {
	QuestionID    string             `json:"questionId"`
	Correct       bool               `json:"correct"`
	TimedOut      bool               `json:"timedOut"`
	ElapsedSec    float64            `json:"elapsedSec"`
	ScoreDelta    float64            `json:"scoreDelta"`
	CorrectOption string             `json:"correctOption"`
	Explanation   string             `json:"explanation,omitempty"`
	Next          *QuestionView      `json:"next,omitempty"`
	Summary       *CompletionSummary `json:"summary,omitempty"`
}

// AnswerSample is one entry in a learner's rolling difficulty window.
// Speed is elapsed/limit in [0,1].
type AnswerSample struct {
	Correct bool    `json:"correct"`
	Speed   float64 `json:"speed"`
}

// DifficultyProfile is a learner's rolling performance window. It outlives
// any single session and feeds the next session's default difficulty.
type DifficultyProfile struct {
	LearnerID   string         `json:"learnerId"`
	Tier        Tier           `json:"tier"`
	Window      []AnswerSample `json:"window"`
	Recommended Tier           `json:"recommended"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}
