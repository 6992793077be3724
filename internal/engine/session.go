package engine

import (
	"sync"
	"time"

	"quiz-session-engine/internal/domain"
)

// recommendFunc records one graded answer in the learner's difficulty
// window and returns the standing recommendation. It runs while the
// session lock is held so the answer record and the window update land
// together.
type recommendFunc func(correct bool, speed float64) domain.Tier

// Session owns one learner's run through an ordered question sequence.
// The question slice is fixed at creation; the index only moves forward;
// every mutation happens under the session mutex, so concurrent calls for
// the same session serialize and the loser of a submit race observes a
// stale index.
type Session struct {
	mu        sync.Mutex
	id        string
	learnerID string
	cfg       domain.SessionConfig
	questions []domain.Question
	index     int
	answers   []domain.AnswerRecord
	state     domain.SessionState
	dl        deadline
	createdAt time.Time
	scoring   ScoringConfig
	summary   *domain.CompletionSummary
}

func newSession(id, learnerID string, cfg domain.SessionConfig, questions []domain.Question, scoring ScoringConfig, now time.Time) *Session {
	s := &Session{
		id:        id,
		learnerID: learnerID,
		cfg:       cfg,
		questions: questions,
		state:     domain.SessionActive,
		createdAt: now,
		scoring:   scoring,
	}
	s.dl = deadline{armedAt: now, limit: s.limitFor(0)}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// LearnerID returns the owning learner.
func (s *Session) LearnerID() string { return s.learnerID }

func (s *Session) limitFor(index int) time.Duration {
	limitSec := s.questions[index].TimeLimitSec
	if s.cfg.TimeLimitSec > 0 {
		limitSec = s.cfg.TimeLimitSec
	}
	return time.Duration(limitSec) * time.Second
}

func (s *Session) completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == domain.SessionCompleted
}

// submit grades the current question. A submission that arrives after the
// deadline is recorded as a timeout regardless of its payload.
func (s *Session) submit(now time.Time, index int, option string, present bool, recommend recommendFunc) (*domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.SessionCompleted {
		return nil, domain.ErrSessionCompleted
	}
	if index != s.index {
		return nil, domain.ErrStaleQuestion
	}

	timedOut := s.dl.expired(now)
	if timedOut {
		option = ""
		present = false
	}
	return s.gradeLocked(now, option, present, timedOut, recommend), nil
}

// reapExpired applies timeout semantics to the current question if its
// deadline has passed. Idempotent: with nothing expired it is a no-op.
func (s *Session) reapExpired(now time.Time, recommend recommendFunc) *domain.AnswerResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.SessionCompleted || !s.dl.expired(now) {
		return nil
	}
	return s.gradeLocked(now, "", false, true, recommend)
}

func (s *Session) gradeLocked(now time.Time, option string, present, timedOut bool, recommend recommendFunc) *domain.AnswerResult {
	q := s.questions[s.index]
	limit := s.dl.limit
	elapsed := s.dl.elapsed(now)
	ev := Evaluate(q, option, present, elapsed, limit, s.scoring)

	record := domain.AnswerRecord{
		QuestionID: q.ID,
		ElapsedSec: ev.ElapsedSec,
		Correct:    ev.Correct,
		ScoreDelta: ev.ScoreDelta,
		RecordedAt: now,
	}
	if present {
		record.Submitted = option
	}
	s.answers = append(s.answers, record)
	s.index++

	speed := 1.0
	if limit > 0 {
		speed = elapsed.Seconds() / limit.Seconds()
	}
	recommended := recommend(ev.Correct, speed)

	result := &domain.AnswerResult{
		QuestionID:    q.ID,
		Correct:       ev.Correct,
		TimedOut:      timedOut,
		ElapsedSec:    ev.ElapsedSec,
		ScoreDelta:    ev.ScoreDelta,
		CorrectOption: q.Correct,
		Explanation:   q.Explanation,
	}

	if s.index == len(s.questions) {
		s.state = domain.SessionCompleted
		s.summary = s.buildSummaryLocked(recommended)
		result.Summary = s.summary
	} else {
		s.dl = deadline{armedAt: now, limit: s.limitFor(s.index)}
		result.Next = s.questionViewLocked()
	}
	return result
}

func (s *Session) buildSummaryLocked(recommended domain.Tier) *domain.CompletionSummary {
	var score float64
	correct := 0
	topicTotal := make(map[string]int)
	topicCorrect := make(map[string]int)
	for i, record := range s.answers {
		score += record.ScoreDelta
		topic := s.questions[i].Topic
		topicTotal[topic]++
		if record.Correct {
			correct++
			topicCorrect[topic]++
		}
	}

	topicAccuracy := make(map[string]float64, len(topicTotal))
	for topic, total := range topicTotal {
		topicAccuracy[topic] = float64(topicCorrect[topic]) / float64(total)
	}
	return &domain.CompletionSummary{
		Score:         score,
		Accuracy:      float64(correct) / float64(len(s.answers)),
		TopicAccuracy: topicAccuracy,
		Recommended:   recommended,
	}
}

// snapshot builds a view without mutating state. Callers that need lazy
// timeout handling run reapExpired first.
func (s *Session) snapshot() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := domain.SessionView{
		SessionID:     s.id,
		LearnerID:     s.learnerID,
		State:         s.state,
		CurrentIndex:  s.index,
		QuestionCount: len(s.questions),
	}
	if s.state == domain.SessionCompleted {
		view.Summary = s.summary
	} else {
		view.Question = s.questionViewLocked()
	}
	return view
}

func (s *Session) questionViewLocked() *domain.QuestionView {
	q := s.questions[s.index]
	return &domain.QuestionView{
		ID:           q.ID,
		Index:        s.index,
		Prompt:       q.Prompt,
		Options:      append([]string(nil), q.Options...),
		TimeLimitSec: int(s.dl.limit / time.Second),
		Deadline:     s.dl.expiresAt(),
	}
}
