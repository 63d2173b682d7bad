// Package session runs adaptive learning sessions: it serves a fixed set of
// questions, adapts the difficulty from the learner's answers, raises a
// checkpoint when the learner goes quiet and scores the session at the end.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/abhisek/stepwise/internal/difficulty"
	"github.com/abhisek/stepwise/internal/engagement"
	"github.com/abhisek/stepwise/internal/scoring"
	"github.com/abhisek/stepwise/internal/store"
)

// Phase is the lifecycle position of a session.
type Phase int

const (
	PhaseNotStarted Phase = iota // no question served yet
	PhaseActive                  // serving questions
	PhaseCompleting              // last answer in, outcome being persisted
	PhaseCompleted               // outcome available, no further answers
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not-started"
	case PhaseActive:
		return "active"
	case PhaseCompleting:
		return "completing"
	case PhaseCompleted:
		return "completed"
	}
	return "unknown"
}

// MarshalText renders the phase name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for c := PhaseNotStarted; c <= PhaseCompleted; c++ {
		if c.String() == string(b) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown session phase %q", b)
}

// Feedback describes the most recent answer.
type Feedback struct {
	QuestionID    int64 `json:"questionId"`
	Selected      int   `json:"selected"`
	Correct       bool  `json:"correct"`
	CorrectOption int   `json:"correctOption"`
}

// state is the transient per-session data. It is discarded once the
// session is swept.
type state struct {
	mu sync.Mutex

	id    int64
	user  *store.User
	topic *store.Topic

	// prior is the progress record observed when the session started, nil
	// when the learner had none. The scorer re-reads the record at
	// completion; prior only stands in when that read fails.
	prior *store.UserProgress

	// questions is the session set, fixed at start.
	questions []store.Question

	// index is the position of the current question in questions.
	index int

	answered int
	correct  int

	adapter  *difficulty.Adapter
	detector *engagement.Detector

	phase Phase

	hint      string
	hintShown bool

	lastAnswer *Feedback
	outcome    *scoring.Outcome

	// unsaved holds the completion steps that failed to persist, nil once
	// everything is stored.
	unsaved *scoring.PartialCompletionError

	// lastInteraction drives SweepIdle.
	lastInteraction time.Time
}

func (s *state) current() *store.Question {
	if s.index >= len(s.questions) {
		return nil
	}
	return &s.questions[s.index]
}

func (s *state) scoringInput() scoring.Input {
	return scoring.Input{
		User:      s.user,
		Topic:     s.topic,
		SessionID: s.id,
		Correct:   s.correct,
		Total:     s.answered,
		Prior:     s.prior,
	}
}

func (s *state) checkpoint() bool {
	return s.phase == PhaseActive && s.detector.State() == engagement.StateDetected
}
