// Package difficulty builds a session's question set and adapts the
// difficulty level from the learner's answers.
package difficulty

import (
	"github.com/samber/lo"

	"github.com/abhisek/stepwise/internal/store"
)

// Config holds the difficulty bounds and the session size.
type Config struct {
	// MinLevel is the lowest difficulty level.
	MinLevel int

	// MaxLevel is the highest difficulty level.
	MaxLevel int

	// SessionSize is the target number of questions per session.
	SessionSize int
}

// DefaultConfig returns levels 1..3 and five questions per session.
func DefaultConfig() Config {
	return Config{
		MinLevel:    1,
		MaxLevel:    3,
		SessionSize: 5,
	}
}

// Clamp bounds level to [MinLevel, MaxLevel].
func (c Config) Clamp(level int) int {
	return min(max(level, c.MinLevel), c.MaxLevel)
}

// BuildSessionSet picks the questions for a session: every question at
// level first, then questions of other levels in source order, truncated to
// size. The result is fixed for the session and is not re-evaluated when
// the level drifts.
func BuildSessionSet(all []store.Question, level, size int) []store.Question {
	if size <= 0 {
		return nil
	}
	matching := lo.Filter(all, func(q store.Question, _ int) bool {
		return q.Difficulty == level
	})
	if len(matching) < size {
		others := lo.Filter(all, func(q store.Question, _ int) bool {
			return q.Difficulty != level
		})
		matching = append(matching, others...)
	}
	if len(matching) > size {
		matching = matching[:size]
	}
	return matching
}

// Adapter tracks the current difficulty level of one session.
type Adapter struct {
	cfg   Config
	level int
}

// NewAdapter returns an adapter starting at cfg.MinLevel.
func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg, level: cfg.MinLevel}
}

// Level returns the current difficulty level.
func (a *Adapter) Level() int {
	return a.level
}

// Observe applies the parity rule for one answer and returns the new level.
//
// correctBefore is the session's correct-answer count before this answer
// and sessionLength is the size of the session's question set. A correct
// answer raises the level when correctBefore is odd; an incorrect answer
// lowers it when sessionLength-correctBefore is odd.
func (a *Adapter) Observe(correct bool, correctBefore, sessionLength int) int {
	if correct {
		if correctBefore%2 == 1 {
			a.level = a.cfg.Clamp(a.level + 1)
		}
		return a.level
	}
	if (sessionLength-correctBefore)%2 == 1 {
		a.level = a.cfg.Clamp(a.level - 1)
	}
	return a.level
}

// Simplify forces a one-level decrease, bypassing the parity rule.
func (a *Adapter) Simplify() int {
	a.level = a.cfg.Clamp(a.level - 1)
	return a.level
}
