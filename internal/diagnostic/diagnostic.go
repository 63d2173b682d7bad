// Package diagnostic runs the short baseline quiz that seeds a learner's
// progress record for a topic.
package diagnostic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/abhisek/stepwise/internal/apperr"
	"github.com/abhisek/stepwise/internal/difficulty"
	"github.com/abhisek/stepwise/internal/scoring"
	"github.com/abhisek/stepwise/internal/store"
)

// QuestionCount is the length of the diagnostic.
const QuestionCount = 3

// Result is the outcome of a diagnostic.
type Result struct {
	Score    int                 `json:"score"`
	Total    int                 `json:"total"`
	Mastery  int                 `json:"masteryPercentage"`
	Level    int                 `json:"level"`
	Progress *store.UserProgress `json:"progress"`
}

// Service runs diagnostics.
type Service struct {
	catalog  store.CatalogRepo
	users    store.UserRepo
	progress store.ProgressRepo
	levels   difficulty.Config
	logger   *slog.Logger
}

// New returns a Service backed by st.
func New(st *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog:  st.Catalog(),
		users:    st.Users(),
		progress: st.Progress(),
		levels:   difficulty.DefaultConfig(),
		logger:   logger,
	}
}

// Questions returns the first QuestionCount questions of the topic.
func (s *Service) Questions(ctx context.Context, topicID int64) ([]store.Question, error) {
	if _, err := s.catalog.Topic(ctx, topicID); err != nil {
		return nil, err
	}
	qs, err := s.catalog.QuestionsForTopic(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("diagnostic questions: %w", err)
	}
	if len(qs) > QuestionCount {
		qs = qs[:QuestionCount]
	}
	return qs, nil
}

// Grade counts the answers matching the questions' correct options.
// answers[i] answers questions[i]; missing answers count as wrong.
func Grade(questions []store.Question, answers []int) int {
	score := 0
	for i, q := range questions {
		if i < len(answers) && answers[i] == q.CorrectOption {
			score++
		}
	}
	return score
}

// StartingLevel maps a diagnostic mastery to a starting difficulty.
func (s *Service) StartingLevel(mastery int) int {
	return s.levels.Clamp(max(1, (mastery+32)/33))
}

// Complete records the diagnostic result as the learner's first progress
// record for the topic. A second diagnostic for the same pair fails with
// store.ErrDuplicate.
func (s *Service) Complete(ctx context.Context, userID, topicID int64, score, total int) (*Result, error) {
	switch {
	case total <= 0:
		return nil, apperr.Invalid("total", "must be positive, got %d", total)
	case score < 0 || score > total:
		return nil, apperr.Invalid("score", "%d out of range [0, %d]", score, total)
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Invalid("userId", "unknown user %d", userID)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if _, err := s.catalog.Topic(ctx, topicID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Invalid("topicId", "unknown topic %d", topicID)
		}
		return nil, fmt.Errorf("load topic: %w", err)
	}

	mastery := scoring.Accuracy(score, total)
	p := &store.UserProgress{
		UserID:             userID,
		TopicID:            topicID,
		MasteryPercentage:  mastery,
		QuestionsAttempted: total,
		QuestionsCorrect:   score,
	}
	if err := s.progress.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("record diagnostic: %w", err)
	}

	res := &Result{
		Score:    score,
		Total:    total,
		Mastery:  mastery,
		Level:    s.StartingLevel(mastery),
		Progress: p,
	}
	s.logger.Info("diagnostic completed",
		"user_id", userID, "topic_id", topicID, "mastery", mastery, "level", res.Level)
	return res, nil
}

// Skip records a zero-score diagnostic.
func (s *Service) Skip(ctx context.Context, userID, topicID int64) (*Result, error) {
	return s.Complete(ctx, userID, topicID, 0, QuestionCount)
}
