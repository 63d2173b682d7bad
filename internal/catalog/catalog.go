// Package catalog gives the engine read access to topics and questions and
// loads the catalog from the built-in seed or from spreadsheets.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/abhisek/stepwise/internal/apperr"
	"github.com/abhisek/stepwise/internal/store"
)

// Service wraps the catalog repository.
type Service struct {
	repo   store.CatalogRepo
	logger *slog.Logger
}

// New returns a Service over repo.
func New(repo store.CatalogRepo, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// QuestionsForTopic returns every question of the topic in stable order.
func (s *Service) QuestionsForTopic(ctx context.Context, topicID int64) ([]store.Question, error) {
	qs, err := s.repo.QuestionsForTopic(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("questions for topic %d: %w", topicID, err)
	}
	return qs, nil
}

// QuestionsForTopicAtDifficulty returns the topic's questions at exactly
// the given difficulty.
func (s *Service) QuestionsForTopicAtDifficulty(ctx context.Context, topicID int64, difficulty int) ([]store.Question, error) {
	if difficulty < 1 {
		return nil, apperr.Invalid("difficulty", "must be positive, got %d", difficulty)
	}
	qs, err := s.repo.QuestionsForTopicAtDifficulty(ctx, topicID, difficulty)
	if err != nil {
		return nil, fmt.Errorf("questions for topic %d at difficulty %d: %w", topicID, difficulty, err)
	}
	return qs, nil
}

// Topic returns a topic by id.
func (s *Service) Topic(ctx context.Context, id int64) (*store.Topic, error) {
	return s.repo.Topic(ctx, id)
}

// TopicsBySubject lists the topics of subject in catalog order. An empty
// subject lists every topic.
func (s *Service) TopicsBySubject(ctx context.Context, subject string) ([]store.Topic, error) {
	topics, err := s.repo.Topics(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

// SearchTopics fuzzy-matches query against topic names, ignoring case.
// Closer matches come first.
func (s *Service) SearchTopics(ctx context.Context, query string) ([]store.Topic, error) {
	if query == "" {
		return nil, apperr.Invalid("q", "must not be empty")
	}
	topics, err := s.repo.Topics(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}

	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.Name
	}
	ranks := fuzzy.RankFindFold(query, names)
	sort.Stable(ranks)

	out := make([]store.Topic, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, topics[r.OriginalIndex])
	}
	return out, nil
}
