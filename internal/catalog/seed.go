package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/stepwise/internal/store"
)

// SeedTopic is one topic of the built-in catalog.
type SeedTopic struct {
	Topic     store.Topic
	Questions []store.Question
}

// DefaultSubject is the subject of the built-in catalog.
const DefaultSubject = "Mathematics"

// DefaultCatalog returns the built-in topics and questions.
func DefaultCatalog() []SeedTopic {
	return []SeedTopic{
		{
			Topic: store.Topic{Name: "Fractions", Subject: DefaultSubject, Order: 1},
			Questions: []store.Question{
				{
					Text:          "What is 1/4 + 2/4 equal to?",
					Options:       store.Options{"1/2", "3/4", "3/8", "Cannot add"},
					CorrectOption: 1,
					Difficulty:    1,
					Hint:          "When adding fractions with the same denominator, add the numerators and keep the denominator the same.",
				},
				{
					Text:          "If you have 3/4 of a pizza and eat 1/4, how much do you have left?",
					Options:       store.Options{"1/2", "1/4", "2/4", "1/8"},
					CorrectOption: 0,
					Difficulty:    1,
					Hint:          "Try visualizing the pizza. If you start with 3/4 of the whole pizza and remove 1/4 of the whole pizza, how many pieces are left?",
				},
				{
					Text:          "Which fraction is equivalent to 2/6?",
					Options:       store.Options{"1/3", "2/3", "4/6", "1/6"},
					CorrectOption: 0,
					Difficulty:    2,
					Hint:          "Simplify by finding the greatest common divisor of 2 and 6, then divide both the numerator and denominator by it.",
				},
			},
		},
		{
			Topic: store.Topic{Name: "Decimals", Subject: DefaultSubject, Order: 2, IsLocked: true},
			Questions: []store.Question{
				{
					Text:          "Convert 0.25 to a fraction in its simplest form.",
					Options:       store.Options{"1/4", "2/5", "25/100", "1/25"},
					CorrectOption: 0,
					Difficulty:    1,
					Hint:          "To convert a decimal to a fraction, place the decimal number over a power of 10.",
				},
				{
					Text:          "What is 0.7 + 0.35?",
					Options:       store.Options{"0.105", "1.05", "10.5", "1.5"},
					CorrectOption: 1,
					Difficulty:    1,
					Hint:          "Line up the decimal points before adding.",
				},
			},
		},
		{
			Topic: store.Topic{Name: "Percentages", Subject: DefaultSubject, Order: 3, IsLocked: true},
		},
	}
}

// SeedResult counts what Seed inserted.
type SeedResult struct {
	TopicsCreated    int
	QuestionsCreated int
}

// Seed inserts the built-in catalog. Topics that already exist are left
// untouched together with their questions, so repeated runs are no-ops.
func (s *Service) Seed(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	for _, st := range DefaultCatalog() {
		_, err := s.repo.TopicByName(ctx, st.Topic.Subject, st.Topic.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return res, fmt.Errorf("look up topic %s: %w", st.Topic.Name, err)
		}

		topic := st.Topic
		if err := s.repo.CreateTopic(ctx, &topic); err != nil {
			return res, fmt.Errorf("create topic %s: %w", topic.Name, err)
		}
		res.TopicsCreated++

		for _, q := range st.Questions {
			q.TopicID = topic.ID
			if err := s.repo.CreateQuestion(ctx, &q); err != nil {
				return res, fmt.Errorf("create question %q: %w", q.Text, err)
			}
			res.QuestionsCreated++
		}
	}
	s.logger.Info("catalog seeded", "topics", res.TopicsCreated, "questions", res.QuestionsCreated)
	return res, nil
}
