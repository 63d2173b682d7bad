// Package storetest provides in-memory stores and fixtures for tests.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/abhisek/stepwise/internal/store"
)

// New opens a private in-memory SQLite store that is closed when the test
// ends.
func New(t testing.TB) *store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_", "?", "_", "&", "_", "%", "_", "=", "_").Replace(t.Name())
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// User creates a learner with default goals.
func User(t testing.TB, s *store.Store, username string) *store.User {
	t.Helper()
	u := &store.User{
		Username:          username,
		Name:              strings.ToUpper(username[:1]) + username[1:],
		Grade:             7,
		Language:          "English",
		PasswordHash:      "x",
		WeeklyGoalTopics:  3,
		WeeklyGoalMinutes: 15,
		CurrentSubject:    "Mathematics",
	}
	if err := s.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// Topic creates a topic holding one question per entry of difficulties.
// Question i has its correct answer at option index i%4.
func Topic(t testing.TB, s *store.Store, name string, difficulties ...int) (*store.Topic, []store.Question) {
	t.Helper()
	ctx := context.Background()
	topic := &store.Topic{Name: name, Subject: "Mathematics", Order: 1}
	if err := s.Catalog().CreateTopic(ctx, topic); err != nil {
		t.Fatalf("create topic %s: %v", name, err)
	}

	questions := make([]store.Question, 0, len(difficulties))
	for i, d := range difficulties {
		q := store.Question{
			TopicID:       topic.ID,
			Text:          fmt.Sprintf("%s question %d", name, i+1),
			Options:       store.Options{"a", "b", "c", "d"},
			CorrectOption: i % 4,
			Difficulty:    d,
			Hint:          fmt.Sprintf("hint %d", i+1),
		}
		if err := s.Catalog().CreateQuestion(ctx, &q); err != nil {
			t.Fatalf("create question: %v", err)
		}
		questions = append(questions, q)
	}
	return topic, questions
}
