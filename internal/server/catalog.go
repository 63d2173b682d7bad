package server

import (
	"net/http"

	"github.com/abhisek/stepwise/internal/store"
)

// questionOut is a question without its answer.
type questionOut struct {
	ID         int64    `json:"id"`
	TopicID    int64    `json:"topicId"`
	Text       string   `json:"questionText"`
	Options    []string `json:"options"`
	Difficulty int      `json:"difficulty"`
}

func questionsOut(qs []store.Question) []questionOut {
	out := make([]questionOut, len(qs))
	for i, q := range qs {
		out[i] = questionOut{
			ID:         q.ID,
			TopicID:    q.TopicID,
			Text:       q.Text,
			Options:    q.Options,
			Difficulty: q.Difficulty,
		}
	}
	return out
}

func (s *Server) listTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.Catalog.TopicsBySubject(r.Context(), r.URL.Query().Get("subject"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(topics))
}

func (s *Server) searchTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.Catalog.SearchTopics(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(topics))
}

func (s *Server) getTopic(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := s.Catalog.Topic(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) topicQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	level, err := queryInt(r, "difficulty", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var qs []store.Question
	if r.URL.Query().Has("difficulty") {
		qs, err = s.Catalog.QuestionsForTopicAtDifficulty(r.Context(), id, level)
	} else {
		qs, err = s.Catalog.QuestionsForTopic(r.Context(), id)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questionsOut(qs))
}

func (s *Server) diagnosticQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	qs, err := s.Diagnostic.Questions(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questionsOut(qs))
}
