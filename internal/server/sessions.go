package server

import (
	"context"
	"net/http"

	"github.com/abhisek/stepwise/internal/session"
)

type startRequest struct {
	TopicID int64 `json:"topicId"`
}

type answerRequest struct {
	Option *int `json:"option"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req startRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.Engine.StartSession(r.Context(), userID, req.TopicID)
	s.writeSession(w, r, http.StatusCreated, v, err)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.Engine.View(id)
	s.writeSession(w, r, http.StatusOK, v, err)
}

func (s *Server) submitAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req answerRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Option == nil {
		s.fail(w, r, invalidOption())
		return
	}
	v, err := s.Engine.SubmitAnswer(r.Context(), id, *req.Option)
	s.writeSession(w, r, http.StatusOK, v, err)
}

func (s *Server) requestHint(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, r, s.Engine.RequestHint)
}

func (s *Server) continueSession(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, r, s.Engine.ContinueAfterCheckpoint)
}

func (s *Server) simplifySession(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, r, s.Engine.SimplifyAfterCheckpoint)
}

func (s *Server) retryCompletion(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, r, s.Engine.RetryCompletion)
}

func (s *Server) sessionAction(w http.ResponseWriter, r *http.Request, action func(context.Context, int64) (session.View, error)) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := action(r.Context(), id)
	s.writeSession(w, r, http.StatusOK, v, err)
}
