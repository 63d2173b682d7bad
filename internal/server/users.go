package server

import (
	"net/http"

	"github.com/abhisek/stepwise/internal/diagnostic"
	"github.com/abhisek/stepwise/internal/users"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req users.Registration
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.Users.Register(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.Users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.Users.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) userProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	progress, err := s.Store.Progress().ListForUser(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(progress))
}

func (s *Server) userSessions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sessions, err := s.Store.Sessions().ListForUser(r.Context(), id, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sessions))
}

func (s *Server) userBadges(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	badges, err := s.Store.Badges().ListForUser(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(badges))
}

func (s *Server) userSummaries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	summaries, err := s.Store.Summaries().ListForUser(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(summaries))
}

func (s *Server) userRank(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	e, err := s.Board.Rank(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "limit", 10)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	top, err := s.Board.Top(r.Context(), min(max(n, 1), 100))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(top))
}

// diagnosticRequest grades answers to the diagnostic questions of a
// topic, or skips the diagnostic.
type diagnosticRequest struct {
	TopicID int64 `json:"topicId"`
	Answers []int `json:"answers"`
	Skip    bool  `json:"skip"`
}

func (s *Server) completeDiagnostic(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req diagnosticRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	var res *diagnostic.Result
	if req.Skip {
		res, err = s.Diagnostic.Skip(r.Context(), userID, req.TopicID)
	} else {
		res, err = s.gradeDiagnostic(r, userID, req)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) gradeDiagnostic(r *http.Request, userID int64, req diagnosticRequest) (*diagnostic.Result, error) {
	questions, err := s.Diagnostic.Questions(r.Context(), req.TopicID)
	if err != nil {
		return nil, err
	}
	score := diagnostic.Grade(questions, req.Answers)
	return s.Diagnostic.Complete(r.Context(), userID, req.TopicID, score, len(questions))
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
