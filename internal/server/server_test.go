package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/abhisek/stepwise/internal/apperr"
	"github.com/abhisek/stepwise/internal/catalog"
	"github.com/abhisek/stepwise/internal/diagnostic"
	"github.com/abhisek/stepwise/internal/engagement"
	"github.com/abhisek/stepwise/internal/scoring"
	"github.com/abhisek/stepwise/internal/session"
	"github.com/abhisek/stepwise/internal/store"
	"github.com/abhisek/stepwise/internal/store/storetest"
	"github.com/abhisek/stepwise/internal/users"
)

type fixture struct {
	srv     *Server
	st      *store.Store
	clock   *engagement.ManualClock
	user    *store.User
	topic   *store.Topic
	correct map[int64]int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storetest.New(t)
	f := &fixture{st: st, clock: engagement.NewManualClock(), correct: map[int64]int{}}
	f.user = storetest.User(t, st, "asha")

	var qs []store.Question
	f.topic, qs = storetest.Topic(t, st, "Fractions", 1, 1, 2, 2, 3)
	for _, q := range qs {
		f.correct[q.ID] = q.CorrectOption
	}

	us := users.New(st.Users(), nil)
	us.Cost = bcrypt.MinCost

	cfg := session.DefaultConfig()
	cfg.Clock = f.clock

	f.srv = New(Deps{
		Store:      st,
		Users:      us,
		Catalog:    catalog.New(st.Catalog(), nil),
		Diagnostic: diagnostic.New(st, nil),
		Engine:     session.New(st, cfg),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRequestIDPropagates(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodOptions, "/api/register", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	reg := users.Registration{Username: "mira", Name: "Mira", Password: "secret1", Grade: 7}

	rec := f.do(t, http.MethodPost, "/api/register", reg)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret1")
	assert.NotContains(t, rec.Body.String(), "password")
	u := decodeBody[store.User](t, rec)
	assert.Equal(t, "mira", u.Username)

	rec = f.do(t, http.MethodPost, "/api/register", reg)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/login", loginRequest{Username: "mira", Password: "secret1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, u.ID, decodeBody[store.User](t, rec).ID)

	rec = f.do(t, http.MethodPost, "/api/login", loginRequest{Username: "mira", Password: "wrong!!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/register", users.Registration{Username: "mi", Name: "Mira", Password: "secret1", Grade: 7})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "username", decodeBody[errorBody](t, rec).Field)

	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewBufferString(`{"username":`))
	out := httptest.NewRecorder()
	f.srv.ServeHTTP(out, req)
	assert.Equal(t, http.StatusBadRequest, out.Code)
}

func TestUserNotFound(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/users/999", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/nowhere", nil).Code)
}

func TestCatalogRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/topics?subject=Mathematics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]store.Topic](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/topics/search?q=frac", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]store.Topic](t, rec), 1)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/topics/search?q=", nil).Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/topics/%d", f.topic.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Fractions", decodeBody[store.Topic](t, rec).Name)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/topics/%d/questions", f.topic.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "correctOption")
	assert.Len(t, decodeBody[[]questionOut](t, rec), 5)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/topics/%d/questions?difficulty=2", f.topic.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]questionOut](t, rec), 2)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/topics/%d/questions?difficulty=x", f.topic.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/topics/%d/diagnostic", f.topic.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]questionOut](t, rec), diagnostic.QuestionCount)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/topics/999", nil).Code)
}

func TestDiagnostic(t *testing.T) {
	f := newFixture(t)
	qs, err := f.st.Catalog().QuestionsForTopic(context.Background(), f.topic.ID)
	require.NoError(t, err)

	// Two of three right.
	answers := []int{qs[0].CorrectOption, qs[1].CorrectOption, (qs[2].CorrectOption + 1) % 4}
	path := fmt.Sprintf("/api/users/%d/diagnostic", f.user.ID)
	rec := f.do(t, http.MethodPost, path, diagnosticRequest{TopicID: f.topic.ID, Answers: answers})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeBody[diagnostic.Result](t, rec)
	assert.Equal(t, 2, res.Score)
	assert.Equal(t, 67, res.Mastery)
	assert.Equal(t, 3, res.Level)

	rec = f.do(t, http.MethodPost, path, diagnosticRequest{TopicID: f.topic.ID, Skip: true})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/progress", f.user.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	progress := decodeBody[[]store.UserProgress](t, rec)
	require.Len(t, progress, 1)
	assert.Equal(t, 67, progress[0].MasteryPercentage)
}

func TestSessionFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/sessions", f.user.ID), startRequest{TopicID: f.topic.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	v := decodeBody[sessionResponse](t, rec)
	require.NotNil(t, v.Question)
	assert.Equal(t, 5, v.Total)
	assert.NotContains(t, rec.Body.String(), "correctOption\":")

	base := fmt.Sprintf("/api/sessions/%d", v.SessionID)
	rec = f.do(t, http.MethodPost, base+"/hint", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody[sessionResponse](t, rec).Hint)

	for v.Phase == session.PhaseActive {
		opt := f.correct[v.Question.ID]
		rec = f.do(t, http.MethodPost, base+"/answer", map[string]int{"option": opt})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		v = decodeBody[sessionResponse](t, rec)
		require.NotNil(t, v.LastAnswer)
		assert.True(t, v.LastAnswer.Correct)
	}

	assert.Equal(t, session.PhaseCompleted, v.Phase)
	require.NotNil(t, v.Completion)
	assert.Equal(t, 100, v.Completion.Accuracy)
	assert.Equal(t, 35, v.Completion.XPEarned)
	assert.True(t, v.Completion.BadgeEarned)
	assert.Empty(t, v.Warnings)

	rec = f.do(t, http.MethodPost, base+"/answer", map[string]int{"option": 0})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/retry", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decodeBody[sessionResponse](t, rec).Unsaved)

	rec = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.PhaseCompleted, decodeBody[sessionResponse](t, rec).Phase)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/sessions", f.user.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decodeBody[[]store.UserSession](t, rec)
	require.Len(t, sessions, 1)
	assert.Equal(t, 5, sessions[0].QuestionsCorrect)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/badges", f.user.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]store.UserBadge](t, rec), 1)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/summaries", f.user.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]store.ParentSummary](t, rec), 1)
}

func TestSessionCheckpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/sessions", f.user.ID), startRequest{TopicID: f.topic.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	base := fmt.Sprintf("/api/sessions/%d", decodeBody[sessionResponse](t, rec).SessionID)

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, base+"/continue", nil).Code)

	f.clock.Advance(engagement.SessionIdleTimeout + engagement.DefaultConfirmTimeout)

	rec = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[sessionResponse](t, rec).Checkpoint)

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, base+"/answer", map[string]int{"option": 0}).Code)

	rec = f.do(t, http.MethodPost, base+"/simplify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[sessionResponse](t, rec).Checkpoint)
}

func TestSessionErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/sessions", f.user.ID), startRequest{TopicID: 999})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/sessions/999", nil).Code)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/sessions", f.user.ID), startRequest{TopicID: f.topic.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	base := fmt.Sprintf("/api/sessions/%d", decodeBody[sessionResponse](t, rec).SessionID)

	rec = f.do(t, http.MethodPost, base+"/answer", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "option", decodeBody[errorBody](t, rec).Field)

	rec = f.do(t, http.MethodPost, base+"/answer", map[string]int{"option": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, base+"/retry", nil).Code)
}

func TestLeaderboardDisabled(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/rank", f.user.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decodeBody[struct{ Rank int64 }](t, rec).Rank)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Invalid("x", "bad"), http.StatusBadRequest},
		{fmt.Errorf("login: %w", users.ErrInvalidCredentials), http.StatusUnauthorized},
		{fmt.Errorf("get: %w", store.ErrNotFound), http.StatusNotFound},
		{store.ErrDuplicate, http.StatusConflict},
		{session.ErrCheckpointActive, http.StatusConflict},
		{session.ErrNotActive, http.StatusConflict},
		{session.ErrNotCompleted, http.StatusConflict},
		{&store.TransientError{Op: "ping", Err: errors.New("conn refused")}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}

func TestPartialCompletionIsWarning(t *testing.T) {
	f := newFixture(t)
	pce := &scoring.PartialCompletionError{Failures: []scoring.StepError{
		{Step: scoring.StepSummary, Err: errors.New("disk full")},
	}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/1/answer", nil)
	f.srv.writeSession(rec, req, http.StatusOK, session.View{SessionID: 1, Phase: session.PhaseCompleted}, pce)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[sessionResponse](t, rec)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "disk full")
}

func TestRecoverer(t *testing.T) {
	f := newFixture(t)
	h := f.srv.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListenAndServeShutdown(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
