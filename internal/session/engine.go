package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abhisek/stepwise/internal/apperr"
	"github.com/abhisek/stepwise/internal/difficulty"
	"github.com/abhisek/stepwise/internal/engagement"
	"github.com/abhisek/stepwise/internal/scoring"
	"github.com/abhisek/stepwise/internal/store"
)

var (
	// ErrCheckpointActive is returned for answers and hints while the
	// checkpoint overlay is showing.
	ErrCheckpointActive = errors.New("checkpoint active")

	// ErrNoCheckpoint is returned for checkpoint choices when no
	// checkpoint is showing.
	ErrNoCheckpoint = errors.New("no checkpoint showing")

	// ErrNotActive is returned for operations on a session that is not
	// serving questions.
	ErrNotActive = errors.New("session not active")

	// ErrNotCompleted is returned when retrying the completion of a
	// session that has not been scored yet.
	ErrNotCompleted = errors.New("session not completed")
)

// Hinter supplies the hint for a question.
type Hinter interface {
	Hint(ctx context.Context, q store.Question) (string, error)
}

// StoredHints returns the hint stored on the question.
type StoredHints struct{}

func (StoredHints) Hint(_ context.Context, q store.Question) (string, error) {
	return q.Hint, nil
}

// XPSink receives a learner's XP total after each completed session.
type XPSink interface {
	RecordXP(ctx context.Context, userID int64, username string, xp int) error
}

// Config configures an Engine.
type Config struct {
	Difficulty difficulty.Config

	// IdleTimeout and ConfirmTimeout configure the disengagement
	// detector of every session.
	IdleTimeout    time.Duration
	ConfirmTimeout time.Duration

	// Clock schedules detector timers. Defaults to the system clock.
	Clock engagement.Clock

	// Now reads the wall clock for idle sweeping. Defaults to time.Now.
	Now func() time.Time

	Hints  Hinter
	XP     XPSink
	Logger *slog.Logger
}

// DefaultConfig returns the settings used for learning sessions.
func DefaultConfig() Config {
	return Config{
		Difficulty:     difficulty.DefaultConfig(),
		IdleTimeout:    engagement.SessionIdleTimeout,
		ConfirmTimeout: engagement.DefaultConfirmTimeout,
	}
}

// Engine orchestrates learning sessions. It is safe for concurrent use;
// each session is serialized by its own lock.
type Engine struct {
	users    store.UserRepo
	catalog  store.CatalogRepo
	progress store.ProgressRepo
	sessions store.SessionRepo
	scorer   *scoring.Scorer
	cfg      Config
	logger   *slog.Logger

	mu     sync.Mutex
	active map[int64]*state // by session id
	byUser map[int64]int64  // user id -> session id
}

// New returns an Engine persisting through st.
func New(st *store.Store, cfg Config) *Engine {
	if cfg.Difficulty == (difficulty.Config{}) {
		cfg.Difficulty = difficulty.DefaultConfig()
	}
	if cfg.Clock == nil {
		cfg.Clock = engagement.SystemClock{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Hints == nil {
		cfg.Hints = StoredHints{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scorer := scoring.New(st, logger)
	scorer.Now = cfg.Now
	return &Engine{
		users:    st.Users(),
		catalog:  st.Catalog(),
		progress: st.Progress(),
		sessions: st.Sessions(),
		scorer:   scorer,
		cfg:      cfg,
		logger:   logger,
		active:   make(map[int64]*state),
		byUser:   make(map[int64]int64),
	}
}

// Scorer exposes the engine's scorer so callers can swap its repositories.
func (e *Engine) Scorer() *scoring.Scorer {
	return e.scorer
}

// StartSession begins a session for the user on the topic at the lowest
// difficulty. Any in-flight session of the same user is discarded; its
// record stays unfinalized.
func (e *Engine) StartSession(ctx context.Context, userID, topicID int64) (View, error) {
	user, err := e.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return View{}, apperr.Invalid("userId", "unknown user %d", userID)
		}
		return View{}, fmt.Errorf("load user: %w", err)
	}
	topic, err := e.catalog.Topic(ctx, topicID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return View{}, apperr.Invalid("topicId", "unknown topic %d", topicID)
		}
		return View{}, fmt.Errorf("load topic: %w", err)
	}

	all, err := e.catalog.QuestionsForTopic(ctx, topicID)
	if err != nil {
		return View{}, fmt.Errorf("load questions: %w", err)
	}
	adapter := difficulty.NewAdapter(e.cfg.Difficulty)
	set := difficulty.BuildSessionSet(all, adapter.Level(), e.cfg.Difficulty.SessionSize)
	if len(set) == 0 {
		return View{}, apperr.Invalid("topicId", "topic %d has no questions", topicID)
	}

	prior, err := e.progress.Get(ctx, userID, topicID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		prior = nil
	case err != nil:
		return View{}, fmt.Errorf("load progress: %w", err)
	}

	rec := &store.UserSession{UserID: userID, TopicID: topicID}
	if err := e.sessions.Create(ctx, rec); err != nil {
		return View{}, fmt.Errorf("create session: %w", err)
	}

	st := &state{
		id:              rec.ID,
		user:            user,
		topic:           topic,
		prior:           prior,
		questions:       set,
		adapter:         adapter,
		phase:           PhaseNotStarted,
		lastInteraction: e.cfg.Now(),
	}
	sessionID := rec.ID
	st.detector = engagement.New(engagement.Config{
		IdleTimeout:    e.cfg.IdleTimeout,
		ConfirmTimeout: e.cfg.ConfirmTimeout,
		Clock:          e.cfg.Clock,
		OnChange: func(s engagement.State) {
			e.logger.Debug("engagement changed", "session_id", sessionID, "state", s.String())
		},
	})

	e.mu.Lock()
	var old *state
	if prevID, ok := e.byUser[userID]; ok {
		old = e.active[prevID]
		delete(e.active, prevID)
	}
	e.active[st.id] = st
	e.byUser[userID] = st.id
	e.mu.Unlock()

	if old != nil {
		old.detector.Stop()
		e.logger.Info("session replaced", "user_id", userID, "old_session_id", old.id, "session_id", st.id)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.detector.Start()
	st.phase = PhaseActive

	e.logger.Info("session started",
		"session_id", st.id,
		"user_id", userID,
		"topic_id", topicID,
		"questions", len(set))
	return viewLocked(st), nil
}

// SubmitAnswer grades the current question and advances. The answer that
// completes the set also scores the session; a partial persistence failure
// is returned as a *scoring.PartialCompletionError next to the completed
// view.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID int64, option int) (View, error) {
	st, err := e.lookup(sessionID)
	if err != nil {
		return View{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.phase != PhaseActive {
		return viewLocked(st), ErrNotActive
	}
	if st.checkpoint() {
		return viewLocked(st), ErrCheckpointActive
	}
	q := st.current()
	if option < 0 || option >= len(q.Options) {
		return viewLocked(st), apperr.Invalid("option", "%d out of range [0, %d)", option, len(q.Options))
	}

	st.detector.RegisterInteraction()
	st.lastInteraction = e.cfg.Now()

	correct := option == q.CorrectOption
	st.adapter.Observe(correct, st.correct, len(st.questions))
	if correct {
		st.correct++
	}
	st.answered++
	st.lastAnswer = &Feedback{
		QuestionID:    q.ID,
		Selected:      option,
		Correct:       correct,
		CorrectOption: q.CorrectOption,
	}
	st.index++
	st.hint, st.hintShown = "", false

	if st.index < len(st.questions) {
		return viewLocked(st), nil
	}
	return e.completeLocked(ctx, st)
}

// completeLocked scores the session. The caller holds st.mu.
func (e *Engine) completeLocked(ctx context.Context, st *state) (View, error) {
	st.phase = PhaseCompleting
	st.detector.Stop()

	out, err := e.scorer.Complete(ctx, st.scoringInput())
	st.outcome = &out
	st.phase = PhaseCompleted
	st.unsaved = nil
	var pe *scoring.PartialCompletionError
	if errors.As(err, &pe) {
		st.unsaved = pe
	}

	if e.cfg.XP != nil {
		e.reportXP(ctx, st.user.ID)
	}
	return viewLocked(st), err
}

func (e *Engine) reportXP(ctx context.Context, userID int64) {
	u, err := e.users.Get(ctx, userID)
	if err != nil {
		e.logger.Warn("load user for leaderboard", "user_id", userID, "error", err)
		return
	}
	if err := e.cfg.XP.RecordXP(ctx, u.ID, u.Username, u.XPPoints); err != nil {
		e.logger.Warn("record leaderboard xp", "user_id", userID, "error", err)
	}
}

// RetryCompletion re-runs the completion steps that failed to persist.
// A completed session with nothing left to store returns its view
// unchanged.
func (e *Engine) RetryCompletion(ctx context.Context, sessionID int64) (View, error) {
	st, err := e.lookup(sessionID)
	if err != nil {
		return View{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.phase != PhaseCompleted {
		return viewLocked(st), ErrNotCompleted
	}
	if st.unsaved == nil {
		return viewLocked(st), nil
	}

	st.lastInteraction = e.cfg.Now()
	out, err := e.scorer.Retry(ctx, st.scoringInput(), *st.outcome, st.unsaved)
	st.outcome = &out
	st.unsaved = nil
	var pe *scoring.PartialCompletionError
	if errors.As(err, &pe) {
		st.unsaved = pe
	}
	e.logger.Info("completion retried", "session_id", st.id, "unsaved", len(unsavedSteps(st)))

	if e.cfg.XP != nil {
		e.reportXP(ctx, st.user.ID)
	}
	return viewLocked(st), err
}

// RequestHint reveals the hint of the current question.
func (e *Engine) RequestHint(ctx context.Context, sessionID int64) (View, error) {
	st, err := e.lookup(sessionID)
	if err != nil {
		return View{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.phase != PhaseActive {
		return viewLocked(st), ErrNotActive
	}
	if st.checkpoint() {
		return viewLocked(st), ErrCheckpointActive
	}
	st.detector.RegisterInteraction()
	st.lastInteraction = e.cfg.Now()

	if !st.hintShown {
		hint, err := e.cfg.Hints.Hint(ctx, *st.current())
		if err != nil {
			return viewLocked(st), fmt.Errorf("load hint: %w", err)
		}
		st.hint, st.hintShown = hint, true
	}
	return viewLocked(st), nil
}

// ContinueAfterCheckpoint dismisses the checkpoint at the same difficulty.
func (e *Engine) ContinueAfterCheckpoint(_ context.Context, sessionID int64) (View, error) {
	return e.resolveCheckpoint(sessionID, false)
}

// SimplifyAfterCheckpoint dismisses the checkpoint and lowers the
// difficulty by one level.
func (e *Engine) SimplifyAfterCheckpoint(_ context.Context, sessionID int64) (View, error) {
	return e.resolveCheckpoint(sessionID, true)
}

func (e *Engine) resolveCheckpoint(sessionID int64, simplify bool) (View, error) {
	st, err := e.lookup(sessionID)
	if err != nil {
		return View{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.phase != PhaseActive {
		return viewLocked(st), ErrNotActive
	}
	if !st.checkpoint() {
		return viewLocked(st), ErrNoCheckpoint
	}
	if simplify {
		level := st.adapter.Simplify()
		e.logger.Info("difficulty simplified", "session_id", st.id, "level", level)
	}
	st.detector.Reset()
	st.lastInteraction = e.cfg.Now()
	return viewLocked(st), nil
}

// View returns the current view of a session without side effects.
func (e *Engine) View(sessionID int64) (View, error) {
	st, err := e.lookup(sessionID)
	if err != nil {
		return View{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return viewLocked(st), nil
}

// ActiveSession returns the id of the user's in-memory session.
func (e *Engine) ActiveSession(userID int64) (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.byUser[userID]
	return id, ok
}

// SweepIdle drops sessions whose last interaction is older than maxAge and
// returns how many were dropped. Completed sessions are swept the same way.
func (e *Engine) SweepIdle(maxAge time.Duration) int {
	cutoff := e.cfg.Now().Add(-maxAge)

	e.mu.Lock()
	var stale []*state
	for id, st := range e.active {
		st.mu.Lock()
		idle := st.lastInteraction.Before(cutoff)
		st.mu.Unlock()
		if !idle {
			continue
		}
		stale = append(stale, st)
		delete(e.active, id)
		if e.byUser[st.user.ID] == id {
			delete(e.byUser, st.user.ID)
		}
	}
	e.mu.Unlock()

	for _, st := range stale {
		st.detector.Stop()
		st.mu.Lock()
		unsaved := unsavedSteps(st)
		st.mu.Unlock()
		if len(unsaved) > 0 {
			e.logger.Warn("session swept with unsaved completion steps",
				"session_id", st.id, "user_id", st.user.ID, "steps", unsaved)
			continue
		}
		e.logger.Info("session swept", "session_id", st.id, "user_id", st.user.ID)
	}
	return len(stale)
}

// Len returns the number of in-memory sessions.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

func (e *Engine) lookup(sessionID int64) (*state, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.active[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %d: %w", sessionID, store.ErrNotFound)
	}
	return st, nil
}
