package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abhisek/stepwise/internal/store"
)

// Persistence steps, in the order they run.
const (
	StepProgress = "progress"
	StepSession  = "session"
	StepBadge    = "badge"
	StepSummary  = "parent_summary"
)

// StepError records one failed persistence step.
type StepError struct {
	Step string
	Err  error
}

func (e StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e StepError) Unwrap() error {
	return e.Err
}

// PartialCompletionError is returned when some persistence steps of a
// completion failed. The steps that succeeded are not rolled back.
type PartialCompletionError struct {
	Failures []StepError
}

func (e *PartialCompletionError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return "partial completion: " + strings.Join(parts, "; ")
}

// Unwrap exposes every step failure to errors.Is and errors.As.
func (e *PartialCompletionError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Failed reports whether step is among the failures.
func (e *PartialCompletionError) Failed(step string) bool {
	for _, f := range e.Failures {
		if f.Step == step {
			return true
		}
	}
	return false
}

// IsPartial reports whether err is a PartialCompletionError.
func IsPartial(err error) bool {
	var pe *PartialCompletionError
	return errors.As(err, &pe)
}

// Scorer computes session outcomes and persists them.
type Scorer struct {
	Progress  store.ProgressRepo
	Sessions  store.SessionRepo
	Users     store.UserRepo
	Badges    store.BadgeRepo
	Summaries store.SummaryRepo
	Logger    *slog.Logger

	// Now stamps the session end time. Defaults to time.Now.
	Now func() time.Time
}

// New returns a Scorer backed by st.
func New(st *store.Store, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		Progress:  st.Progress(),
		Sessions:  st.Sessions(),
		Users:     st.Users(),
		Badges:    st.Badges(),
		Summaries: st.Summaries(),
		Logger:    logger,
		Now:       time.Now,
	}
}

// Complete computes the outcome of a finished session and writes it in
// four independent steps: progress, session record (plus user XP), badge
// and parent summary. The mastery base and the badge gate use the progress
// record read at completion; in.Prior is only used when that read fails.
// A failing step does not stop the ones after it; all failures are
// returned together as a *PartialCompletionError alongside the computed
// outcome.
func (s *Scorer) Complete(ctx context.Context, in Input) (Outcome, error) {
	return s.run(ctx, in, Outcome{}, nil)
}

// Retry re-runs the steps that failed in prev. out is the outcome returned
// with prev; it is recomputed only when the progress step is retried.
func (s *Scorer) Retry(ctx context.Context, in Input, out Outcome, prev *PartialCompletionError) (Outcome, error) {
	if prev == nil || len(prev.Failures) == 0 {
		return out, nil
	}
	return s.run(ctx, in, out, prev)
}

func (s *Scorer) run(ctx context.Context, in Input, out Outcome, prev *PartialCompletionError) (Outcome, error) {
	pending := func(step string) bool { return prev == nil || prev.Failed(step) }
	var failures []StepError

	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			s.logger().Warn("session completion step failed",
				"step", name, "session_id", in.SessionID, "error", err)
			failures = append(failures, StepError{Step: name, Err: err})
		}
	}

	// loadErr is set when the progress record could not be read; the
	// badge gate then has no trustworthy prior.
	var loadErr error
	if pending(StepProgress) {
		loadErr = s.loadPrior(ctx, &in)
		out = Compute(in)
		if loadErr != nil {
			out.BadgeEarned, out.BadgeName = false, ""
		}

		step(StepProgress, func() error {
			if loadErr != nil {
				return loadErr
			}
			err := s.writeProgress(ctx, in, out)
			if in.Prior == nil && errors.Is(err, store.ErrDuplicate) {
				// A record was created after the read.
				if err := s.loadPrior(ctx, &in); err != nil {
					return err
				}
				out = Compute(in)
				err = s.writeProgress(ctx, in, out)
			}
			return err
		})
	}

	if pending(StepSession) {
		step(StepSession, func() error {
			end := s.now().UTC()
			err := s.Sessions.Update(ctx, &store.UserSession{
				ID:                 in.SessionID,
				UserID:             in.User.ID,
				TopicID:            in.Topic.ID,
				EndTime:            &end,
				QuestionsAttempted: in.Total,
				QuestionsCorrect:   in.Correct,
				XPEarned:           out.XPEarned,
				Summary:            out.SessionSummary,
			})
			if err != nil {
				return err
			}
			return s.Users.AddXP(ctx, in.User.ID, out.XPEarned)
		})
	}

	if pending(StepBadge) {
		switch {
		case loadErr != nil && out.Accuracy >= BadgeAccuracyThreshold:
			step(StepBadge, func() error {
				return fmt.Errorf("check badge eligibility: %w", loadErr)
			})
		case out.BadgeEarned:
			step(StepBadge, func() error {
				return s.Badges.Create(ctx, &store.UserBadge{
					UserID:           in.User.ID,
					BadgeName:        out.BadgeName,
					BadgeDescription: BadgeDescription(in.Topic.Name),
				})
			})
		}
	}

	if pending(StepSummary) {
		step(StepSummary, func() error {
			return s.Summaries.Create(ctx, &store.ParentSummary{
				UserID:    in.User.ID,
				SessionID: in.SessionID,
				Content:   out.ParentSummary,
			})
		})
	}

	s.logger().Info("session completed",
		"session_id", in.SessionID,
		"user_id", in.User.ID,
		"topic_id", in.Topic.ID,
		"accuracy", out.Accuracy,
		"mastery", out.MasteryAfter,
		"xp", out.XPEarned,
		"badge", out.BadgeEarned,
		"retry", prev != nil)

	if len(failures) > 0 {
		return out, &PartialCompletionError{Failures: failures}
	}
	return out, nil
}

// loadPrior replaces in.Prior with the stored progress record, nil when
// none exists.
func (s *Scorer) loadPrior(ctx context.Context, in *Input) error {
	p, err := s.Progress.Get(ctx, in.User.ID, in.Topic.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		in.Prior = nil
		return nil
	case err != nil:
		return fmt.Errorf("load progress: %w", err)
	}
	in.Prior = p
	return nil
}

func (s *Scorer) writeProgress(ctx context.Context, in Input, out Outcome) error {
	if in.Prior == nil {
		return s.Progress.Create(ctx, &store.UserProgress{
			UserID:             in.User.ID,
			TopicID:            in.Topic.ID,
			MasteryPercentage:  out.MasteryAfter,
			QuestionsAttempted: in.Total,
			QuestionsCorrect:   in.Correct,
		})
	}
	return s.Progress.Update(ctx, &store.UserProgress{
		UserID:             in.User.ID,
		TopicID:            in.Topic.ID,
		MasteryPercentage:  out.MasteryAfter,
		QuestionsAttempted: in.Prior.QuestionsAttempted + in.Total,
		QuestionsCorrect:   in.Prior.QuestionsCorrect + in.Correct,
	})
}

func (s *Scorer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Scorer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
