// Package delivery sends parent summaries and runs the periodic jobs of
// the server.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhisek/stepwise/internal/store"
)

// DefaultBatchSize bounds the summaries sent per delivery run.
const DefaultBatchSize = 100

// Result counts the outcome of one delivery run.
type Result struct {
	Sent   int
	Failed int
}

// Deliverer sends unsent parent summaries.
type Deliverer struct {
	Summaries store.SummaryRepo
	Users     store.UserRepo

	// Primary is tried first when set; Fallback serves users Primary
	// cannot address.
	Primary  Notifier
	Fallback Notifier

	BatchSize int
	Now       func() time.Time
	Logger    *slog.Logger
}

// New returns a Deliverer that sends through primary, falling back to the
// log. primary may be nil.
func New(st *store.Store, primary Notifier, logger *slog.Logger) *Deliverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deliverer{
		Summaries: st.Summaries(),
		Users:     st.Users(),
		Primary:   primary,
		Fallback:  LogNotifier{Logger: logger},
		BatchSize: DefaultBatchSize,
		Now:       time.Now,
		Logger:    logger,
	}
}

// DeliverPending sends every pending summary and marks it sent. A failed
// summary stays pending and does not stop the rest; the failures are
// joined into the returned error.
func (d *Deliverer) DeliverPending(ctx context.Context) (Result, error) {
	var res Result
	pending, err := d.Summaries.Pending(ctx, d.BatchSize)
	if err != nil {
		return res, fmt.Errorf("load pending summaries: %w", err)
	}

	var errs []error
	for _, s := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := d.deliver(ctx, s); err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("summary %d: %w", s.ID, err))
			d.Logger.Warn("deliver parent summary", "summary_id", s.ID, "error", err)
			continue
		}
		res.Sent++
	}

	if res.Sent > 0 || res.Failed > 0 {
		d.Logger.Info("parent summaries delivered", "sent", res.Sent, "failed", res.Failed)
	}
	return res, errors.Join(errs...)
}

func (d *Deliverer) deliver(ctx context.Context, s store.ParentSummary) error {
	u, err := d.Users.Get(ctx, s.UserID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", s.UserID, err)
	}

	err = ErrNoRecipient
	if d.Primary != nil {
		err = d.Primary.Notify(ctx, u, s)
	}
	if errors.Is(err, ErrNoRecipient) && d.Fallback != nil {
		err = d.Fallback.Notify(ctx, u, s)
	}
	if err != nil {
		return err
	}

	if err := d.Summaries.MarkSent(ctx, s.ID, d.Now()); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}
