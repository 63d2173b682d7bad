package store

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type summaryRepo struct {
	s *Store
}

func (r *summaryRepo) Create(ctx context.Context, ps *ParentSummary) error {
	ps.CreatedAt = time.Now().UTC()
	ib := r.s.builder().Insert(tableSummaries).
		Columns("created_at", "user_id", "session_id", "content", "sent", "sent_at").
		Values(ps.CreatedAt, ps.UserID, ps.SessionID, ps.Content, ps.Sent, ps.SentAt)
	id, err := insert(ctx, r.s.db, ib)
	if err != nil {
		return classify("create parent summary", err)
	}
	ps.ID = id
	return nil
}

func (r *summaryRepo) Pending(ctx context.Context, limit int) ([]ParentSummary, error) {
	sel := r.s.selectFrom(tableSummaries).Where(entsql.EQ("sent", false)).OrderBy("id")
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	var out []ParentSummary
	if err := list(ctx, r.s.db, &out, sel); err != nil {
		return nil, classify("list pending summaries", err)
	}
	return out, nil
}

func (r *summaryRepo) MarkSent(ctx context.Context, id int64, at time.Time) error {
	ub := r.s.builder().Update(tableSummaries).
		Set("sent", true).
		Set("sent_at", at.UTC()).
		Where(byID(id))
	n, err := exec(ctx, r.s.db, ub)
	if err != nil {
		return classify("mark summary sent", err)
	}
	if n == 0 {
		return classify("mark summary sent", errNoRows)
	}
	return nil
}

func (r *summaryRepo) ListForUser(ctx context.Context, userID int64) ([]ParentSummary, error) {
	var out []ParentSummary
	sel := orderDesc(r.s.selectFrom(tableSummaries).Where(entsql.EQ("user_id", userID)), "id")
	if err := list(ctx, r.s.db, &out, sel); err != nil {
		return nil, classify("list summaries", err)
	}
	return out, nil
}
