package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type badgeRepo struct {
	s *Store
}

func (r *badgeRepo) Create(ctx context.Context, b *UserBadge) error {
	if b.DateEarned.IsZero() {
		b.DateEarned = time.Now().UTC()
	}

	tx, err := r.s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("begin badge tx", err)
	}
	defer tx.Rollback()

	ib := r.s.builder().Insert(tableBadges).
		Columns("user_id", "badge_name", "badge_description", "date_earned").
		Values(b.UserID, b.BadgeName, b.BadgeDescription, b.DateEarned)
	id, err := insert(ctx, tx, ib)
	if err != nil {
		return classify("create badge", err)
	}

	n, err := exec(ctx, tx, r.s.builder().Update(tableUsers).Add("xp_points", BadgeXPAward).Where(byID(b.UserID)))
	if err != nil {
		return classify("award badge xp", err)
	}
	if n == 0 {
		return fmt.Errorf("award badge xp: user %d: %w", b.UserID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return classify("commit badge tx", err)
	}
	b.ID = id
	return nil
}

func (r *badgeRepo) ListForUser(ctx context.Context, userID int64) ([]UserBadge, error) {
	var out []UserBadge
	sel := r.s.selectFrom(tableBadges).Where(entsql.EQ("user_id", userID)).OrderBy("id")
	if err := list(ctx, r.s.db, &out, sel); err != nil {
		return nil, classify("list badges", err)
	}
	return out, nil
}
