package store

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type sessionRepo struct {
	s *Store
}

func (r *sessionRepo) Create(ctx context.Context, us *UserSession) error {
	us.StartTime = time.Now().UTC()
	ib := r.s.builder().Insert(tableSessions).
		Columns("user_id", "topic_id", "start_time", "end_time", "questions_attempted", "questions_correct", "xp_earned", "summary").
		Values(us.UserID, us.TopicID, us.StartTime, us.EndTime, us.QuestionsAttempted, us.QuestionsCorrect, us.XPEarned, us.Summary)
	id, err := insert(ctx, r.s.db, ib)
	if err != nil {
		return classify("create session", err)
	}
	us.ID = id
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id int64) (*UserSession, error) {
	var us UserSession
	if err := get(ctx, r.s.db, &us, r.s.selectFrom(tableSessions).Where(byID(id))); err != nil {
		return nil, classify("get session", err)
	}
	return &us, nil
}

func (r *sessionRepo) Update(ctx context.Context, us *UserSession) error {
	ub := r.s.builder().Update(tableSessions).
		Set("end_time", us.EndTime).
		Set("questions_attempted", us.QuestionsAttempted).
		Set("questions_correct", us.QuestionsCorrect).
		Set("xp_earned", us.XPEarned).
		Set("summary", us.Summary).
		Where(byID(us.ID))
	n, err := exec(ctx, r.s.db, ub)
	if err != nil {
		return classify("update session", err)
	}
	if n == 0 {
		return classify("update session", errNoRows)
	}
	return nil
}

func (r *sessionRepo) ListForUser(ctx context.Context, userID int64, limit int) ([]UserSession, error) {
	sel := orderDesc(r.s.selectFrom(tableSessions).Where(entsql.EQ("user_id", userID)), "id")
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	var out []UserSession
	if err := list(ctx, r.s.db, &out, sel); err != nil {
		return nil, classify("list sessions", err)
	}
	return out, nil
}
