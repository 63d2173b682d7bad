package store

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type userRepo struct {
	s *Store
}

func (r *userRepo) Create(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	ib := r.s.builder().Insert(tableUsers).
		Columns("created_at", "username", "name", "grade", "language", "password_hash",
			"weekly_goal_topics", "weekly_goal_minutes", "current_subject",
			"xp_points", "streak", "last_active", "parent_contact").
		Values(u.CreatedAt, u.Username, u.Name, u.Grade, u.Language, u.PasswordHash,
			u.WeeklyGoalTopics, u.WeeklyGoalMinutes, u.CurrentSubject,
			u.XPPoints, u.Streak, u.LastActive, u.ParentContact)
	id, err := insert(ctx, r.s.db, ib)
	if err != nil {
		return classify("create user", err)
	}
	u.ID = id
	return nil
}

func (r *userRepo) Get(ctx context.Context, id int64) (*User, error) {
	var u User
	if err := get(ctx, r.s.db, &u, r.s.selectFrom(tableUsers).Where(byID(id))); err != nil {
		return nil, classify("get user", err)
	}
	return &u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	sel := r.s.selectFrom(tableUsers).Where(entsql.EQ("username", username))
	if err := get(ctx, r.s.db, &u, sel); err != nil {
		return nil, classify("get user by username", err)
	}
	return &u, nil
}

func (r *userRepo) List(ctx context.Context) ([]User, error) {
	var users []User
	if err := list(ctx, r.s.db, &users, r.s.selectFrom(tableUsers).OrderBy("id")); err != nil {
		return nil, classify("list users", err)
	}
	return users, nil
}

func (r *userRepo) AddXP(ctx context.Context, id int64, delta int) error {
	n, err := exec(ctx, r.s.db, r.s.builder().Update(tableUsers).Add("xp_points", delta).Where(byID(id)))
	if err != nil {
		return classify("add xp", err)
	}
	if n == 0 {
		return classify("add xp", errNoRows)
	}
	return nil
}

func (r *userRepo) RecordActivity(ctx context.Context, id int64, streak int, at time.Time) error {
	ub := r.s.builder().Update(tableUsers).
		Set("streak", streak).
		Set("last_active", at.UTC()).
		Where(byID(id))
	n, err := exec(ctx, r.s.db, ub)
	if err != nil {
		return classify("record activity", err)
	}
	if n == 0 {
		return classify("record activity", errNoRows)
	}
	return nil
}
