package store

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type progressRepo struct {
	s *Store
}

func pairPredicate(userID, topicID int64) *entsql.Predicate {
	return entsql.And(entsql.EQ("user_id", userID), entsql.EQ("topic_id", topicID))
}

func (r *progressRepo) Get(ctx context.Context, userID, topicID int64) (*UserProgress, error) {
	var p UserProgress
	if err := get(ctx, r.s.db, &p, r.s.selectFrom(tableProgress).Where(pairPredicate(userID, topicID))); err != nil {
		return nil, classify("get progress", err)
	}
	return &p, nil
}

func (r *progressRepo) Create(ctx context.Context, p *UserProgress) error {
	p.MasteryPercentage = clampMastery(p.MasteryPercentage)
	p.LastAttempted = time.Now().UTC()
	ib := r.s.builder().Insert(tableProgress).
		Columns("user_id", "topic_id", "mastery_percentage", "questions_attempted", "questions_correct", "last_attempted").
		Values(p.UserID, p.TopicID, p.MasteryPercentage, p.QuestionsAttempted, p.QuestionsCorrect, p.LastAttempted)
	id, err := insert(ctx, r.s.db, ib)
	if err != nil {
		return classify("create progress", err)
	}
	p.ID = id
	return nil
}

func (r *progressRepo) Update(ctx context.Context, p *UserProgress) error {
	p.MasteryPercentage = clampMastery(p.MasteryPercentage)
	p.LastAttempted = time.Now().UTC()
	ub := r.s.builder().Update(tableProgress).
		Set("mastery_percentage", p.MasteryPercentage).
		Set("questions_attempted", p.QuestionsAttempted).
		Set("questions_correct", p.QuestionsCorrect).
		Set("last_attempted", p.LastAttempted).
		Where(pairPredicate(p.UserID, p.TopicID))
	n, err := exec(ctx, r.s.db, ub)
	if err != nil {
		return classify("update progress", err)
	}
	if n == 0 {
		return classify("update progress", errNoRows)
	}
	return nil
}

func (r *progressRepo) ListForUser(ctx context.Context, userID int64) ([]UserProgress, error) {
	var out []UserProgress
	sel := r.s.selectFrom(tableProgress).Where(entsql.EQ("user_id", userID)).OrderBy("topic_id")
	if err := list(ctx, r.s.db, &out, sel); err != nil {
		return nil, classify("list progress", err)
	}
	return out, nil
}

func clampMastery(m int) int {
	return min(max(m, 0), 100)
}
