package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

type catalogRepo struct {
	s *Store
}

func (r *catalogRepo) CreateTopic(ctx context.Context, t *Topic) error {
	ib := r.s.builder().Insert(tableTopics).
		Columns("name", "subject", "sort_order", "is_locked").
		Values(t.Name, t.Subject, t.Order, t.IsLocked)
	id, err := insert(ctx, r.s.db, ib)
	if err != nil {
		return classify("create topic", err)
	}
	t.ID = id
	return nil
}

func (r *catalogRepo) Topic(ctx context.Context, id int64) (*Topic, error) {
	var t Topic
	if err := get(ctx, r.s.db, &t, r.s.selectFrom(tableTopics).Where(byID(id))); err != nil {
		return nil, classify(fmt.Sprintf("get topic %d", id), err)
	}
	return &t, nil
}

func (r *catalogRepo) TopicByName(ctx context.Context, subject, name string) (*Topic, error) {
	var t Topic
	sel := r.s.selectFrom(tableTopics).
		Where(entsql.And(entsql.EQ("subject", subject), entsql.EQ("name", name)))
	if err := get(ctx, r.s.db, &t, sel); err != nil {
		return nil, classify("get topic by name", err)
	}
	return &t, nil
}

func (r *catalogRepo) Topics(ctx context.Context, subject string) ([]Topic, error) {
	sel := r.s.selectFrom(tableTopics)
	if subject != "" {
		sel = sel.Where(entsql.EQ("subject", subject))
	}
	sel = sel.OrderBy("sort_order", "id")

	var topics []Topic
	if err := list(ctx, r.s.db, &topics, sel); err != nil {
		return nil, classify("list topics", err)
	}
	return topics, nil
}

func (r *catalogRepo) CreateQuestion(ctx context.Context, q *Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	ib := r.s.builder().Insert(tableQuestions).
		Columns("topic_id", "question_text", "options", "correct_option", "difficulty", "hint").
		Values(q.TopicID, q.Text, q.Options, q.CorrectOption, q.Difficulty, q.Hint)
	id, err := insert(ctx, r.s.db, ib)
	if err != nil {
		return classify("create question", err)
	}
	q.ID = id
	return nil
}

func (r *catalogRepo) QuestionsForTopic(ctx context.Context, topicID int64) ([]Question, error) {
	return r.questions(ctx, entsql.EQ("topic_id", topicID))
}

func (r *catalogRepo) QuestionsForTopicAtDifficulty(ctx context.Context, topicID int64, difficulty int) ([]Question, error) {
	return r.questions(ctx, entsql.And(
		entsql.EQ("topic_id", topicID),
		entsql.EQ("difficulty", difficulty),
	))
}

func (r *catalogRepo) questions(ctx context.Context, p *entsql.Predicate) ([]Question, error) {
	questions := []Question{}
	sel := r.s.selectFrom(tableQuestions).Where(p).OrderBy("id")
	if err := list(ctx, r.s.db, &questions, sel); err != nil {
		return nil, classify("list questions", err)
	}
	return questions, nil
}
