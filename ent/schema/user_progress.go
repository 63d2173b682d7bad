package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// UserProgress is the per-user, per-topic mastery record.
type UserProgress struct {
	ent.Schema
}

func (UserProgress) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("user_id"),
		field.Int64("topic_id"),
		field.Int("mastery_percentage").
			Default(0).
			Comment("0..100"),
		field.Int("questions_attempted").
			Default(0),
		field.Int("questions_correct").
			Default(0),
		field.Time("last_attempted"),
	}
}

func (UserProgress) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "topic_id").Unique(),
	}
}
