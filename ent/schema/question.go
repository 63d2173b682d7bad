package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Question is an immutable multiple-choice item belonging to a topic.
type Question struct {
	ent.Schema
}

func (Question) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("topic_id"),
		field.Text("question_text").
			NotEmpty(),
		field.JSON("options", []string{}).
			Comment("Ordered answer options, addressed by index"),
		field.Int("correct_option").
			Comment("0-based index into options"),
		field.Int("difficulty").
			Default(1),
		field.Text("hint").
			Default(""),
	}
}

func (Question) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("topic_id", "difficulty"),
	}
}
