package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Topic is a static catalog entry grouping questions.
type Topic struct {
	ent.Schema
}

func (Topic) Fields() []ent.Field {
	return []ent.Field{
		field.String("name").
			NotEmpty(),
		field.String("subject").
			NotEmpty(),
		field.Int("sort_order").
			Default(0).
			Comment("Display order within the subject"),
		field.Bool("is_locked").
			Default(false),
	}
}

func (Topic) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("subject", "name").Unique(),
	}
}
