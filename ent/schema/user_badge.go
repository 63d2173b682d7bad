package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// UserBadge is an append-only achievement record.
type UserBadge struct {
	ent.Schema
}

func (UserBadge) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("user_id"),
		field.String("badge_name").
			NotEmpty(),
		field.String("badge_description").
			Default(""),
		field.Time("date_earned"),
	}
}

func (UserBadge) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id"),
	}
}
