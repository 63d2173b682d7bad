package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// UserSession is one learning session. end_time stays null until the
// session is finalized.
type UserSession struct {
	ent.Schema
}

func (UserSession) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("user_id"),
		field.Int64("topic_id"),
		field.Time("start_time").
			Immutable(),
		field.Time("end_time").
			Optional().
			Nillable(),
		field.Int("questions_attempted").
			Default(0),
		field.Int("questions_correct").
			Default(0),
		field.Int("xp_earned").
			Default(0),
		field.Text("summary").
			Default(""),
	}
}

func (UserSession) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id"),
		index.Fields("start_time"),
	}
}
