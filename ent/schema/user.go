package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// User is a learner account. XP and streak are denormalized totals.
type User struct {
	ent.Schema
}

func (User) Mixin() []ent.Mixin {
	return []ent.Mixin{TimestampMixin{}}
}

func (User) Fields() []ent.Field {
	return []ent.Field{
		field.String("username").
			Unique().
			NotEmpty(),
		field.String("name").
			NotEmpty(),
		field.Int("grade"),
		field.String("language").
			Default("English"),
		field.String("password_hash").
			Sensitive().
			Comment("bcrypt hash"),
		field.Int("weekly_goal_topics").
			Default(3),
		field.Int("weekly_goal_minutes").
			Default(15),
		field.String("current_subject").
			Default("Mathematics"),
		field.Int("xp_points").
			Default(0),
		field.Int("streak").
			Default(0).
			Comment("Consecutive login days"),
		field.Time("last_active").
			Optional().
			Nillable(),
		field.String("parent_contact").
			Default("").
			Comment("Delivery address for parent summaries (Telegram chat id)"),
	}
}
