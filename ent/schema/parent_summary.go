package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ParentSummary is the human-readable report generated for a completed
// session, delivered out of band.
type ParentSummary struct {
	ent.Schema
}

func (ParentSummary) Mixin() []ent.Mixin {
	return []ent.Mixin{TimestampMixin{}}
}

func (ParentSummary) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("user_id"),
		field.Int64("session_id"),
		field.Text("content"),
		field.Bool("sent").
			Default(false),
		field.Time("sent_at").
			Optional().
			Nillable(),
	}
}

func (ParentSummary) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id"),
		index.Fields("sent"),
	}
}
