package store

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	sqlschema "entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/abhisek/stepwise/ent/schema"
)

// Table names, one per ent schema.
const (
	tableUsers       = "users"
	tableTopics      = "topics"
	tableQuestions   = "questions"
	tableProgress    = "user_progresses"
	tableSessions    = "user_sessions"
	tableBadges      = "user_badges"
	tableSummaries   = "parent_summaries"
	tableLLMRequests = "llm_request_events"
)

var entities = []struct {
	table  string
	schema ent.Interface
}{
	{tableUsers, schema.User{}},
	{tableTopics, schema.Topic{}},
	{tableQuestions, schema.Question{}},
	{tableProgress, schema.UserProgress{}},
	{tableSessions, schema.UserSession{}},
	{tableBadges, schema.UserBadge{}},
	{tableSummaries, schema.ParentSummary{}},
	{tableLLMRequests, schema.LLMRequestEvent{}},
}

// Tables builds the migration tables from the ent schema descriptors.
// Every table gets an auto-increment int64 "id" primary key.
func Tables() ([]*sqlschema.Table, error) {
	tables := make([]*sqlschema.Table, 0, len(entities))
	for _, e := range entities {
		t, err := tableFor(e.table, e.schema)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", e.table, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func tableFor(name string, s ent.Interface) (*sqlschema.Table, error) {
	t := sqlschema.NewTable(name)
	t.AddPrimary(&sqlschema.Column{Name: "id", Type: field.TypeInt64, Increment: true})

	var (
		fields  []ent.Field
		indexes []ent.Index
	)
	for _, m := range s.Mixin() {
		fields = append(fields, m.Fields()...)
		indexes = append(indexes, m.Indexes()...)
	}
	fields = append(fields, s.Fields()...)
	indexes = append(indexes, s.Indexes()...)

	for _, f := range fields {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("field %s: %w", d.Name, d.Err)
		}
		c := &sqlschema.Column{
			Name:     d.Name,
			Type:     d.Info.Type,
			Size:     int64(d.Size),
			Unique:   d.Unique,
			Nullable: d.Optional || d.Nillable,
		}
		if isLiteral(d.Default) {
			c.Default = d.Default
		}
		t.AddColumn(c)
	}

	for _, ix := range indexes {
		d := ix.Descriptor()
		cols := make([]*sqlschema.Column, 0, len(d.Fields))
		for _, fn := range d.Fields {
			c, ok := t.Column(fn)
			if !ok {
				return nil, fmt.Errorf("index on unknown column %q", fn)
			}
			cols = append(cols, c)
		}
		t.Indexes = append(t.Indexes, &sqlschema.Index{
			Name:    name + "_" + strings.Join(d.Fields, "_"),
			Unique:  d.Unique,
			Columns: cols,
		})
	}
	return t, nil
}

// isLiteral reports whether a field default can be expressed as a column
// default. Function defaults (time.Now) are applied by the repositories.
func isLiteral(v any) bool {
	switch v.(type) {
	case string, bool, int, int64, float64:
		return true
	}
	return false
}

func migrate(ctx context.Context, drv dialect.Driver) error {
	tables, err := Tables()
	if err != nil {
		return err
	}
	m, err := sqlschema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("new migrate: %w", err)
	}
	return m.Create(ctx, tables...)
}
