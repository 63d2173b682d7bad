package store

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"
)

// Queries are built with ent's dialect-aware builders so the same code
// emits "?" placeholders for SQLite and "$n" for Postgres, then executed
// through sqlx for struct scanning.

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

func (s *Store) selectFrom(table string) *entsql.Selector {
	b := s.builder()
	return b.Select().From(b.Table(table))
}

func byID(id int64) *entsql.Predicate {
	return entsql.EQ("id", id)
}

func orderDesc(sel *entsql.Selector, column string) *entsql.Selector {
	return sel.OrderExprFunc(func(b *entsql.Builder) {
		b.Ident(column).WriteString(" DESC")
	})
}

func get(ctx context.Context, q sqlx.QueryerContext, dest any, b entsql.Querier) error {
	query, args := b.Query()
	return sqlx.GetContext(ctx, q, dest, query, args...)
}

func list(ctx context.Context, q sqlx.QueryerContext, dest any, b entsql.Querier) error {
	query, args := b.Query()
	return sqlx.SelectContext(ctx, q, dest, query, args...)
}

// exec runs b and returns the number of affected rows.
func exec(ctx context.Context, e sqlx.ExecerContext, b entsql.Querier) (int64, error) {
	query, args := b.Query()
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// insert runs ib and returns the new row id.
func insert(ctx context.Context, q sqlx.QueryerContext, ib *entsql.InsertBuilder) (int64, error) {
	query, args := ib.Returning("id").Query()
	var id int64
	if err := q.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
