package store

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// eventRepo implements EventRepo.
type eventRepo struct {
	s *Store
}

func (r *eventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	ib := r.s.builder().Insert(tableLLMRequests).
		Columns("created_at", "provider", "model", "purpose", "input_tokens", "output_tokens",
			"latency_ms", "success", "error_message", "request_body", "response_body").
		Values(time.Now().UTC(), data.Provider, data.Model, data.Purpose, data.InputTokens, data.OutputTokens,
			data.LatencyMs, data.Success, data.ErrorMessage, data.RequestBody, data.ResponseBody)
	if _, err := insert(ctx, r.s.db, ib); err != nil {
		return classify("save LLM request event", err)
	}
	return nil
}

func (r *eventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error) {
	var preds []*entsql.Predicate
	if opts.Purpose != "" {
		preds = append(preds, entsql.EQ("purpose", opts.Purpose))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("created_at", opts.From.UTC()))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("created_at", opts.To.UTC()))
	}

	sel := r.s.selectFrom(tableLLMRequests)
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}
	sel = orderDesc(sel, "id")
	if opts.Limit > 0 {
		sel = sel.Limit(opts.Limit)
	}

	var out []LLMRequestEvent
	if err := list(ctx, r.s.db, &out, sel); err != nil {
		return nil, classify("query LLM events", err)
	}
	return out, nil
}

func (r *eventRepo) GetLLMEvent(ctx context.Context, id int64) (*LLMRequestEvent, error) {
	var e LLMRequestEvent
	if err := get(ctx, r.s.db, &e, r.s.selectFrom(tableLLMRequests).Where(byID(id))); err != nil {
		return nil, classify("get LLM event", err)
	}
	return &e, nil
}

func (r *eventRepo) LLMUsageByPurpose(ctx context.Context) ([]LLMUsage, error) {
	return r.usageBy(ctx, "purpose")
}

func (r *eventRepo) LLMUsageByModel(ctx context.Context) ([]LLMUsage, error) {
	return r.usageBy(ctx, "model")
}

func (r *eventRepo) usageBy(ctx context.Context, column string) ([]LLMUsage, error) {
	b := r.s.builder()
	sel := b.Select(
		entsql.As(column, "usage_key"),
		entsql.As(entsql.Count("*"), "calls"),
		"COALESCE(SUM(input_tokens), 0) AS input_tokens",
		"COALESCE(SUM(output_tokens), 0) AS output_tokens",
		"CAST(COALESCE(AVG(latency_ms), 0) AS INTEGER) AS avg_latency_ms",
	).
		From(b.Table(tableLLMRequests)).
		GroupBy(column).
		OrderBy(column)

	var out []LLMUsage
	if err := list(ctx, r.s.db, &out, sel); err != nil {
		return nil, classify("aggregate LLM usage", err)
	}
	return out, nil
}
