// Package hints supplies question hints, generating them with a language
// model when the catalog has none.
package hints

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/abhisek/stepwise/internal/llm"
	"github.com/abhisek/stepwise/internal/store"
)

const systemPrompt = `You are a patient maths tutor for school students in grades 6 to 12.
Write one short hint for the question. Point the student at the method or the
first step. Never state the answer, never name an option as correct, and keep
the hint under 30 words.`

// hintOutput is the structured reply of the model.
type hintOutput struct {
	Hint string `json:"hint" jsonschema:"description=One-sentence hint that does not reveal the answer"`
}

var hintSchema = mustSchema()

func mustSchema() *llm.Schema {
	s, err := llm.ReflectSchema("question-hint", "A hint for a multiple-choice question", hintOutput{})
	if err != nil {
		panic(fmt.Sprintf("reflect hint schema: %v", err))
	}
	return s
}

// Service returns hints for questions. It is safe for concurrent use.
type Service struct {
	provider llm.Provider
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[int64]string
}

// New returns a Service. provider may be nil, in which case only stored
// hints are served.
func New(provider llm.Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: provider, logger: logger, cache: make(map[int64]string)}
}

// Hint returns the stored hint of q, or a generated one when q has none
// and a provider is configured. Generated hints are cached per question.
// It returns "" when no hint is available.
func (s *Service) Hint(ctx context.Context, q store.Question) (string, error) {
	if q.Hint != "" {
		return q.Hint, nil
	}
	if s.provider == nil {
		return "", nil
	}

	s.mu.Lock()
	h, ok := s.cache[q.ID]
	s.mu.Unlock()
	if ok {
		return h, nil
	}

	h, err := s.generate(ctx, q)
	if err != nil {
		return "", fmt.Errorf("generate hint for question %d: %w", q.ID, err)
	}

	s.mu.Lock()
	s.cache[q.ID] = h
	s.mu.Unlock()
	s.logger.Debug("generated hint", "question_id", q.ID)
	return h, nil
}

func (s *Service) generate(ctx context.Context, q store.Question) (string, error) {
	resp, err := s.provider.Generate(llm.WithPurpose(ctx, llm.PurposeHint), llm.Request{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: userPrompt(q)}},
		Schema:      hintSchema,
		MaxTokens:   256,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}

	var out hintOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", &llm.InvalidResponseError{Content: resp.Content, Err: err}
	}
	return strings.TrimSpace(out.Hint), nil
}

func userPrompt(q store.Question) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\nOptions:\n", q.Text)
	for i, o := range q.Options {
		fmt.Fprintf(&b, "%c) %s\n", 'A'+i, o)
	}
	return b.String()
}
