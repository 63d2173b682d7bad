package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil db handle")
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenConfigRejectsUnknownDriver(t *testing.T) {
	_, err := OpenConfig(context.Background(), Config{Driver: "oracle", DSN: "x"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so we skip journal_mode here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)

	for _, e := range entities {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", e.table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", e.table, err)
		}
	}
}

func TestTablesFromSchema(t *testing.T) {
	tables, err := Tables()
	if err != nil {
		t.Fatalf("tables: %v", err)
	}
	if len(tables) != len(entities) {
		t.Fatalf("got %d tables, want %d", len(tables), len(entities))
	}

	for _, tbl := range tables {
		if tbl.Name != tableProgress {
			continue
		}
		var unique bool
		for _, idx := range tbl.Indexes {
			if idx.Unique && len(idx.Columns) == 2 {
				unique = true
			}
		}
		if !unique {
			t.Error("user_progresses should have a unique (user_id, topic_id) index")
		}
	}
}

func createUser(t *testing.T, s *Store, username string) *User {
	t.Helper()
	u := &User{
		Username:          username,
		Name:              "Test",
		Grade:             7,
		Language:          "English",
		PasswordHash:      "hash",
		WeeklyGoalTopics:  3,
		WeeklyGoalMinutes: 15,
		CurrentSubject:    "Mathematics",
	}
	if err := s.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestUserCreateAndDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u := createUser(t, s, "ada")
	if u.ID == 0 {
		t.Fatal("expected ID to be assigned")
	}

	got, err := s.Users().GetByUsername(ctx, "ada")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if got.ID != u.ID || got.Grade != 7 || got.LastActive != nil {
		t.Errorf("got %+v", got)
	}

	dup := &User{Username: "ada", Name: "Other", Grade: 8, PasswordHash: "h"}
	if err := s.Users().Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate username: err = %v, want ErrDuplicate", err)
	}

	if _, err := s.Users().Get(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing user: err = %v, want ErrNotFound", err)
	}
}

func TestUserXPAndActivity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "bo")

	if err := s.Users().AddXP(ctx, u.ID, 30); err != nil {
		t.Fatalf("add xp: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	if err := s.Users().RecordActivity(ctx, u.ID, 4, now); err != nil {
		t.Fatalf("record activity: %v", err)
	}

	got, err := s.Users().Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.XPPoints != 30 {
		t.Errorf("xp = %d, want 30", got.XPPoints)
	}
	if got.Streak != 4 {
		t.Errorf("streak = %d, want 4", got.Streak)
	}
	if got.LastActive == nil || !got.LastActive.Equal(now) {
		t.Errorf("lastActive = %v, want %v", got.LastActive, now)
	}

	if err := s.Users().AddXP(ctx, 999, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("add xp to missing user: err = %v", err)
	}
}

func TestCatalogQuestions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	cat := s.Catalog()

	topic := &Topic{Name: "Fractions", Subject: "Mathematics", Order: 1}
	if err := cat.CreateTopic(ctx, topic); err != nil {
		t.Fatalf("create topic: %v", err)
	}

	for i, d := range []int{1, 2, 1} {
		q := &Question{
			TopicID:       topic.ID,
			Text:          fmt.Sprintf("q%d", i),
			Options:       Options{"a", "b", "c"},
			CorrectOption: 1,
			Difficulty:    d,
		}
		if err := cat.CreateQuestion(ctx, q); err != nil {
			t.Fatalf("create question %d: %v", i, err)
		}
	}

	all, err := cat.QuestionsForTopic(ctx, topic.ID)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d questions, want 3", len(all))
	}
	for i, q := range all {
		if q.Text != fmt.Sprintf("q%d", i) {
			t.Errorf("question %d text = %q, want stable id order", i, q.Text)
		}
		if len(q.Options) != 3 || q.Options[1] != "b" {
			t.Errorf("options round trip: %v", q.Options)
		}
	}

	easy, err := cat.QuestionsForTopicAtDifficulty(ctx, topic.ID, 1)
	if err != nil {
		t.Fatalf("questions at difficulty: %v", err)
	}
	if len(easy) != 2 {
		t.Errorf("got %d difficulty-1 questions, want 2", len(easy))
	}

	none, err := cat.QuestionsForTopic(ctx, topic.ID+100)
	if err != nil {
		t.Fatalf("questions for unknown topic: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("unknown topic should return an empty, non-nil slice, got %v", none)
	}
}

func TestCreateQuestionValidates(t *testing.T) {
	s := openTestStore(t)
	q := &Question{TopicID: 1, Text: "x", Options: Options{"a", "b"}, CorrectOption: 2, Difficulty: 1}
	if err := s.Catalog().CreateQuestion(context.Background(), q); err == nil {
		t.Fatal("expected validation error for out-of-range correct option")
	}
}

func TestProgressCreateThenGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Progress()

	if _, err := repo.Get(ctx, 1, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get before create: err = %v, want ErrNotFound", err)
	}

	p := &UserProgress{UserID: 1, TopicID: 1, MasteryPercentage: 67}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Get(ctx, 1, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MasteryPercentage != 67 {
		t.Errorf("mastery = %d, want 67", got.MasteryPercentage)
	}
	if got.LastAttempted.IsZero() {
		t.Error("lastAttempted should be stamped")
	}

	if err := repo.Create(ctx, &UserProgress{UserID: 1, TopicID: 1}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second create: err = %v, want ErrDuplicate", err)
	}
}

func TestProgressUpdateClamps(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Progress()

	if err := repo.Create(ctx, &UserProgress{UserID: 2, TopicID: 3, MasteryPercentage: 90}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Update(ctx, &UserProgress{UserID: 2, TopicID: 3, MasteryPercentage: 140, QuestionsAttempted: 5, QuestionsCorrect: 4}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.Get(ctx, 2, 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MasteryPercentage != 100 {
		t.Errorf("mastery = %d, want 100", got.MasteryPercentage)
	}
	if got.QuestionsAttempted != 5 || got.QuestionsCorrect != 4 {
		t.Errorf("counters = %d/%d, want 5/4", got.QuestionsCorrect, got.QuestionsAttempted)
	}

	if err := repo.Update(ctx, &UserProgress{UserID: 9, TopicID: 9}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: err = %v, want ErrNotFound", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Sessions()

	us := &UserSession{UserID: 1, TopicID: 2}
	if err := repo.Create(ctx, us); err != nil {
		t.Fatalf("create: %v", err)
	}
	if us.StartTime.IsZero() {
		t.Error("startTime should be stamped")
	}

	end := time.Now().UTC()
	us.EndTime = &end
	us.QuestionsAttempted = 5
	us.QuestionsCorrect = 4
	us.XPEarned = 30
	us.Summary = "Completed 5 questions with 80% accuracy."
	if err := repo.Update(ctx, us); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.Get(ctx, us.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EndTime == nil {
		t.Fatal("endTime should be set")
	}
	if got.XPEarned != 30 || got.Summary != us.Summary {
		t.Errorf("got %+v", got)
	}

	if err := repo.Update(ctx, &UserSession{ID: 404}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: err = %v, want ErrNotFound", err)
	}

	list, err := repo.ListForUser(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d sessions, want 1", len(list))
	}
}

func TestBadgeAwardsXP(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "cy")

	b := &UserBadge{UserID: u.ID, BadgeName: "Fractions Explorer", BadgeDescription: "Completed Fractions with at least 70% accuracy"}
	if err := s.Badges().Create(ctx, b); err != nil {
		t.Fatalf("create badge: %v", err)
	}
	if b.ID == 0 {
		t.Error("expected badge ID")
	}

	got, err := s.Users().Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.XPPoints != BadgeXPAward {
		t.Errorf("xp = %d, want %d", got.XPPoints, BadgeXPAward)
	}

	// Badges for unknown users roll back.
	if err := s.Badges().Create(ctx, &UserBadge{UserID: 999, BadgeName: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("badge for missing user: err = %v, want ErrNotFound", err)
	}
	badges, err := s.Badges().ListForUser(ctx, 999)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(badges) != 0 {
		t.Errorf("rolled back badge was persisted")
	}
}

func TestSummaryPendingAndMarkSent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Summaries()

	for i := 0; i < 2; i++ {
		if err := repo.Create(ctx, &ParentSummary{UserID: 1, SessionID: int64(i + 1), Content: "c"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	pending, err := repo.Pending(ctx, 0)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending, want 2", len(pending))
	}

	if err := repo.MarkSent(ctx, pending[0].ID, time.Now()); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	pending, err = repo.Pending(ctx, 0)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("got %d pending after mark, want 1", len(pending))
	}

	all, err := repo.ListForUser(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var sent int
	for _, ps := range all {
		if ps.Sent {
			sent++
			if ps.SentAt == nil {
				t.Error("sent summary without sentAt")
			}
		}
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
}

func TestLLMEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Events()

	events := []LLMRequestEventData{
		{Provider: "anthropic", Model: "claude-sonnet-4-20250514", Purpose: "hint", InputTokens: 100, OutputTokens: 20, LatencyMs: 300, Success: true},
		{Provider: "anthropic", Model: "claude-sonnet-4-20250514", Purpose: "hint", InputTokens: 50, OutputTokens: 10, LatencyMs: 100, Success: true},
		{Provider: "openai", Model: "gpt-4o-mini", Purpose: "summary", Success: false, ErrorMessage: "boom"},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Purpose != "summary" {
		t.Errorf("newest first: got purpose %q", got[0].Purpose)
	}

	hints, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "hint"})
	if err != nil {
		t.Fatalf("query by purpose: %v", err)
	}
	if len(hints) != 2 {
		t.Errorf("got %d hint events, want 2", len(hints))
	}

	e, err := repo.GetLLMEvent(ctx, got[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.ErrorMessage != "boom" {
		t.Errorf("errorMessage = %q", e.ErrorMessage)
	}

	usage, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("got %d purposes, want 2", len(usage))
	}
	if usage[0].Key != "hint" || usage[0].Calls != 2 || usage[0].InputTokens != 150 || usage[0].AvgLatencyMs != 200 {
		t.Errorf("hint usage = %+v", usage[0])
	}
}
