package leaderboard

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestEntries(t *testing.T) {
	zs := []redis.Z{
		{Score: 120, Member: "3"},
		{Score: 95, Member: "not-an-id"},
		{Score: 95, Member: "1"},
		{Score: 40, Member: "2"},
	}
	names := nameMap([]string{"3", "not-an-id", "1", "2"}, []any{"carol", nil, "alice", "bob"})

	got := entries(zs, names)
	want := []Entry{
		{UserID: 3, Username: "carol", XP: 120, Rank: 1},
		{UserID: 1, Username: "alice", XP: 95, Rank: 2},
		{UserID: 2, Username: "bob", XP: 40, Rank: 3},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestNameMapShortValues(t *testing.T) {
	names := nameMap([]string{"1", "2"}, []any{"alice"})
	if names["1"] != "alice" || names["2"] != "" {
		t.Errorf("names = %v", names)
	}
}

func TestNoop(t *testing.T) {
	var b Board = Noop{}
	ctx := context.Background()
	if err := b.RecordXP(ctx, 1, "alice", 50); err != nil {
		t.Errorf("RecordXP: %v", err)
	}
	top, err := b.Top(ctx, 10)
	if err != nil || len(top) != 0 {
		t.Errorf("Top = %v, %v", top, err)
	}
	e, err := b.Rank(ctx, 1)
	if err != nil || e.UserID != 1 || e.Rank != 0 {
		t.Errorf("Rank = %+v, %v", e, err)
	}
}

func TestTopNonPositive(t *testing.T) {
	r := NewRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	defer r.Close()
	top, err := r.Top(context.Background(), 0)
	if err != nil || top != nil {
		t.Errorf("Top(0) = %v, %v", top, err)
	}
}
