package difficulty

import (
	"testing"

	"github.com/abhisek/stepwise/internal/store"
)

func questions(levels ...int) []store.Question {
	qs := make([]store.Question, len(levels))
	for i, l := range levels {
		qs[i] = store.Question{ID: int64(i + 1), Difficulty: l}
	}
	return qs
}

func ids(qs []store.Question) []int64 {
	out := make([]int64, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildSessionSet(t *testing.T) {
	tests := []struct {
		name   string
		levels []int
		level  int
		size   int
		want   []int64
	}{
		{"bank smaller than size", []int{1, 1, 2}, 1, 5, []int64{1, 2, 3}},
		{"pads with other levels in source order", []int{2, 1, 3, 1, 2, 2}, 1, 5, []int64{2, 4, 1, 3, 5}},
		{"truncates matching level", []int{1, 1, 1, 1, 1, 1, 1}, 1, 5, []int64{1, 2, 3, 4, 5}},
		{"exactly size at level", []int{2, 1, 2, 2, 2, 2}, 2, 5, []int64{1, 3, 4, 5, 6}},
		{"no matching level", []int{3, 3}, 1, 5, []int64{1, 2}},
		{"empty bank", nil, 1, 5, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(BuildSessionSet(questions(tt.levels...), tt.level, tt.size))
			if !equalIDs(got, tt.want) {
				t.Errorf("BuildSessionSet() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestObserveParity(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name          string
		start         int
		correct       bool
		correctBefore int
		sessionLength int
		want          int
	}{
		{"first correct keeps level", 1, true, 0, 5, 1},
		{"second correct raises", 1, true, 1, 5, 2},
		{"third correct keeps", 2, true, 2, 5, 2},
		{"fourth correct raises", 2, true, 3, 5, 3},
		{"raise clamps at max", 3, true, 3, 5, 3},
		{"incorrect with odd remainder lowers", 2, false, 0, 5, 1},
		{"incorrect with even remainder keeps", 2, false, 1, 5, 2},
		{"lower clamps at min", 1, false, 0, 5, 1},
		{"short session parity", 3, false, 0, 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(cfg)
			a.level = tt.start
			if got := a.Observe(tt.correct, tt.correctBefore, tt.sessionLength); got != tt.want {
				t.Errorf("Observe() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAllCorrectSession(t *testing.T) {
	a := NewAdapter(DefaultConfig())
	var levels []int
	for i := 0; i < 5; i++ {
		levels = append(levels, a.Observe(true, i, 5))
	}
	want := []int{1, 2, 2, 3, 3}
	for i := range want {
		if levels[i] != want[i] {
			t.Fatalf("levels = %v, want %v", levels, want)
		}
	}
}

func TestLevelStaysInBounds(t *testing.T) {
	cfg := DefaultConfig()
	a := NewAdapter(cfg)

	correct := 0
	for i := 0; i < 200; i++ {
		ok := i%7 < 4
		a.Observe(ok, correct, 5)
		if ok {
			correct++
		}
		if l := a.Level(); l < cfg.MinLevel || l > cfg.MaxLevel {
			t.Fatalf("level %d out of bounds after %d answers", l, i+1)
		}
	}
}

func TestSimplify(t *testing.T) {
	a := NewAdapter(DefaultConfig())
	a.level = 3
	if got := a.Simplify(); got != 2 {
		t.Errorf("Simplify() = %d, want 2", got)
	}
	a.Simplify()
	if got := a.Simplify(); got != 1 {
		t.Errorf("Simplify() at min = %d, want 1", got)
	}
}
