package selector

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"quiz-lobby-service/internal/domain"
)

func TestWeightedExample(t *testing.T) {
	// general=5, scene=2, N=4, ratio=0.25, min=1 -> 1 scene + 3 general.
	pools := domain.QuestionPools{
		domain.CategoryGeneral: makePool("g", 5),
		domain.CategoryScene:   makePool("s", 2),
	}
	opts := Options{
		Weights: []CategoryWeight{{Category: domain.CategoryScene, Ratio: 0.25, Minimum: 1}},
	}

	got := Select(pools, 4, opts, rand.New(rand.NewSource(1)))
	if len(got) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(got))
	}
	if scenes := countPrefix(got, "s"); scenes != 1 {
		t.Fatalf("expected exactly 1 scene question, got %d", scenes)
	}
	if general := countPrefix(got, "g"); general != 3 {
		t.Fatalf("expected exactly 3 general questions, got %d", general)
	}
}

func TestMinimumFloorClampedToPool(t *testing.T) {
	pools := domain.QuestionPools{
		domain.CategoryGeneral: makePool("g", 30),
		domain.CategoryScene:   makePool("s", 2),
	}
	opts := Options{
		Weights: []CategoryWeight{{Category: domain.CategoryScene, Ratio: 0.25, Minimum: 3}},
	}

	// min floor is 3 but the pool only holds 2.
	got := Select(pools, 20, opts, rand.New(rand.NewSource(7)))
	if len(got) != 20 {
		t.Fatalf("expected 20 questions, got %d", len(got))
	}
	if scenes := countPrefix(got, "s"); scenes != 2 {
		t.Fatalf("expected scene count clamped to pool size 2, got %d", scenes)
	}
}

func TestBudgetLimitsLowerPriorityCategories(t *testing.T) {
	pools := domain.QuestionPools{
		domain.CategoryScene:  makePool("s", 10),
		domain.CategoryPerson: makePool("p", 10),
	}
	opts := Options{
		Weights: []CategoryWeight{
			{Category: domain.CategoryScene, Ratio: 1.0, Minimum: 0},
			{Category: domain.CategoryPerson, Ratio: 1.0, Minimum: 0},
		},
	}

	got := Select(pools, 6, opts, rand.New(rand.NewSource(3)))
	if len(got) != 6 {
		t.Fatalf("expected 6 questions, got %d", len(got))
	}
	// Scene exhausts the budget first; person gets nothing.
	if persons := countPrefix(got, "p"); persons != 0 {
		t.Fatalf("expected 0 person questions after budget exhausted, got %d", persons)
	}
}

func TestEmptyPoolsYieldEmptyList(t *testing.T) {
	pools := domain.QuestionPools{
		domain.CategoryGeneral: nil,
		domain.CategoryScene:   {},
		domain.CategoryPerson:  {},
	}
	if got := Select(pools, 20, Options{}, rand.New(rand.NewSource(1))); len(got) != 0 {
		t.Fatalf("expected empty selection, got %d", len(got))
	}
}

func TestUniquenessAcrossDuplicatePools(t *testing.T) {
	dup := domain.Question{Text: "shared?", Answer: "yes"}
	pools := domain.QuestionPools{
		domain.CategoryGeneral: []domain.Question{dup, dup, {Text: "other", Answer: "x"}},
	}

	for seed := int64(0); seed < 20; seed++ {
		got := Select(pools, 3, Options{}, rand.New(rand.NewSource(seed)))
		seen := make(map[string]bool)
		for _, q := range got {
			if seen[q.Key()] {
				t.Fatalf("seed %d: duplicate question %q/%q", seed, q.Text, q.Answer)
			}
			seen[q.Key()] = true
		}
		if len(got) != 2 {
			t.Fatalf("seed %d: expected 2 unique questions, got %d", seed, len(got))
		}
	}
}

func TestNeverReturnsMoreThanTarget(t *testing.T) {
	pools := domain.QuestionPools{
		domain.CategoryGeneral: makePool("g", 50),
		domain.CategoryScene:   makePool("s", 50),
	}
	opts := Options{
		Weights: []CategoryWeight{{Category: domain.CategoryScene, Ratio: 0.25, Minimum: 3}},
	}
	for _, n := range []int{1, 5, 20, 40} {
		got := Select(pools, n, opts, rand.New(rand.NewSource(int64(n))))
		if len(got) > n {
			t.Fatalf("n=%d: selection exceeded target: %d", n, len(got))
		}
	}
}

func TestMustIncludeSatisfiedFirst(t *testing.T) {
	pool := makePool("g", 10)
	pool = append(pool, domain.Question{Text: "flagged one", Answer: "a"}, domain.Question{Text: "flagged two", Answer: "b"})
	pools := domain.QuestionPools{domain.CategoryGeneral: pool}
	opts := Options{
		MustInclude: &MustIncludeRule{
			Min:     2,
			Matches: func(q domain.Question) bool { return strings.HasPrefix(q.Text, "flagged") },
		},
	}

	got := Select(pools, 5, opts, rand.New(rand.NewSource(11)))
	flagged := 0
	for _, q := range got {
		if strings.HasPrefix(q.Text, "flagged") {
			flagged++
		}
	}
	if flagged < 2 {
		t.Fatalf("expected at least 2 flagged questions, got %d", flagged)
	}
}

func TestSentinelSplicedWithoutTruncation(t *testing.T) {
	pools := domain.QuestionPools{domain.CategoryGeneral: makePool("g", 10)}
	sentinel := domain.Question{Text: "sentinel", Answer: "fixed"}
	opts := Options{Sentinel: &SentinelRule{Position: 3, Question: sentinel}}

	got := Select(pools, 5, opts, rand.New(rand.NewSource(9)))
	if len(got) != 6 {
		t.Fatalf("expected sentinel to grow the list to 6, got %d", len(got))
	}
	if got[3] != sentinel {
		t.Fatalf("expected sentinel at index 3, got %+v", got[3])
	}
}

func TestSentinelPositionClampedToEnd(t *testing.T) {
	pools := domain.QuestionPools{domain.CategoryGeneral: makePool("g", 2)}
	sentinel := domain.Question{Text: "sentinel", Answer: "fixed"}
	opts := Options{Sentinel: &SentinelRule{Position: 9, Question: sentinel}}

	got := Select(pools, 5, opts, rand.New(rand.NewSource(2)))
	if got[len(got)-1] != sentinel {
		t.Fatalf("expected sentinel appended when position exceeds length, got %+v", got)
	}
}

func makePool(prefix string, n int) []domain.Question {
	pool := make([]domain.Question, n)
	for i := range pool {
		pool[i] = domain.Question{
			Text:   fmt.Sprintf("%s question %d", prefix, i),
			Answer: fmt.Sprintf("%s answer %d", prefix, i),
		}
	}
	return pool
}

func countPrefix(qs []domain.Question, prefix string) int {
	n := 0
	for _, q := range qs {
		if strings.HasPrefix(q.Text, prefix+" ") {
			n++
		}
	}
	return n
}
