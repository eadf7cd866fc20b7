// Package selector builds the ordered question list a room plays with.
// It mixes typed category pools by weight, deduplicates by (text, answer),
// and optionally splices a fixed question into a fixed position.
package selector

import (
	"math/rand"

	"quiz-lobby-service/internal/domain"
)

// CategoryWeight reserves a share of the target count for one category.
// Weighted categories are allocated in slice order; whatever budget is left
// afterwards goes to the default category.
type CategoryWeight struct {
	Category domain.Category
	// Ratio of the target count to aim for, e.g. 0.25.
	Ratio float64
	// Minimum floor applied before clamping to pool size and budget.
	Minimum int
}

// MustIncludeRule forces at least Min default-category items matching the
// predicate into the selection before the remainder is filled randomly.
type MustIncludeRule struct {
	Min     int
	Matches func(domain.Question) bool
}

// SentinelRule splices Question into Position after dedup, displacing later
// items instead of dropping the tail.
type SentinelRule struct {
	Position int
	Question domain.Question
}

// Options configures one selection run.
type Options struct {
	// Weighted categories, highest priority first.
	Weights []CategoryWeight
	// Default receives the residual budget. Zero value means general.
	Default     domain.Category
	MustInclude *MustIncludeRule
	Sentinel    *SentinelRule
}

// Select draws up to n unique questions from pools. The result is shorter
// than n only when the pools cannot supply n unique items. rnd must not be
// nil; tests pass a seeded source, production uses a time-seeded one.
func Select(pools domain.QuestionPools, n int, opts Options, rnd *rand.Rand) []domain.Question {
	if n <= 0 || pools.IsEmpty() {
		return nil
	}

	def := opts.Default
	if def == "" {
		def = domain.CategoryGeneral
	}

	budget := n
	var picked []domain.Question

	for _, w := range opts.Weights {
		pool := pools[w.Category]
		want := max(roundRatio(n, w.Ratio), w.Minimum)
		want = min(want, len(pool), budget)
		if want <= 0 {
			continue
		}
		picked = append(picked, sample(pool, want, rnd)...)
		budget -= want
	}

	picked = append(picked, pickDefault(pools[def], budget, opts.MustInclude, rnd)...)

	rnd.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})

	seen := make(map[string]struct{}, n)
	out := make([]domain.Question, 0, n)
	for _, q := range picked {
		if _, dup := seen[q.Key()]; dup {
			continue
		}
		seen[q.Key()] = struct{}{}
		out = append(out, q)
		if len(out) == n {
			break
		}
	}

	if s := opts.Sentinel; s != nil && len(out) > 0 {
		out = splice(out, s.Position, s.Question)
	}
	return out
}

// pickDefault fills the residual budget from the default pool, honoring the
// must-include rule first.
func pickDefault(pool []domain.Question, budget int, rule *MustIncludeRule, rnd *rand.Rand) []domain.Question {
	if budget <= 0 || len(pool) == 0 {
		return nil
	}

	var out []domain.Question
	rest := pool
	if rule != nil && rule.Min > 0 && rule.Matches != nil {
		var matching, others []domain.Question
		for _, q := range pool {
			if rule.Matches(q) {
				matching = append(matching, q)
			} else {
				others = append(others, q)
			}
		}
		forced := min(rule.Min, len(matching), budget)
		out = sample(matching, forced, rnd)
		rest = others
	}

	fill := min(budget-len(out), len(rest))
	return append(out, sample(rest, fill, rnd)...)
}

// sample draws k items uniformly without replacement via a partial
// Fisher-Yates over a copy of the pool.
func sample(pool []domain.Question, k int, rnd *rand.Rand) []domain.Question {
	if k <= 0 {
		return nil
	}
	if k > len(pool) {
		k = len(pool)
	}
	cp := make([]domain.Question, len(pool))
	copy(cp, pool)
	for i := 0; i < k; i++ {
		j := i + rnd.Intn(len(cp)-i)
		cp[i], cp[j] = cp[j], cp[i]
	}
	return cp[:k]
}

// splice inserts q at pos, shifting later items right. The list grows by
// one; nothing is dropped.
func splice(list []domain.Question, pos int, q domain.Question) []domain.Question {
	if pos < 0 {
		pos = 0
	}
	if pos > len(list) {
		pos = len(list)
	}
	list = append(list, domain.Question{})
	copy(list[pos+1:], list[pos:])
	list[pos] = q
	return list
}

func roundRatio(n int, ratio float64) int {
	if ratio <= 0 {
		return 0
	}
	return int(float64(n)*ratio + 0.5)
}
