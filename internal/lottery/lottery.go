// Package lottery implements the wager-weighted slot lottery as pure,
// stateless functions.
//
// Selection works in two stages. Candidates are ranked by wager (a
// self-selected priority bid); everyone whose wager strictly exceeds the
// n-th ranked wager is admitted outright. The remaining seats are filled by
// weighted sampling without replacement among the candidates tied at the
// cutoff wager, weighted by karma, so long-term fairness breaks ties that
// wagers alone cannot. Losers with a strictly lower wager never enter the
// draw.
//
// All weight and wager inputs must be strictly positive; use the ledger's
// WeightMap to normalize raw balances first.
package lottery

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/lunchroulette/lunchroulette/internal/models"
)

// SampleOne draws a single key from weights, with probability proportional to
// weight. The cumulative distribution is built in sorted key order so a given
// rand source yields a reproducible draw. Returns ErrValidation if the pool
// is empty or any weight is non-positive.
func SampleOne(r *rand.Rand, weights map[models.UserID]int) (models.UserID, error) {
	if len(weights) == 0 {
		return "", fmt.Errorf("%w: empty weight pool", models.ErrValidation)
	}

	keys := make([]models.UserID, 0, len(weights))
	total := 0
	for key, weight := range weights {
		if weight <= 0 {
			return "", fmt.Errorf("%w: weight for %q must be positive, got %d", models.ErrValidation, key, weight)
		}
		keys = append(keys, key)
		total += weight
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	u := r.Float64()
	cum := 0.0
	for _, key := range keys {
		cum += float64(weights[key]) / float64(total)
		if cum > u {
			return key, nil
		}
	}
	// Floating-point accumulation can leave cum fractionally below 1.
	return keys[len(keys)-1], nil
}

// SampleWithoutReplacement draws up to n distinct keys from weights by
// repeated single draws, removing each chosen key from the pool. Returns
// min(n, len(weights)) keys in draw order, never a duplicate.
func SampleWithoutReplacement(r *rand.Rand, weights map[models.UserID]int, n int) ([]models.UserID, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: sample size must not be negative, got %d", models.ErrValidation, n)
	}

	pool := make(map[models.UserID]int, len(weights))
	for key, weight := range weights {
		if weight <= 0 {
			return nil, fmt.Errorf("%w: weight for %q must be positive, got %d", models.ErrValidation, key, weight)
		}
		pool[key] = weight
	}

	var chosen []models.UserID
	for len(chosen) < n && len(pool) > 0 {
		winner, err := SampleOne(r, pool)
		if err != nil {
			return nil, err
		}
		chosen = append(chosen, winner)
		delete(pool, winner)
	}
	return chosen, nil
}

// Choose selects up to n winners among the candidates (the keys of wagers).
//
// If the candidate count is at most n, everyone wins. Otherwise candidates
// whose wager strictly exceeds the n-th ranked wager are clear winners; the
// remaining seats are filled by weighted sampling (without replacement) among
// the candidates whose wager equals the n-th ranked wager, using weights
// restricted to that tied group. Candidates with a strictly lower wager lose
// outright.
//
// weights must contain a strictly positive weight for every candidate.
func Choose(r *rand.Rand, n int, wagers, weights map[models.UserID]int) ([]models.UserID, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: winner count must not be negative, got %d", models.ErrValidation, n)
	}

	candidates := make([]models.UserID, 0, len(wagers))
	for candidate, wager := range wagers {
		if wager <= 0 {
			return nil, fmt.Errorf("%w: wager for %q must be positive, got %d", models.ErrValidation, candidate, wager)
		}
		if weights[candidate] <= 0 {
			return nil, fmt.Errorf("%w: weight for %q must be positive, got %d", models.ErrValidation, candidate, weights[candidate])
		}
		candidates = append(candidates, candidate)
	}

	// Wager descending, key ascending for a stable rank order.
	sort.Slice(candidates, func(i, j int) bool {
		if wagers[candidates[i]] != wagers[candidates[j]] {
			return wagers[candidates[i]] > wagers[candidates[j]]
		}
		return candidates[i] < candidates[j]
	})

	if len(candidates) <= n {
		return candidates, nil
	}
	if n == 0 {
		return nil, nil
	}

	reference := wagers[candidates[n-1]]

	var clearWinners []models.UserID
	tied := make(map[models.UserID]int)
	for _, candidate := range candidates {
		switch {
		case wagers[candidate] > reference:
			clearWinners = append(clearWinners, candidate)
		case wagers[candidate] == reference:
			tied[candidate] = weights[candidate]
		}
	}

	sampled, err := SampleWithoutReplacement(r, tied, n-len(clearWinners))
	if err != nil {
		return nil, err
	}
	return append(clearWinners, sampled...), nil
}
