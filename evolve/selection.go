package evolve

import (
	"fmt"
	"math/rand"
	"sort"
)

// RankProbabilityTable holds the cumulative selection probabilities of m
// ranked survivors, best first. Rank r (1 = least fit, m = fittest) has
// probability r / (m(m+1)/2), so entry k is
//
//	P_k = sum_{j=m-k+1}^{m} j / (m(m+1)/2)
//
// and the last entry is exactly 1.
type RankProbabilityTable []float64

func NewRankProbabilityTable(m int) RankProbabilityTable {
	if m <= 0 {
		return nil
	}

	sumRanks := float64(m) * float64(m+1) / 2
	table := make(RankProbabilityTable, m)
	cumulative := 0.0
	for k := 0; k < m; k++ {
		cumulative += float64(m-k) / sumRanks
		table[k] = cumulative
	}
	table[m-1] = 1
	return table
}

// Index returns the smallest index i with u <= P_i.
func (t RankProbabilityTable) Index(u float64) int {
	i := sort.SearchFloat64s(t, u)
	if i >= len(t) {
		i = len(t) - 1
	}
	return i
}

// Ranked filters out individuals that may not reproduce (infeasible, or at
// least maxAge generations old when maxAge > 0) and sorts the rest best
// first. The sort is stable, so ties keep their population order.
func Ranked(pop Population, minimize bool, maxAge int) Population {
	return rankedBy(pop, maxAge, func(a, b Individual) bool {
		return better(a.fitness, b.fitness, minimize)
	})
}

func rankedBy(pop Population, maxAge int, less func(a, b Individual) bool) Population {
	ranked := make(Population, 0, len(pop))
	for _, ind := range pop {
		if !ind.Feasible() {
			continue
		}
		if maxAge > 0 && ind.Age >= maxAge {
			continue
		}
		ranked = append(ranked, ind)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})
	return ranked
}

// SelectRankBased draws size individuals by rank-based stochastic sampling.
// Only feasible individuals are eligible. Every slot of the result is its
// own copy, so later changes to one slot never show up in another.
func SelectRankBased(pop Population, size int, minimize bool, rng *rand.Rand) (Population, error) {
	return selectRankBased(pop, size, minimize, 0, rng)
}

func selectRankBased(pop Population, size int, minimize bool, maxAge int, rng *rand.Rand) (Population, error) {
	if size < 0 {
		return nil, violation("select", "negative selection size %d", size)
	}
	if err := checkEvaluated(pop); err != nil {
		return nil, err
	}
	return sample(Ranked(pop, minimize, maxAge), size, rng)
}

func checkEvaluated(pop Population) error {
	for i, ind := range pop {
		if !ind.evaluated {
			return violation("select", "individual %d (%s) is not evaluated", i, ind.genome)
		}
	}
	return nil
}

// sample draws size copies from ranked through the rank probability table.
func sample(ranked Population, size int, rng *rand.Rand) (Population, error) {
	if len(ranked) == 0 {
		return nil, ErrEmptyFeasibleSet
	}

	table := NewRankProbabilityTable(len(ranked))
	selection := make(Population, size)
	for i := range selection {
		selection[i] = ranked[table.Index(rng.Float64())]
	}
	return selection, nil
}

// Criterion is one objective of vector-evaluated selection: an index into
// the individuals' Scores and the direction it is optimized in.
type Criterion struct {
	Score    int
	Minimize bool
}

// SelectVectorEvaluated shuffles pop and splits it into one sub-population
// per criterion, sizes differing by at most one with the larger ones last.
// Each sub-population is then replaced by a rank-based selection of the same
// size, ranked by its own criterion. Only feasible individuals are eligible,
// and every sub-population needs at least one of them.
func SelectVectorEvaluated(pop Population, criteria []Criterion, rng *rand.Rand) ([]Population, error) {
	return selectVectorEvaluated(pop, criteria, 0, rng)
}

func selectVectorEvaluated(pop Population, criteria []Criterion, maxAge int, rng *rand.Rand) ([]Population, error) {
	if len(criteria) == 0 {
		return nil, violation("select", "vector-evaluated selection needs at least one criterion")
	}
	if err := checkEvaluated(pop); err != nil {
		return nil, err
	}
	for i, c := range criteria {
		for _, ind := range pop {
			if c.Score < 0 || c.Score >= len(ind.scores) {
				return nil, violation("select", "criterion %d reads score %d of %s, which has %d scores", i, c.Score, ind.genome, len(ind.scores))
			}
		}
	}

	shuffled := make(Population, len(pop))
	for i, j := range rng.Perm(len(pop)) {
		shuffled[i] = pop[j]
	}

	groups := make([]Population, len(criteria))
	start := 0
	for k, c := range criteria {
		size := len(pop) / len(criteria)
		if k >= len(criteria)-len(pop)%len(criteria) {
			size++
		}
		sub := shuffled[start : start+size]
		start += size

		ranked := rankedBy(sub, maxAge, func(a, b Individual) bool {
			return better(a.scores[c.Score], b.scores[c.Score], c.Minimize)
		})
		selection, err := sample(ranked, size, rng)
		if err != nil {
			return nil, fmt.Errorf("criterion %d: %w", k, err)
		}
		groups[k] = selection
	}
	return groups, nil
}
