package evolve

// Champion is the best feasible individual of one generation. It is a value
// copy and stays unchanged whatever happens to the population afterwards.
type Champion struct {
	Generation int
	Individual
}

func better(a, b float64, minimize bool) bool {
	if minimize {
		return a < b
	}
	return a > b
}

// FindChampion returns the feasible individual with the best fitness. Only a
// strictly better fitness replaces the current best, so the first of equally
// fit individuals wins. ok is false when no member is feasible.
func FindChampion(pop Population, minimize bool) (champion Individual, ok bool) {
	for _, ind := range pop {
		if !ind.evaluated || !ind.feasible {
			continue
		}
		if !ok || better(ind.fitness, champion.fitness, minimize) {
			champion = ind
			ok = true
		}
	}
	return champion, ok
}

// Superchampion is the best champion of a run's history.
func Superchampion(champions []Champion, minimize bool) (Champion, bool) {
	var best Champion
	for i, c := range champions {
		if i == 0 || better(c.fitness, best.fitness, minimize) {
			best = c
		}
	}
	return best, len(champions) > 0
}

// BestSoFar projects the champion history onto the best fitness seen up to
// and including each entry. The result never gets worse from one entry to
// the next, even when a single generation's champion does.
func BestSoFar(champions []Champion, minimize bool) []float64 {
	best := make([]float64, len(champions))
	for i, c := range champions {
		best[i] = c.fitness
		if i > 0 && !better(c.fitness, best[i-1], minimize) {
			best[i] = best[i-1]
		}
	}
	return best
}

// ChampionSeries returns the generation index and champion fitness as the
// (x, y) pair consumed by plotting.
func ChampionSeries(champions []Champion) (x, y []float64) {
	x = make([]float64, len(champions))
	y = make([]float64, len(champions))
	for i, c := range champions {
		x[i] = float64(c.Generation)
		y[i] = c.fitness
	}
	return x, y
}
