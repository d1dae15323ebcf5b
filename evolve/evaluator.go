package evolve

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"
)

type cachedEvaluation struct {
	decoded  []uint64
	fitness  float64
	feasible bool
	scores   []float64
}

// Evaluator evaluates individuals against a property spec and objective.
// Results are memoized per genome in an LRU cache, which is sound because
// objectives are deterministic.
type Evaluator struct {
	spec      PropertySpec
	objective Objective
	cache     *lru.Cache
	workers   int

	evaluations atomic.Uint64
	hits        atomic.Uint64
}

// NewEvaluator creates an Evaluator. cacheSize <= 0 disables memoization;
// workers <= 0 evaluates on the calling goroutine.
func NewEvaluator(spec PropertySpec, objective Objective, cacheSize, workers int) (*Evaluator, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if objective == nil {
		return nil, violation("evaluator", "objective is required")
	}

	e := &Evaluator{
		spec:      spec,
		objective: objective,
		workers:   workers,
	}
	if cacheSize > 0 {
		cache, err := lru.New(cacheSize)
		if err != nil {
			return nil, err
		}
		e.cache = cache
	}
	return e, nil
}

func (e *Evaluator) Spec() PropertySpec {
	return e.spec
}

// Evaluate fills in the individual's decoded values, fitness, feasibility
// and scores.
func (e *Evaluator) Evaluate(ind *Individual) error {
	var key string
	if e.cache != nil {
		key = ind.genome.Key()
		if cached, ok := e.cache.Get(key); ok {
			c := cached.(cachedEvaluation)
			ind.setEvaluation(c.decoded, c.fitness, c.feasible)
			ind.scores = c.scores
			e.hits.Add(1)
			return nil
		}
	}

	if err := ind.Evaluate(e.spec, e.objective); err != nil {
		return err
	}
	e.evaluations.Add(1)

	if e.cache != nil {
		e.cache.Add(key, cachedEvaluation{
			decoded:  ind.decoded,
			fitness:  ind.fitness,
			feasible: ind.feasible,
		})
	}
	return nil
}

// EvaluateAll evaluates every unevaluated member of pop in place. With
// workers configured the population is split into contiguous chunks, one
// goroutine each; individual evaluations are independent of each other.
func (e *Evaluator) EvaluateAll(ctx context.Context, pop Population) error {
	evaluateChunk := func(chunk Population) error {
		for i := range chunk {
			if chunk[i].evaluated {
				continue
			}
			if err := e.Evaluate(&chunk[i]); err != nil {
				return err
			}
		}
		return nil
	}

	if e.workers <= 1 || len(pop) <= 1 {
		return evaluateChunk(pop)
	}

	chunkSize := (len(pop) + e.workers - 1) / e.workers
	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(pop); start += chunkSize {
		end := start + chunkSize
		if end > len(pop) {
			end = len(pop)
		}
		chunk := pop[start:end]

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return evaluateChunk(chunk)
		})
	}
	return g.Wait()
}

// Evaluations is the number of objective calls made so far.
func (e *Evaluator) Evaluations() uint64 {
	return e.evaluations.Load()
}

// CacheHits is the number of evaluations answered from the cache.
func (e *Evaluator) CacheHits() uint64 {
	return e.hits.Load()
}
