package evolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

type SimulationParams struct {
	// Ordered fields of every genome
	Properties PropertySpec

	// Number of Individuals in each generation
	PopulationSize int

	// Number of generations Run performs before terminating
	Generations int

	// Bit-flip probability used when SelfAdaptive is false
	MutationProbability float64

	// Evolve a per-individual mutation strength instead of using MutationProbability.
	// InitialMutationStrength seeds the first population, Tau is the learning rate.
	SelfAdaptive            bool
	InitialMutationStrength float64
	Tau                     float64

	// Fraction of the selected population that is recombined each generation.
	// Children replace their parents, so the population size stays constant.
	CrossoverRate float64

	// Parents per recombination: 2 is single-point crossover, 3 or more is
	// multi-parent crossover.
	Parents int

	// Whether lower fitness is better
	Minimize bool

	// Select with one sub-population per criterion instead of by fitness.
	// Requires a MultiObjective. Fitness still picks the champions.
	Criteria []Criterion

	// Children bred each generation from random groups of Parents
	// individuals. When positive, only the children are mutated and the next
	// population is selected from parents and children together.
	// Set to 0 to recombine and replace the selected population instead.
	Offspring int

	// Individuals this many generations old are no longer selected.
	// Set to 0 to let individuals live forever.
	MaxAge int

	// Seed of the run's random source. Set to 0 to pick one at random; the
	// chosen seed is reported in the Result.
	Seed int64

	// Number of workers to utilize when evaluating the population.
	// Set to 0 to run without goroutines.
	NumEvaluationWorkers int

	// Number of distinct genomes whose evaluation is memoized.
	// Set to 0 to disable the cache.
	FitnessCacheSize int
}

func DefaultSimulationParams() *SimulationParams {
	return &SimulationParams{
		PopulationSize: 30,
		Generations:    100,

		MutationProbability:     0.01,
		InitialMutationStrength: 0.05,
		Tau:                     DefaultTau,

		CrossoverRate: 1.0 / 3,
		Parents:       2,

		Minimize: true,

		NumEvaluationWorkers: 0,
		FitnessCacheSize:     1024,
	}
}

// Validate reports the first out-of-range option as a *ContractViolation.
func (p *SimulationParams) Validate() error {
	if err := p.Properties.Validate(); err != nil {
		return err
	}
	switch {
	case p.PopulationSize < 1:
		return violation("params", "population size %d must be positive", p.PopulationSize)
	case p.Generations < 1:
		return violation("params", "generation count %d must be positive", p.Generations)
	case p.Parents < 2:
		return violation("params", "recombination needs at least 2 parents, got %d", p.Parents)
	case p.MaxAge < 0:
		return violation("params", "max age %d must not be negative", p.MaxAge)
	case p.NumEvaluationWorkers < 0:
		return violation("params", "evaluation workers %d must not be negative", p.NumEvaluationWorkers)
	case p.FitnessCacheSize < 0:
		return violation("params", "fitness cache size %d must not be negative", p.FitnessCacheSize)
	case p.Offspring < 0:
		return violation("params", "offspring count %d must not be negative", p.Offspring)
	case p.Offspring > 0 && p.PopulationSize < p.Parents:
		return violation("params", "population size %d cannot supply %d distinct parents", p.PopulationSize, p.Parents)
	case p.Offspring > 0 && len(p.Criteria) > 0:
		return violation("params", "offspring selection does not combine with selection criteria")
	case len(p.Criteria) > p.PopulationSize:
		return violation("params", "%d criteria need a population of at least as many", len(p.Criteria))
	}
	for i, c := range p.Criteria {
		if c.Score < 0 {
			return violation("params", "criterion %d reads negative score %d", i, c.Score)
		}
	}
	if err := checkProbability("params", p.CrossoverRate); err != nil {
		return err
	}

	if p.SelfAdaptive {
		if !(p.InitialMutationStrength > 0 && p.InitialMutationStrength <= 1) {
			return violation("params", "initial mutation strength %v outside (0, 1]", p.InitialMutationStrength)
		}
		if !(p.Tau > 0) {
			return violation("params", "tau %v must be positive", p.Tau)
		}
		return nil
	}
	return checkProbability("params", p.MutationProbability)
}

// MutationPolicy returns the policy selected by SelfAdaptive.
func (p *SimulationParams) MutationPolicy() MutationPolicy {
	if p.SelfAdaptive {
		return SelfAdaptiveMutation{Tau: p.Tau, Initial: p.InitialMutationStrength}
	}
	return FixedMutation{Probability: p.MutationProbability}
}

// RunState is everything a run carries from one generation to the next. It
// is owned by the caller; Step never modifies the state it is given.
type RunState struct {
	Population Population
	Champions  []Champion

	// Number of completed generations; 0 for the initial population.
	Generation int
}

type Result struct {
	RunID string
	Seed  int64

	// State after the last completed generation.
	Final RunState

	// Set when the run stopped before its generation count; Cause holds the reason.
	TerminatedEarly bool
	Cause           error

	Elapsed time.Duration

	minimize bool
}

func (r *Result) Champions() []Champion {
	return r.Final.Champions
}

// Superchampion is the best champion of the whole run.
func (r *Result) Superchampion() (Champion, bool) {
	return Superchampion(r.Final.Champions, r.minimize)
}

// BestSoFar is BestSoFar over the run's champion history.
func (r *Result) BestSoFar() []float64 {
	return BestSoFar(r.Final.Champions, r.minimize)
}

type Option func(*Simulation)

func WithLogger(logger *slog.Logger) Option {
	return func(sim *Simulation) {
		sim.logger = logger
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(sim *Simulation) {
		sim.metrics = metrics
	}
}

// WithRunID replaces the generated run identifier.
func WithRunID(id string) Option {
	return func(sim *Simulation) {
		sim.runID = id
	}
}

// Simulation drives the generational loop. Its random source is not safe
// for concurrent use, so concurrent runs use one Simulation each.
type Simulation struct {
	params    SimulationParams
	evaluator *Evaluator
	mutation  MutationPolicy
	rng       *rand.Rand
	seed      int64

	runID   string
	logger  *slog.Logger
	metrics *Metrics

	reportedEvaluations uint64
	reportedHits        uint64
}

func NewSimulation(params *SimulationParams, objective Objective, opts ...Option) (*Simulation, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if _, ok := objective.(MultiObjective); len(params.Criteria) > 0 && !ok {
		return nil, violation("params", "selection criteria need a MultiObjective, got %T", objective)
	}
	evaluator, err := NewEvaluator(params.Properties, objective, params.FitnessCacheSize, params.NumEvaluationWorkers)
	if err != nil {
		return nil, err
	}

	seed := params.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	sim := &Simulation{
		params:    *params,
		evaluator: evaluator,
		mutation:  params.MutationPolicy(),
		rng:       rand.New(rand.NewSource(seed)),
		seed:      seed,
		runID:     uuid.NewString(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(sim)
	}
	sim.logger = sim.logger.With("run_id", sim.runID)
	return sim, nil
}

func (sim *Simulation) Params() SimulationParams {
	return sim.params
}

func (sim *Simulation) RunID() string {
	return sim.runID
}

func (sim *Simulation) Seed() int64 {
	return sim.seed
}

func (sim *Simulation) Evaluator() *Evaluator {
	return sim.evaluator
}

// Init creates the evaluated, uniformly random initial population.
func (sim *Simulation) Init(ctx context.Context) (RunState, error) {
	pop := make(Population, sim.params.PopulationSize)
	for i := range pop {
		pop[i] = RandomIndividual(sim.params.Properties, sim.mutation.InitialStrength(), sim.rng)
	}
	if err := sim.evaluator.EvaluateAll(ctx, pop); err != nil {
		return RunState{}, fmt.Errorf("evaluating initial population: %w", err)
	}
	return RunState{Population: pop}, nil
}

// Step performs one generation: evaluate, select, age, mutate, recombine,
// re-evaluate and record the champion. With Offspring set the children are
// bred and mutated first and selection runs over parents and children. When
// no individual may be selected it returns the unchanged state and an error
// matching ErrEmptyFeasibleSet.
func (sim *Simulation) Step(ctx context.Context, state RunState) (RunState, error) {
	current := state.Population.Clone()
	if err := sim.evaluator.EvaluateAll(ctx, current); err != nil {
		return state, fmt.Errorf("generation %d: %w", state.Generation+1, err)
	}

	var (
		selected Population
		err      error
	)
	if sim.params.Offspring > 0 {
		selected, err = sim.plusSelection(ctx, current)
	} else {
		selected, err = sim.replaceSelection(current)
	}
	if err != nil {
		return state, fmt.Errorf("generation %d: %w", state.Generation+1, err)
	}

	if err := sim.evaluator.EvaluateAll(ctx, selected); err != nil {
		return state, fmt.Errorf("generation %d: %w", state.Generation+1, err)
	}

	next := RunState{
		Population: selected,
		Champions:  state.Champions[:len(state.Champions):len(state.Champions)],
		Generation: state.Generation + 1,
	}

	var champion *Champion
	if best, ok := FindChampion(selected, sim.params.Minimize); ok {
		champion = &Champion{Generation: next.Generation, Individual: best}
		next.Champions = append(next.Champions, *champion)
	}

	sim.observe(next, champion)
	return next, nil
}

// replaceSelection selects PopulationSize individuals, as one group or one
// group per criterion, then ages, mutates and recombines each group in place.
// The result is unevaluated where variation changed a genome.
func (sim *Simulation) replaceSelection(current Population) (Population, error) {
	var groups []Population
	if len(sim.params.Criteria) > 0 {
		var err error
		groups, err = selectVectorEvaluated(current, sim.params.Criteria, sim.params.MaxAge, sim.rng)
		if err != nil {
			return nil, err
		}
	} else {
		selected, err := selectRankBased(current, sim.params.PopulationSize, sim.params.Minimize, sim.params.MaxAge, sim.rng)
		if err != nil {
			return nil, err
		}
		groups = []Population{selected}
	}

	next := make(Population, 0, sim.params.PopulationSize)
	for _, group := range groups {
		for i := range group {
			group[i].Age++
		}
		if err := sim.mutateAll(group); err != nil {
			return nil, err
		}
		if err := sim.recombine(group); err != nil {
			return nil, err
		}
		next = append(next, group...)
	}
	return next, nil
}

// plusSelection breeds Offspring children from current, mutates and
// evaluates only them, and selects PopulationSize survivors from parents and
// children together. Survivors age by one generation.
func (sim *Simulation) plusSelection(ctx context.Context, current Population) (Population, error) {
	offspring, err := sim.breedOffspring(current)
	if err != nil {
		return nil, err
	}
	if err := sim.mutateAll(offspring); err != nil {
		return nil, err
	}
	if err := sim.evaluator.EvaluateAll(ctx, offspring); err != nil {
		return nil, err
	}

	union := append(current[:len(current):len(current)], offspring...)
	selected, err := selectRankBased(union, sim.params.PopulationSize, sim.params.Minimize, sim.params.MaxAge, sim.rng)
	if err != nil {
		return nil, err
	}
	for i := range selected {
		selected[i].Age++
	}
	return selected, nil
}

// breedOffspring breeds Offspring children, each group of Parents drawn
// without repetition from pop.
func (sim *Simulation) breedOffspring(pop Population) (Population, error) {
	if len(pop) < sim.params.Parents {
		return nil, violation("breed", "population of %d cannot supply %d distinct parents", len(pop), sim.params.Parents)
	}

	offspring := make(Population, 0, sim.params.Offspring+sim.params.Parents)
	parents := make([]Individual, sim.params.Parents)
	for len(offspring) < sim.params.Offspring {
		for k, slot := range sim.rng.Perm(len(pop))[:sim.params.Parents] {
			parents[k] = pop[slot]
		}
		children, err := Breed(parents, sim.rng)
		if err != nil {
			return nil, err
		}
		offspring = append(offspring, children...)
	}
	return offspring[:sim.params.Offspring], nil
}

func (sim *Simulation) mutateAll(pop Population) error {
	for i := range pop {
		mutated, err := sim.mutation.Mutate(pop[i], sim.rng)
		if err != nil {
			return err
		}
		pop[i] = mutated
	}
	return nil
}

// recombine breeds a random subset of pop in groups of Parents and writes the
// offspring over the slots their parents occupied.
func (sim *Simulation) recombine(pop Population) error {
	breeders := int(math.Round(sim.params.CrossoverRate * float64(len(pop))))
	breeders -= breeders % sim.params.Parents
	if breeders == 0 {
		return nil
	}

	slots := sim.rng.Perm(len(pop))[:breeders]
	parents := make([]Individual, sim.params.Parents)
	for start := 0; start < breeders; start += sim.params.Parents {
		group := slots[start : start+sim.params.Parents]
		for k, slot := range group {
			parents[k] = pop[slot]
		}

		children, err := Breed(parents, sim.rng)
		if err != nil {
			return err
		}
		for k, slot := range group {
			pop[slot] = children[k]
		}
	}
	return nil
}

func (sim *Simulation) observe(state RunState, champion *Champion) {
	evaluations, hits := sim.evaluator.Evaluations(), sim.evaluator.CacheHits()
	sim.metrics.observeGeneration(state.Population, champion, evaluations-sim.reportedEvaluations, hits-sim.reportedHits)
	sim.reportedEvaluations, sim.reportedHits = evaluations, hits

	if !sim.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := []any{
		"generation", state.Generation,
		"feasible", state.Population.CountFeasible(),
	}
	if champion != nil {
		attrs = append(attrs, "champion_fitness", champion.Fitness(), "champion", sim.params.Properties.Format(champion.Genome()))
	}
	sim.logger.Debug("generation complete", attrs...)
}

// Run evolves a new population for the configured number of generations.
//
// A generation without any selectable individual ends the run early: the
// Result then has TerminatedEarly set and the error is nil. Cancelling ctx
// stops the run between generations and returns the partial Result along
// with ctx.Err().
func (sim *Simulation) Run(ctx context.Context) (*Result, error) {
	startedAt := time.Now()
	result := &Result{
		RunID:    sim.runID,
		Seed:     sim.seed,
		minimize: sim.params.Minimize,
	}

	sim.logger.Info("starting run",
		"seed", sim.seed,
		"population", sim.params.PopulationSize,
		"generations", sim.params.Generations,
		"mutation", sim.mutation.Name(),
		"parents", sim.params.Parents,
		"offspring", sim.params.Offspring,
		"criteria", len(sim.params.Criteria),
		"minimize", sim.params.Minimize,
	)

	state, err := sim.Init(ctx)
	if err != nil {
		return nil, err
	}
	result.Final = state

	for state.Generation < sim.params.Generations {
		if err := ctx.Err(); err != nil {
			result.TerminatedEarly = true
			result.Cause = err
			result.Elapsed = time.Since(startedAt)
			sim.logger.Warn("run cancelled", "generation", state.Generation)
			return result, err
		}

		next, err := sim.Step(ctx, state)
		if errors.Is(err, ErrEmptyFeasibleSet) {
			result.TerminatedEarly = true
			result.Cause = err
			sim.metrics.observeEarlyStop()
			sim.logger.Warn("terminating early", "generation", state.Generation, "err", err)
			break
		}
		if err != nil {
			result.Elapsed = time.Since(startedAt)
			return result, err
		}

		state = next
		result.Final = state
	}

	result.Elapsed = time.Since(startedAt)
	attrs := []any{
		"generations", result.Final.Generation,
		"champions", len(result.Final.Champions),
		"evaluations", sim.evaluator.Evaluations(),
		"cache_hits", sim.evaluator.CacheHits(),
		"elapsed", result.Elapsed,
	}
	if best, ok := result.Superchampion(); ok {
		attrs = append(attrs, "superchampion_fitness", best.Fitness())
	}
	sim.logger.Info("run finished", attrs...)
	return result, nil
}
