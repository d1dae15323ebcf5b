package evolve

import (
	"fmt"
	"math/rand"
	"strings"
)

// Individual pairs a genome with its derived phenotype and evaluation.
//
// The genome is immutable, and an Individual is a plain value: copying it
// yields an independent individual, and changing the genome goes through
// WithGenome, which returns a new, unevaluated Individual.
type Individual struct {
	genome Genome

	decoded   []uint64
	fitness   float64
	feasible  bool
	evaluated bool

	// One value per criterion when evaluated against a MultiObjective.
	scores []float64

	// Number of generations this individual has survived selection.
	Age int

	// Per-individual bit-flip probability carried by self-adaptive mutation.
	MutationStrength float64
}

// NewIndividual wraps a genome in an unevaluated Individual.
func NewIndividual(genome Genome, mutationStrength float64) Individual {
	return Individual{genome: genome, MutationStrength: mutationStrength}
}

// RandomIndividual creates an unevaluated Individual with a uniformly random genome.
func RandomIndividual(spec PropertySpec, mutationStrength float64, rng *rand.Rand) Individual {
	return NewIndividual(spec.RandomGenome(rng), mutationStrength)
}

func (ind Individual) Genome() Genome {
	return ind.genome
}

func (ind Individual) Evaluated() bool {
	return ind.evaluated
}

// Decoded returns a copy of the decoded property values.
func (ind Individual) Decoded() []uint64 {
	ind.mustBeEvaluated("decoded")
	decoded := make([]uint64, len(ind.decoded))
	copy(decoded, ind.decoded)
	return decoded
}

// Scores returns a copy of the criterion scores. It is nil when the
// objective was not a MultiObjective.
func (ind Individual) Scores() []float64 {
	ind.mustBeEvaluated("scores")
	if ind.scores == nil {
		return nil
	}
	scores := make([]float64, len(ind.scores))
	copy(scores, ind.scores)
	return scores
}

// Fitness panics with a *ContractViolation if the individual was never evaluated.
func (ind Individual) Fitness() float64 {
	ind.mustBeEvaluated("fitness")
	return ind.fitness
}

// Feasible panics with a *ContractViolation if the individual was never evaluated.
func (ind Individual) Feasible() bool {
	ind.mustBeEvaluated("feasible")
	return ind.feasible
}

func (ind Individual) mustBeEvaluated(field string) {
	if !ind.evaluated {
		panic(violation(field, "individual %s read before evaluation", ind.genome))
	}
}

// WithGenome returns an unevaluated Individual carrying the new genome and
// this individual's age and mutation strength. An identical genome keeps
// the existing evaluation.
func (ind Individual) WithGenome(genome Genome) Individual {
	if ind.evaluated && genome.Equal(ind.genome) {
		return ind
	}
	return Individual{
		genome:           genome,
		Age:              ind.Age,
		MutationStrength: ind.MutationStrength,
	}
}

// Evaluate decodes the genome and recomputes fitness and feasibility. The
// genome itself is never touched.
func (ind *Individual) Evaluate(spec PropertySpec, objective Objective) error {
	decoded, err := spec.Decode(ind.genome)
	if err != nil {
		return err
	}

	fitness, err := objective.Fitness(decoded)
	if err != nil {
		return fmt.Errorf("fitness of %s: %w", ind.genome, err)
	}
	feasible, err := objective.Feasible(decoded)
	if err != nil {
		return fmt.Errorf("constraint of %s: %w", ind.genome, err)
	}
	var scores []float64
	if multi, ok := objective.(MultiObjective); ok {
		if scores, err = multi.Scores(decoded); err != nil {
			return fmt.Errorf("scores of %s: %w", ind.genome, err)
		}
	}

	ind.setEvaluation(decoded, fitness, feasible)
	ind.scores = scores
	return nil
}

func (ind *Individual) setEvaluation(decoded []uint64, fitness float64, feasible bool) {
	ind.decoded = decoded
	ind.fitness = fitness
	ind.feasible = feasible
	ind.evaluated = true
	ind.scores = nil
}

func (ind Individual) String() string {
	var buf strings.Builder
	buf.WriteString("Gen: ")
	buf.WriteString(ind.genome.String())
	if !ind.evaluated {
		buf.WriteString(" (unevaluated)")
		return buf.String()
	}
	fmt.Fprintf(&buf, " Values: %v\tFitness: %g\tFeasible: %t\tAge: %d", ind.decoded, ind.fitness, ind.feasible, ind.Age)
	if ind.MutationStrength > 0 {
		fmt.Fprintf(&buf, "\tStrength: %.4f", ind.MutationStrength)
	}
	return buf.String()
}

// Population is the unit passed between pipeline stages; its order carries
// no meaning.
type Population []Individual

// Clone returns a copy that shares no backing array with pop.
func (pop Population) Clone() Population {
	cloned := make(Population, len(pop))
	copy(cloned, pop)
	return cloned
}

// CountFeasible counts the evaluated, feasible members.
func (pop Population) CountFeasible() int {
	n := 0
	for _, ind := range pop {
		if ind.evaluated && ind.feasible {
			n++
		}
	}
	return n
}
