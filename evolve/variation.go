package evolve

import (
	"math"
	"math/rand"
	"sort"
)

// DefaultTau is the learning rate of log-normal step-size adaptation.
const DefaultTau = 1 / math.Sqrt2

// Mutate creates a new Genome with each bit flipped with probability p.
func Mutate(g Genome, p float64) (Genome, error) {
	rng := randPool.Get().(*rand.Rand)
	defer randPool.Put(rng)
	return MutateWithRand(g, p, rng)
}

func MutateWithRand(g Genome, p float64, rng *rand.Rand) (Genome, error) {
	if err := checkProbability("mutate", p); err != nil {
		return Genome{}, err
	}

	mutated := newGenome(g.n)
	copy(mutated.words, g.words)
	for i := 0; i < g.n; i++ {
		if rng.Float64() < p {
			mutated.words[i/wordBits] ^= 1 << (i % wordBits)
		}
	}
	return mutated, nil
}

// AdaptStrength applies one log-normal step: sigma * exp(tau * N(0,1)).
func AdaptStrength(sigma, tau float64, rng *rand.Rand) float64 {
	return sigma * math.Exp(tau*rng.NormFloat64())
}

// MutationPolicy decides how an individual's genome is mutated each generation.
type MutationPolicy interface {
	Name() string

	// InitialStrength is the mutation strength given to newly created individuals.
	InitialStrength() float64

	// Mutate returns the mutated individual; the receiver's argument is left untouched.
	Mutate(ind Individual, rng *rand.Rand) (Individual, error)
}

// FixedMutation flips bits with the same probability for every individual.
type FixedMutation struct {
	Probability float64
}

func (FixedMutation) Name() string {
	return "fixed"
}

func (m FixedMutation) InitialStrength() float64 {
	return 0
}

func (m FixedMutation) Mutate(ind Individual, rng *rand.Rand) (Individual, error) {
	mutated, err := MutateWithRand(ind.genome, m.Probability, rng)
	if err != nil {
		return Individual{}, err
	}
	return ind.WithGenome(mutated), nil
}

// SelfAdaptiveMutation evolves a per-individual bit-flip probability. The
// strength is adapted first and the adapted value drives the flips, so each
// lineage drifts its own mutation pressure. Strengths are capped at 1.
type SelfAdaptiveMutation struct {
	Tau     float64
	Initial float64
}

func NewSelfAdaptiveMutation(initial float64) SelfAdaptiveMutation {
	return SelfAdaptiveMutation{Tau: DefaultTau, Initial: initial}
}

func (SelfAdaptiveMutation) Name() string {
	return "self-adaptive"
}

func (m SelfAdaptiveMutation) InitialStrength() float64 {
	return m.Initial
}

func (m SelfAdaptiveMutation) Mutate(ind Individual, rng *rand.Rand) (Individual, error) {
	if ind.MutationStrength <= 0 {
		return Individual{}, violation("self-adaptive mutation", "mutation strength %v must be positive", ind.MutationStrength)
	}

	strength := math.Min(AdaptStrength(ind.MutationStrength, m.Tau, rng), 1)
	mutated, err := MutateWithRand(ind.genome, strength, rng)
	if err != nil {
		return Individual{}, err
	}

	child := ind.WithGenome(mutated)
	child.MutationStrength = strength
	return child, nil
}

func checkSameLength(op string, genomes ...Genome) error {
	for i := 1; i < len(genomes); i++ {
		if genomes[i].n != genomes[0].n {
			return violation(op, "parent %d has %d bits, parent 0 has %d", i, genomes[i].n, genomes[0].n)
		}
	}
	return nil
}

// CrossoverPoint creates two children from equal-length parents by swapping
// their suffixes at point: a[:point]+b[point:] and b[:point]+a[point:].
func CrossoverPoint(a, b Genome, point int) (Genome, Genome, error) {
	if err := checkSameLength("crossover", a, b); err != nil {
		return Genome{}, Genome{}, err
	}
	if point < 0 || point > a.n {
		return Genome{}, Genome{}, violation("crossover", "point %d outside [0, %d]", point, a.n)
	}

	return splice([]Genome{a, b}, []int{point}), splice([]Genome{b, a}, []int{point}), nil
}

// CrossOverWithRand is CrossoverPoint with the point drawn uniformly from [0, len].
func CrossOverWithRand(a, b Genome, rng *rand.Rand) (Genome, Genome, error) {
	if err := checkSameLength("crossover", a, b); err != nil {
		return Genome{}, Genome{}, err
	}
	return CrossoverPoint(a, b, rng.Intn(a.n+1))
}

// MultiPointCrossover creates one child from len(cuts)+1 equal-length
// parents. After sorting the cut points, segment k of the child is copied
// from parents[k]; with three parents and cuts p1, p2 that is
// parents[0][:min] + parents[1][min:max] + parents[2][max:].
func MultiPointCrossover(parents []Genome, cuts []int) (Genome, error) {
	if len(parents) < 2 {
		return Genome{}, violation("multi-parent crossover", "need at least 2 parents, got %d", len(parents))
	}
	if len(cuts) != len(parents)-1 {
		return Genome{}, violation("multi-parent crossover", "%d parents need %d cut points, got %d", len(parents), len(parents)-1, len(cuts))
	}
	if err := checkSameLength("multi-parent crossover", parents...); err != nil {
		return Genome{}, err
	}

	sorted := make([]int, len(cuts))
	copy(sorted, cuts)
	sort.Ints(sorted)
	for _, cut := range sorted {
		if cut < 0 || cut > parents[0].n {
			return Genome{}, violation("multi-parent crossover", "cut point %d outside [0, %d]", cut, parents[0].n)
		}
	}
	return splice(parents, sorted), nil
}

// MultiParentCrossOverWithRand draws len(parents)-1 independent cut points
// uniformly from [0, len] and applies MultiPointCrossover.
func MultiParentCrossOverWithRand(parents []Genome, rng *rand.Rand) (Genome, error) {
	if len(parents) < 2 {
		return Genome{}, violation("multi-parent crossover", "need at least 2 parents, got %d", len(parents))
	}
	if err := checkSameLength("multi-parent crossover", parents...); err != nil {
		return Genome{}, err
	}

	cuts := make([]int, len(parents)-1)
	for i := range cuts {
		cuts[i] = rng.Intn(parents[0].n + 1)
	}
	return MultiPointCrossover(parents, cuts)
}

// Breed recombines a group of parents into the same number of children.
// Two parents use single-point crossover; larger groups produce child i by
// multi-parent crossover over the parents rotated by i. Child i inherits the
// mutation strength of parent i and starts at age 0.
func Breed(parents []Individual, rng *rand.Rand) ([]Individual, error) {
	genomes := make([]Genome, len(parents))
	for i, p := range parents {
		genomes[i] = p.genome
	}

	childGenomes := make([]Genome, len(parents))
	switch {
	case len(parents) < 2:
		return nil, violation("breed", "need at least 2 parents, got %d", len(parents))
	case len(parents) == 2:
		a, b, err := CrossOverWithRand(genomes[0], genomes[1], rng)
		if err != nil {
			return nil, err
		}
		childGenomes[0], childGenomes[1] = a, b
	default:
		rotated := make([]Genome, len(genomes))
		for i := range childGenomes {
			for k := range rotated {
				rotated[k] = genomes[(i+k)%len(genomes)]
			}
			child, err := MultiParentCrossOverWithRand(rotated, rng)
			if err != nil {
				return nil, err
			}
			childGenomes[i] = child
		}
	}

	children := make([]Individual, len(parents))
	for i, p := range parents {
		children[i] = p.WithGenome(childGenomes[i])
		children[i].Age = 0
	}
	return children, nil
}
