package evolve

import (
	"math"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Mutation", func() {
	It("keeps the genome with probability 0", func() {
		rng := newRand()
		for i := 0; i < 20; i++ {
			g := RandomGenome(1+i*7, rng)
			mutated, err := MutateWithRand(g, 0, rng)
			Expect(err).ToNot(HaveOccurred())
			Expect(mutated.Equal(g)).To(BeTrue())
		}
	})

	It("flips every bit with probability 1", func() {
		rng := newRand()
		for i := 0; i < 20; i++ {
			g := RandomGenome(1+i*7, rng)
			mutated, err := MutateWithRand(g, 1, rng)
			Expect(err).ToNot(HaveOccurred())
			Expect(mutated.Equal(g.Complement())).To(BeTrue())
		}
	})

	It("leaves the input untouched", func() {
		g := MustParseGenome("0000000000")
		_, err := Mutate(g, 1)
		Expect(err).ToNot(HaveOccurred())
		Expect(g.String()).To(Equal("0000000000"))
	})

	DescribeTable("rejects probabilities outside [0, 1]",
		func(p float64) {
			_, err := Mutate(ZeroGenome(8), p)
			Expect(err).To(MatchError(ErrContractViolation))
		},
		Entry("negative", -0.1),
		Entry("above one", 1.5),
		Entry("NaN", math.NaN()),
	)

	It("flips roughly p of the bits", func() {
		mutated, err := MutateWithRand(ZeroGenome(10000), 0.1, newRand())
		Expect(err).ToNot(HaveOccurred())
		Expect(mutated.Ones()).To(BeNumerically("~", 1000, 150))
	})

	Describe("policies", func() {
		var ind Individual

		BeforeEach(func() {
			ind = NewIndividual(ZeroGenome(10), 0.3)
			ind.Age = 2
		})

		It("applies a fixed probability", func() {
			policy := FixedMutation{Probability: 1}
			Expect(policy.InitialStrength()).To(BeZero())

			mutated, err := policy.Mutate(ind, newRand())
			Expect(err).ToNot(HaveOccurred())
			Expect(mutated.Genome().Ones()).To(Equal(10))
			Expect(mutated.Age).To(Equal(2))
			Expect(mutated.Evaluated()).To(BeFalse())
		})

		It("adapts the mutation strength and caps it at 1", func() {
			policy := NewSelfAdaptiveMutation(0.3)
			Expect(policy.Tau).To(Equal(1 / math.Sqrt2))
			Expect(policy.InitialStrength()).To(Equal(0.3))

			rng := newRand()
			changed := false
			for i := 0; i < 50; i++ {
				mutated, err := policy.Mutate(ind, rng)
				Expect(err).ToNot(HaveOccurred())
				Expect(mutated.MutationStrength).To(BeNumerically(">", 0))
				Expect(mutated.MutationStrength).To(BeNumerically("<=", 1))
				if mutated.MutationStrength != ind.MutationStrength {
					changed = true
				}
			}
			Expect(changed).To(BeTrue())
			Expect(ind.MutationStrength).To(Equal(0.3))
		})

		It("requires a positive strength", func() {
			ind.MutationStrength = 0
			_, err := NewSelfAdaptiveMutation(0.3).Mutate(ind, newRand())
			Expect(err).To(MatchError(ErrContractViolation))
		})
	})

	It("adapts log-normally", func() {
		rng := newRand()
		logs := 0.0
		for i := 0; i < 5000; i++ {
			logs += math.Log(AdaptStrength(1, DefaultTau, rng))
		}
		Expect(logs / 5000).To(BeNumerically("~", 0, 0.05))
	})
})

var _ = Describe("Recombination", func() {
	DescribeTable("CrossoverPoint",
		func(point int, expectedA, expectedB string) {
			a, b, err := CrossoverPoint(MustParseGenome("000000"), MustParseGenome("111111"), point)
			Expect(err).ToNot(HaveOccurred())
			Expect(a.String()).To(Equal(expectedA))
			Expect(b.String()).To(Equal(expectedB))
		},
		Entry("at the start", 0, "111111", "000000"),
		Entry("in the middle", 2, "001111", "110000"),
		Entry("at the end", 6, "000000", "111111"),
	)

	It("preserves length and the bits of both parents", func() {
		rng := newRand()
		for i := 0; i < 100; i++ {
			n := 1 + rng.Intn(150)
			a, b := RandomGenome(n, rng), RandomGenome(n, rng)
			childA, childB, err := CrossOverWithRand(a, b, rng)
			Expect(err).ToNot(HaveOccurred())
			Expect(childA.Len()).To(Equal(n))
			Expect(childB.Len()).To(Equal(n))
			Expect(childA.Ones() + childB.Ones()).To(Equal(a.Ones() + b.Ones()))
			for k := 0; k < n; k++ {
				Expect(childA.Bit(k) + childB.Bit(k)).To(Equal(a.Bit(k) + b.Bit(k)))
			}
		}
	})

	It("rejects parents of different lengths and points out of range", func() {
		_, _, err := CrossOverWithRand(ZeroGenome(4), ZeroGenome(5), newRand())
		Expect(err).To(MatchError(ErrContractViolation))

		_, _, err = CrossoverPoint(ZeroGenome(4), ZeroGenome(4), 5)
		Expect(err).To(MatchError(ErrContractViolation))
	})

	DescribeTable("MultiPointCrossover",
		func(cuts []int, expected string) {
			parents := []Genome{
				MustParseGenome("00000000"),
				MustParseGenome("11111111"),
				MustParseGenome("01010101"),
			}
			child, err := MultiPointCrossover(parents, cuts)
			Expect(err).ToNot(HaveOccurred())
			Expect(child.String()).To(Equal(expected))
		},
		Entry("ordered cuts", []int{2, 5}, "00111101"),
		Entry("unordered cuts", []int{5, 2}, "00111101"),
		Entry("equal cuts", []int{3, 3}, "00010101"),
		Entry("cuts at the ends", []int{0, 8}, "11111111"),
	)

	It("validates multi-parent input", func() {
		_, err := MultiPointCrossover([]Genome{ZeroGenome(4)}, nil)
		Expect(err).To(MatchError(ErrContractViolation))

		_, err = MultiPointCrossover([]Genome{ZeroGenome(4), ZeroGenome(4), ZeroGenome(4)}, []int{1})
		Expect(err).To(MatchError(ErrContractViolation))

		_, err = MultiPointCrossover([]Genome{ZeroGenome(4), ZeroGenome(4), ZeroGenome(5)}, []int{1, 2})
		Expect(err).To(MatchError(ErrContractViolation))

		_, err = MultiPointCrossover([]Genome{ZeroGenome(4), ZeroGenome(4)}, []int{9})
		Expect(err).To(MatchError(ErrContractViolation))
	})

	It("copies one contiguous segment from the middle parent", func() {
		rng := newRand()
		parents := []Genome{ZeroGenome(30), ZeroGenome(30).Complement(), ZeroGenome(30)}
		for i := 0; i < 50; i++ {
			child, err := MultiParentCrossOverWithRand(parents, rng)
			Expect(err).ToNot(HaveOccurred())
			Expect(child.Len()).To(Equal(30))

			edges := 0
			for k := 1; k < child.Len(); k++ {
				if child.Bit(k) != child.Bit(k-1) {
					edges++
				}
			}
			Expect(edges).To(BeNumerically("<=", 2))
		}
	})

	Describe("Breed", func() {
		It("produces one child per parent with age 0", func() {
			rng := newRand()
			for _, n := range []int{2, 3, 5} {
				parents := make([]Individual, n)
				for i := range parents {
					parents[i] = NewIndividual(RandomGenome(12, rng), float64(i+1)/10)
					parents[i].Age = 4
				}

				children, err := Breed(parents, rng)
				Expect(err).ToNot(HaveOccurred())
				Expect(children).To(HaveLen(n))
				for i, child := range children {
					Expect(child.Genome().Len()).To(Equal(12))
					Expect(child.Age).To(BeZero())
					Expect(child.MutationStrength).To(Equal(parents[i].MutationStrength))
				}
				for _, p := range parents {
					Expect(p.Age).To(Equal(4))
				}
			}
		})

		It("needs two parents", func() {
			_, err := Breed([]Individual{NewIndividual(ZeroGenome(3), 0)}, newRand())
			Expect(err).To(MatchError(ErrContractViolation))
		})
	})
})
