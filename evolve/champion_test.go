package evolve

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"
)

func championsOf(fitness ...float64) []Champion {
	champions := make([]Champion, len(fitness))
	for i, f := range fitness {
		champions[i] = Champion{Generation: i + 1, Individual: scored("0", f, true)}
	}
	return champions
}

var _ = Describe("Champions", func() {
	It("finds the best feasible individual, first one on ties", func() {
		pop := Population{
			scored("00", 5, true),
			scored("01", 1, false),
			scored("10", 2, true),
			scored("11", 2, true),
		}

		best, ok := FindChampion(pop, true)
		Expect(ok).To(BeTrue())
		Expect(best.Genome().String()).To(Equal("10"))

		best, ok = FindChampion(pop, false)
		Expect(ok).To(BeTrue())
		Expect(best.Fitness()).To(Equal(5.0))
	})

	It("finds nothing without feasible individuals", func() {
		_, ok := FindChampion(Population{scored("0", 1, false), NewIndividual(ZeroGenome(1), 0)}, true)
		Expect(ok).To(BeFalse())
	})

	It("keeps a copy independent of the population", func() {
		pop := Population{scored("0101", 1, true)}
		best, _ := FindChampion(pop, true)
		pop[0] = pop[0].WithGenome(MustParseGenome("1111"))
		Expect(best.Genome().String()).To(Equal("0101"))
		Expect(best.Evaluated()).To(BeTrue())
	})

	It("projects the history onto the best fitness so far", func() {
		champions := championsOf(10, 12, 8, 9, 8, 3)
		Expect(BestSoFar(champions, true)).To(Equal([]float64{10, 10, 8, 8, 8, 3}))
		Expect(BestSoFar(champions, false)).To(Equal([]float64{10, 12, 12, 12, 12, 12}))
		Expect(BestSoFar(nil, true)).To(BeEmpty())
	})

	It("picks the superchampion", func() {
		champions := championsOf(10, 3, 8, 3)
		best, ok := Superchampion(champions, true)
		Expect(ok).To(BeTrue())
		Expect(best).To(MatchFields(IgnoreExtras, Fields{
			"Generation": Equal(2),
		}))

		_, ok = Superchampion(nil, true)
		Expect(ok).To(BeFalse())
	})

	It("exposes the history as a plot series", func() {
		x, y := ChampionSeries(championsOf(4, 2))
		Expect(x).To(Equal([]float64{1, 2}))
		Expect(y).To(Equal([]float64{4, 2}))
	})
})
