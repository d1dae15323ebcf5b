package main

import (
	"github.com/kressi/evolutionary-algorithms/evolve"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"
)

var _ = Describe("Config", func() {
	resolve := func(path string, args ...string) (*Config, error) {
		cmd := newRunCmd(&rootOptions{})
		Expect(cmd.Flags().Parse(args)).To(Succeed())
		return resolveConfig(cmd.Flags(), path)
	}

	It("defaults to the cylinder problem", func() {
		cfg, err := resolve("")
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Properties.Names()).To(Equal([]string{"diameter", "height"}))
		Expect(cfg.Params().Minimize).To(BeTrue())
		Expect(*cfg.Params()).To(MatchFields(IgnoreExtras, Fields{
			"PopulationSize": Equal(30),
			"Generations":    Equal(100),
			"Parents":        Equal(2),
		}))
	})

	It("reads a YAML file", func() {
		cfg, err := resolve("testdata/cylinder.yaml")
		Expect(err).ToNot(HaveOccurred())
		Expect(*cfg).To(MatchFields(IgnoreExtras, Fields{
			"Population":          Equal(40),
			"Generations":         Equal(60),
			"MutationProbability": Equal(0.02),
			"CrossoverRate":       Equal(0.25),
			"Seed":                BeEquivalentTo(11),
			"Parents":             Equal(2),
			"Plot":                Equal(PlotConfig{Width: 60, Height: 15}),
		}))
	})

	It("lets flags override the file", func() {
		cfg, err := resolve("testdata/cylinder.yaml", "--generations", "5", "--maximize", "--property", "r=3", "--property", "h=4,w=2")
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Generations).To(Equal(5))
		Expect(cfg.Population).To(Equal(40))
		Expect(cfg.Params().Minimize).To(BeFalse())
		Expect(cfg.Properties).To(Equal(evolve.PropertySpec{
			{Name: "r", Bits: 3},
			{Name: "h", Bits: 4},
			{Name: "w", Bits: 2},
		}))
	})

	It("rejects invalid files", func() {
		_, err := resolve("testdata/invalid.yaml")
		Expect(err).To(MatchError(ContainSubstring("Population")))

		_, err = resolve("testdata/missing.yaml")
		Expect(err).To(HaveOccurred())
	})

	It("rejects options the engine cannot run", func() {
		_, err := resolve("", "--property", "x=70")
		Expect(err).To(MatchError(evolve.ErrContractViolation))

		_, err = resolve("", "--crossover-rate", "2")
		Expect(err).To(HaveOccurred())
	})

	It("accepts a fixed run without self-adaptive options", func() {
		cfg, err := resolve("", "--initial-mutation-strength", "0", "--tau", "0")
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Params().MutationPolicy().Name()).ToNot(Equal("self-adaptive"))

		_, err = resolve("", "--initial-mutation-strength", "0", "--self-adaptive")
		Expect(err).To(MatchError(evolve.ErrContractViolation))
	})

	It("reads selection criteria", func() {
		cfg, err := resolve("testdata/vega.yaml")
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Criteria).To(Equal([]CriterionConfig{
			{Expr: "pi*diameter**2*height/4", Maximize: true},
			{Expr: "pi*diameter**2/2 + pi*diameter*height"},
		}))
		Expect(cfg.Params().Criteria).To(Equal([]evolve.Criterion{
			{Score: 0, Minimize: false},
			{Score: 1, Minimize: true},
		}))
	})

	It("lets criterion flags replace the file", func() {
		cfg, err := resolve("testdata/vega.yaml", "--criterion", "max:diameter*height", "--criterion", "min: height")
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Criteria).To(Equal([]CriterionConfig{
			{Expr: "diameter*height", Maximize: true},
			{Expr: "height"},
		}))
	})

	It("sets the offspring count", func() {
		cfg, err := resolve("", "--offspring", "49", "--population-size", "7", "--parents", "3")
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Params().Offspring).To(Equal(49))

		_, err = resolve("", "--offspring", "-1")
		Expect(err).To(HaveOccurred())

		_, err = resolve("testdata/vega.yaml", "--offspring", "10")
		Expect(err).To(MatchError(evolve.ErrContractViolation))
	})

	It("rejects malformed criteria", func() {
		cmd := newRunCmd(&rootOptions{})
		Expect(cmd.Flags().Parse([]string{"--criterion", "height"})).ToNot(Succeed())
		Expect(cmd.Flags().Parse([]string{"--criterion", "up:height"})).ToNot(Succeed())
		Expect(cmd.Flags().Parse([]string{"--criterion", "max:"})).ToNot(Succeed())
	})

	It("rejects malformed properties", func() {
		cmd := newRunCmd(&rootOptions{})
		Expect(cmd.Flags().Parse([]string{"--property", "x"})).ToNot(Succeed())
		Expect(cmd.Flags().Parse([]string{"--property", "x=y"})).ToNot(Succeed())
	})
})
