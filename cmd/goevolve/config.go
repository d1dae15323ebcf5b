package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kressi/evolutionary-algorithms/evolve"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

var configValidate = validator.New()

// Config is the run configuration as read from a YAML file and flags.
type Config struct {
	Properties evolve.PropertySpec `yaml:"properties" validate:"required,min=1"`

	// Expressions over the property names, see evolve.ExprObjective
	Fitness    string `yaml:"fitness" validate:"required"`
	Constraint string `yaml:"constraint"`

	Population  int  `yaml:"population" validate:"gte=1"`
	Generations int  `yaml:"generations" validate:"gte=1"`
	Maximize    bool `yaml:"maximize"`

	MutationProbability     float64 `yaml:"mutation_probability" validate:"gte=0,lte=1"`
	SelfAdaptive            bool    `yaml:"self_adaptive"`
	InitialMutationStrength float64 `yaml:"initial_mutation_strength" validate:"gte=0,lte=1"`
	Tau                     float64 `yaml:"tau" validate:"gte=0"`

	CrossoverRate float64 `yaml:"crossover_rate" validate:"gte=0,lte=1"`
	Parents       int     `yaml:"parents" validate:"gte=2"`
	MaxAge        int     `yaml:"max_age" validate:"gte=0"`
	Offspring     int     `yaml:"offspring" validate:"gte=0"`

	// Select one sub-population per criterion instead of by fitness
	Criteria []CriterionConfig `yaml:"criteria" validate:"dive"`

	Seed      int64 `yaml:"seed"`
	Workers   int   `yaml:"workers" validate:"gte=0"`
	CacheSize int   `yaml:"cache_size" validate:"gte=0"`

	Plot PlotConfig `yaml:"plot"`
}

type CriterionConfig struct {
	Expr     string `yaml:"expr" validate:"required"`
	Maximize bool   `yaml:"maximize"`
}

func (c CriterionConfig) direction() string {
	if c.Maximize {
		return "max"
	}
	return "min"
}

type PlotConfig struct {
	Disabled bool `yaml:"disabled"`
	Width    int  `yaml:"width" validate:"gte=1"`
	Height   int  `yaml:"height" validate:"gte=1"`
}

// defaultConfig sizes a cylinder of at least 300 volume units with the
// smallest surface.
func defaultConfig() *Config {
	params := evolve.DefaultSimulationParams()
	return &Config{
		Properties: evolve.PropertySpec{
			{Name: "diameter", Bits: 5},
			{Name: "height", Bits: 5},
		},
		Fitness:    "pi*diameter**2/2 + pi*diameter*height",
		Constraint: "pi*diameter**2*height/4 >= 300",

		Population:  params.PopulationSize,
		Generations: params.Generations,
		Maximize:    !params.Minimize,

		MutationProbability:     params.MutationProbability,
		InitialMutationStrength: params.InitialMutationStrength,
		Tau:                     params.Tau,

		CrossoverRate: params.CrossoverRate,
		Parents:       params.Parents,
		MaxAge:        params.MaxAge,

		Workers:   params.NumEvaluationWorkers,
		CacheSize: params.FitnessCacheSize,

		Plot: PlotConfig{Width: 100, Height: 20},
	}
}

func (c *Config) bindFlags(fs *pflag.FlagSet) {
	fs.Var(&propertiesValue{spec: &c.Properties}, "property", "Genome field as name=bits; repeat for more fields (replaces the configured properties)")
	fs.StringVar(&c.Fitness, "fitness", c.Fitness, "Fitness expression over the property names")
	fs.StringVar(&c.Constraint, "constraint", c.Constraint, "Feasibility expression over the property names; empty accepts everything")

	fs.IntVar(&c.Population, "population-size", c.Population, "Number of individuals in the population")
	fs.IntVar(&c.Generations, "generations", c.Generations, "Number of generations to evolve")
	fs.BoolVar(&c.Maximize, "maximize", c.Maximize, "Search for the highest fitness instead of the lowest")

	fs.Float64Var(&c.MutationProbability, "mutation-probability", c.MutationProbability, "Probability of flipping each bit")
	fs.BoolVar(&c.SelfAdaptive, "self-adaptive", c.SelfAdaptive, "Evolve a mutation strength per individual")
	fs.Float64Var(&c.InitialMutationStrength, "initial-mutation-strength", c.InitialMutationStrength, "Mutation strength of the initial population when self-adaptive")
	fs.Float64Var(&c.Tau, "tau", c.Tau, "Learning rate of the self-adaptive mutation strength")

	fs.Float64Var(&c.CrossoverRate, "crossover-rate", c.CrossoverRate, "Fraction of the population recombined each generation")
	fs.IntVar(&c.Parents, "parents", c.Parents, "Parents per recombination; 3 or more use multi-parent crossover")
	fs.IntVar(&c.MaxAge, "max-age", c.MaxAge, "Generations an individual may survive. Set to 0 to disable aging.")
	fs.IntVar(&c.Offspring, "offspring", c.Offspring, "Children bred each generation and selected together with their parents. Set to 0 to replace the population instead.")
	fs.Var(&criteriaValue{criteria: &c.Criteria}, "criterion", "Selection criterion as min:expr or max:expr; repeat for one sub-population each (replaces the configured criteria)")

	fs.Int64Var(&c.Seed, "seed", c.Seed, "Random seed; 0 picks one")
	fs.IntVar(&c.Workers, "num-evaluation-workers", c.Workers, "Number of goroutines evaluating the population. Set to 0 to disable concurrency.")
	fs.IntVar(&c.CacheSize, "cache-size", c.CacheSize, "Number of memoized genome evaluations. Set to 0 to disable the cache.")

	fs.BoolVar(&c.Plot.Disabled, "no-plot", c.Plot.Disabled, "Do not plot the champion fitness")
	fs.IntVar(&c.Plot.Width, "plot-width", c.Plot.Width, "Width of the champion plot")
	fs.IntVar(&c.Plot.Height, "plot-height", c.Plot.Height, "Height of the champion plot")
}

// resolveConfig starts from the defaults, applies the file at path if any,
// then every flag the user set on flags.
func resolveConfig(flags *pflag.FlagSet, path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	overrides := pflag.NewFlagSet("overrides", pflag.ContinueOnError)
	cfg.bindFlags(overrides)
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil || overrides.Lookup(f.Name) == nil {
			return
		}
		if slice, ok := f.Value.(pflag.SliceValue); ok {
			err = overrides.Lookup(f.Name).Value.(pflag.SliceValue).Replace(slice.GetSlice())
			return
		}
		err = overrides.Set(f.Name, f.Value.String())
	})
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.Params().Validate()
}

func (c *Config) Params() *evolve.SimulationParams {
	params := evolve.DefaultSimulationParams()
	params.Properties = c.Properties
	params.PopulationSize = c.Population
	params.Generations = c.Generations
	params.Minimize = !c.Maximize
	params.MutationProbability = c.MutationProbability
	params.SelfAdaptive = c.SelfAdaptive
	params.InitialMutationStrength = c.InitialMutationStrength
	params.Tau = c.Tau
	params.CrossoverRate = c.CrossoverRate
	params.Parents = c.Parents
	params.MaxAge = c.MaxAge
	params.Offspring = c.Offspring
	for i, criterion := range c.Criteria {
		params.Criteria = append(params.Criteria, evolve.Criterion{Score: i, Minimize: !criterion.Maximize})
	}
	params.Seed = c.Seed
	params.NumEvaluationWorkers = c.Workers
	params.FitnessCacheSize = c.CacheSize
	return params
}

func (c *Config) criteriaExprs() []string {
	exprs := make([]string, len(c.Criteria))
	for i, criterion := range c.Criteria {
		exprs[i] = criterion.Expr
	}
	return exprs
}

// propertiesValue is a repeatable flag of name=bits pairs. The first Set
// replaces whatever spec was configured before.
type propertiesValue struct {
	spec    *evolve.PropertySpec
	changed bool
}

func (v *propertiesValue) String() string {
	if v.spec == nil {
		return ""
	}
	fields := make([]string, len(*v.spec))
	for i, p := range *v.spec {
		fields[i] = p.Name + "=" + strconv.Itoa(p.Bits)
	}
	return strings.Join(fields, ",")
}

func (v *propertiesValue) Set(s string) error {
	if !v.changed {
		*v.spec = nil
		v.changed = true
	}
	for _, field := range strings.Split(s, ",") {
		name, bits, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok || name == "" {
			return fmt.Errorf("malformed property %q, expected name=bits", field)
		}
		n, err := strconv.Atoi(bits)
		if err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
		*v.spec = append(*v.spec, evolve.Property{Name: name, Bits: n})
	}
	return nil
}

func (v *propertiesValue) Type() string {
	return "name=bits"
}

// criteriaValue is a repeatable flag of min:expr or max:expr criteria. The
// first Set replaces whatever criteria were configured before.
type criteriaValue struct {
	criteria *[]CriterionConfig
	changed  bool
}

func parseCriterion(s string) (CriterionConfig, error) {
	direction, expr, ok := strings.Cut(s, ":")
	expr = strings.TrimSpace(expr)
	if !ok || expr == "" {
		return CriterionConfig{}, fmt.Errorf("malformed criterion %q, expected min:expr or max:expr", s)
	}
	switch strings.TrimSpace(direction) {
	case "min":
		return CriterionConfig{Expr: expr}, nil
	case "max":
		return CriterionConfig{Expr: expr, Maximize: true}, nil
	}
	return CriterionConfig{}, fmt.Errorf("criterion %q: direction must be min or max", s)
}

func (v *criteriaValue) String() string {
	return "[" + strings.Join(v.GetSlice(), ", ") + "]"
}

func (v *criteriaValue) Set(s string) error {
	if !v.changed {
		*v.criteria = nil
		v.changed = true
	}
	return v.Append(s)
}

func (v *criteriaValue) Type() string {
	return "min|max:expr"
}

func (v *criteriaValue) Append(s string) error {
	criterion, err := parseCriterion(s)
	if err != nil {
		return err
	}
	*v.criteria = append(*v.criteria, criterion)
	return nil
}

func (v *criteriaValue) Replace(values []string) error {
	criteria := make([]CriterionConfig, 0, len(values))
	for _, s := range values {
		criterion, err := parseCriterion(s)
		if err != nil {
			return err
		}
		criteria = append(criteria, criterion)
	}
	*v.criteria = criteria
	v.changed = true
	return nil
}

func (v *criteriaValue) GetSlice() []string {
	if v.criteria == nil {
		return nil
	}
	values := make([]string, len(*v.criteria))
	for i, c := range *v.criteria {
		values[i] = c.direction() + ":" + c.Expr
	}
	return values
}
