package evolve

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the progress of simulations as Prometheus collectors.
type Metrics struct {
	Generations     prometheus.Counter
	Evaluations     prometheus.Counter
	CacheHits       prometheus.Counter
	EarlyStops      prometheus.Counter
	ChampionFitness prometheus.Gauge
	FeasibleRatio   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Generations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "evolve",
			Name:      "generations_total",
			Help:      "Completed generations.",
		}),
		Evaluations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "evolve",
			Name:      "evaluations_total",
			Help:      "Objective evaluations, excluding cache hits.",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "evolve",
			Name:      "fitness_cache_hits_total",
			Help:      "Evaluations answered from the fitness cache.",
		}),
		EarlyStops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "evolve",
			Name:      "early_terminations_total",
			Help:      "Runs stopped because no individual was feasible.",
		}),
		ChampionFitness: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "evolve",
			Name:      "champion_fitness",
			Help:      "Fitness of the latest generation's champion.",
		}),
		FeasibleRatio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "evolve",
			Name:      "feasible_ratio",
			Help:      "Share of the latest population satisfying the constraint.",
		}),
	}
}

// observeGeneration records one finished generation. Evaluation counters
// are fed as deltas of the evaluator's running totals.
func (m *Metrics) observeGeneration(pop Population, champion *Champion, evaluations, hits uint64) {
	if m == nil {
		return
	}
	m.Generations.Inc()
	m.Evaluations.Add(float64(evaluations))
	m.CacheHits.Add(float64(hits))
	if len(pop) > 0 {
		m.FeasibleRatio.Set(float64(pop.CountFeasible()) / float64(len(pop)))
	}
	if champion != nil {
		m.ChampionFitness.Set(champion.Fitness())
	}
}

func (m *Metrics) observeEarlyStop() {
	if m == nil {
		return
	}
	m.EarlyStops.Inc()
}
