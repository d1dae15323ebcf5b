package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kressi/evolutionary-algorithms/consoleplot"
	"github.com/kressi/evolutionary-algorithms/evolve"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var numPrinter = message.NewPrinter(language.English)

func newRunCmd(root *rootOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evolve a population and report the champions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), root.configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := []evolve.Option{evolve.WithLogger(root.logger)}
			var registry *prometheus.Registry
			if metricsAddr != "" {
				registry = prometheus.NewRegistry()
				opts = append(opts, evolve.WithMetrics(evolve.NewMetrics(registry)))
			}

			sim, err := newSimulation(cfg, opts...)
			if err != nil {
				return err
			}

			var (
				server    *http.Server
				serverErr <-chan error
			)
			if registry != nil {
				server, serverErr, err = serveMetrics(metricsAddr, registry)
				if err != nil {
					return err
				}
				defer server.Close()
			}

			result, err := sim.Run(ctx)
			if result != nil {
				if reportErr := report(cmd.OutOrStdout(), cfg, sim, result); reportErr != nil {
					root.logger.Warn("cannot report result", "err", reportErr)
				}
			}
			if err != nil {
				return err
			}

			if server != nil {
				root.logger.Info("run finished, serving metrics until interrupted", "addr", server.Addr)
				select {
				case <-ctx.Done():
				case err := <-serverErr:
					return err
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			}
			return nil
		},
	}

	defaultConfig().bindFlags(cmd.Flags())
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func newSimulation(cfg *Config, opts ...evolve.Option) (*evolve.Simulation, error) {
	objective, err := evolve.NewExprObjective(cfg.Properties, cfg.Fitness, cfg.Constraint, cfg.criteriaExprs()...)
	if err != nil {
		return nil, err
	}
	return evolve.NewSimulation(cfg.Params(), objective, opts...)
}

// serveMetrics binds addr and serves registry on /metrics. A failure to
// serve after binding arrives on the returned channel, which is closed once
// the server stops.
func serveMetrics(addr string, registry *prometheus.Registry) (*http.Server, <-chan error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics server: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: listener.Addr().String(), Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	return server, errc, nil
}

func report(w io.Writer, cfg *Config, sim *evolve.Simulation, result *evolve.Result) error {
	numPrinter.Fprintf(w, "Run %s (seed %d): %d generations, %d evaluations, %d cache hits, %s\n",
		result.RunID, result.Seed, result.Final.Generation,
		sim.Evaluator().Evaluations(), sim.Evaluator().CacheHits(), result.Elapsed.Round(time.Millisecond))

	if result.TerminatedEarly {
		numPrinter.Fprintf(w, "Terminated early after %d generations: %v\n", result.Final.Generation, result.Cause)
	}

	champions := result.Champions()
	if len(champions) == 0 {
		fmt.Fprintln(w, "No feasible solution found.")
		return nil
	}

	if !cfg.Plot.Disabled {
		x, y := evolve.ChampionSeries(champions)
		opts := consoleplot.DefaultOptions()
		opts.Width, opts.Height = cfg.Plot.Width, cfg.Plot.Height
		if err := consoleplot.Plot(w, x, y, opts); err != nil {
			return err
		}
	}

	best, _ := result.Superchampion()
	numPrinter.Fprintf(w, "Superchamp (generation %d): %s Fitness: %.4f\n", best.Generation, describe(cfg.Properties, best.Individual), best.Fitness())
	if len(cfg.Criteria) > 0 {
		for i, score := range best.Scores() {
			numPrinter.Fprintf(w, "  %s %s: %.4f\n", cfg.Criteria[i].direction(), cfg.Criteria[i].Expr, score)
		}
	}
	return nil
}

func describe(spec evolve.PropertySpec, ind evolve.Individual) string {
	values, err := spec.DecodeScaled(ind.Genome())
	if err != nil {
		return ind.Genome().String()
	}
	fields := make([]string, len(spec))
	for i, p := range spec {
		fields[i] = numPrinter.Sprintf("%s: %v", p.Name, values[i])
	}
	return strings.Join(fields, " ")
}
