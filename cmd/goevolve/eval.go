package main

import (
	"strconv"

	"github.com/kressi/evolutionary-algorithms/evolve"
	"github.com/spf13/cobra"
)

func newEvalCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval GENOME...",
		Short: "Decode and evaluate genomes such as 01011.00110",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), root.configPath)
			if err != nil {
				return err
			}
			objective, err := evolve.NewExprObjective(cfg.Properties, cfg.Fitness, cfg.Constraint)
			if err != nil {
				return err
			}

			for _, arg := range args {
				genome, err := evolve.ParseGenome(arg)
				if err != nil {
					return err
				}
				ind := evolve.NewIndividual(genome, 0)
				if err := ind.Evaluate(cfg.Properties, objective); err != nil {
					return err
				}
				numPrinter.Fprintf(cmd.OutOrStdout(), "%s %s Fitness: %.4f Feasible: %s\n",
					cfg.Properties.Format(genome), describe(cfg.Properties, ind), ind.Fitness(), strconv.FormatBool(ind.Feasible()))
			}
			return nil
		},
	}

	defaultConfig().bindFlags(cmd.Flags())
	return cmd
}
