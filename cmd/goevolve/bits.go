package main

import (
	"fmt"
	"strconv"

	"github.com/kressi/evolutionary-algorithms/evolve"
	"github.com/spf13/cobra"
)

func newBitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bits MIN MAX [STEP]",
		Short: "Print the field width needed to encode a range",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			bounds := make([]float64, 3)
			bounds[2] = 1
			for i, arg := range args {
				v, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return fmt.Errorf("argument %d: %w", i+1, err)
				}
				bounds[i] = v
			}
			fmt.Fprintln(cmd.OutOrStdout(), evolve.BitsForRange(bounds[0], bounds[1], bounds[2]))
			return nil
		},
	}
}
