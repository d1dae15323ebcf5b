// Command goevolve runs the evolutionary optimizer on a problem described by
// property widths and fitness/constraint expressions.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
