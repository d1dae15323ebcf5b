// Package consoleplot renders series of non-negative points as ASCII art.
package consoleplot

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	ErrLengthMismatch = errors.New("x and y differ in length")
	ErrNegative       = errors.New("negative values cannot be plotted")
	ErrEmpty          = errors.New("nothing to plot")
)

type Options struct {
	// Canvas size in characters. Points are scaled so the largest value of
	// each axis lands on the last column or row.
	Width  int
	Height int

	// Character marking a point
	Mark byte
}

func DefaultOptions() Options {
	return Options{
		Width:  100,
		Height: 20,
		Mark:   '*',
	}
}

// Plot draws the points (x[i], y[i]) on a canvas with the origin at the
// bottom left, followed by a footer with both axes' bounds.
func Plot(w io.Writer, x, y []float64, opts Options) error {
	if len(x) != len(y) {
		return fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(x), len(y))
	}
	if len(x) == 0 {
		return ErrEmpty
	}
	if opts.Width < 1 || opts.Height < 1 {
		return fmt.Errorf("canvas %dx%d is too small", opts.Width, opts.Height)
	}
	if opts.Mark == 0 {
		opts.Mark = '*'
	}

	minX, maxX, err := bounds(x)
	if err != nil {
		return fmt.Errorf("x: %w", err)
	}
	minY, maxY, err := bounds(y)
	if err != nil {
		return fmt.Errorf("y: %w", err)
	}

	canvas := make([][]byte, opts.Height+1)
	for row := range canvas {
		canvas[row] = make([]byte, opts.Width+1)
		for col := range canvas[row] {
			canvas[row][col] = ' '
		}
	}

	scaleX, scaleY := scale(maxX, opts.Width), scale(maxY, opts.Height)
	for i := range x {
		col := int(x[i] * scaleX)
		row := opts.Height - int(y[i]*scaleY)
		canvas[row][col] = opts.Mark
	}

	out := bufio.NewWriter(w)
	for _, row := range canvas {
		out.Write(row)
		out.WriteByte('\n')
	}
	fmt.Fprintf(out, "Min x: %g Max x: %g Min y: %g Max y: %g\n", minX, maxX, minY, maxY)
	return out.Flush()
}

func bounds(values []float64) (min, max float64, err error) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if v < 0 {
			return 0, 0, fmt.Errorf("%w: %g", ErrNegative, v)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, fmt.Errorf("cannot plot %g", v)
		}
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	return min, max, nil
}

func scale(max float64, size int) float64 {
	if max == 0 {
		return float64(size)
	}
	return float64(size) / max
}
