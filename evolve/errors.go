package evolve

import (
	"errors"
	"fmt"
	"math"
)

// ErrContractViolation marks caller bugs: mismatched genome lengths, probabilities
// outside [0, 1], reading fitness before evaluation.
var ErrContractViolation = errors.New("contract violation")

// ErrEmptyFeasibleSet is returned by selection when no individual may be selected.
var ErrEmptyFeasibleSet = errors.New("no feasible individuals to select from")

type ContractViolation struct {
	Op     string
	Detail string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrContractViolation, e.Op, e.Detail)
}

func (e *ContractViolation) Is(target error) bool {
	return target == ErrContractViolation
}

func violation(op, format string, args ...interface{}) error {
	return &ContractViolation{Op: op, Detail: fmt.Sprintf(format, args...)}
}

func checkProbability(op string, p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return violation(op, "probability %v outside [0, 1]", p)
	}
	return nil
}
