package evolve

import (
	"context"
	"fmt"
	"math"
	"regexp"

	"github.com/PaesslerAG/gval"
)

// Objective scores decoded property values. Implementations must be
// deterministic and defined for every value the encoding can produce; with
// NumEvaluationWorkers > 0 they must also be safe for concurrent use.
type Objective interface {
	Fitness(decoded []uint64) (float64, error)
	Feasible(decoded []uint64) (bool, error)
}

// MultiObjective additionally scores a solution on several criteria, one
// value per criterion, for vector-evaluated selection.
type MultiObjective interface {
	Objective
	Scores(decoded []uint64) ([]float64, error)
}

// ObjectiveFuncs adapts plain functions to an Objective. A nil ConstraintFunc
// accepts every solution. Without ScoreFuncs the only score is the fitness.
type ObjectiveFuncs struct {
	FitnessFunc    func(decoded []uint64) float64
	ConstraintFunc func(decoded []uint64) bool
	ScoreFuncs     []func(decoded []uint64) float64
}

func (o ObjectiveFuncs) Fitness(decoded []uint64) (float64, error) {
	return o.FitnessFunc(decoded), nil
}

func (o ObjectiveFuncs) Feasible(decoded []uint64) (bool, error) {
	if o.ConstraintFunc == nil {
		return true, nil
	}
	return o.ConstraintFunc(decoded), nil
}

func (o ObjectiveFuncs) Scores(decoded []uint64) ([]float64, error) {
	if len(o.ScoreFuncs) == 0 {
		return []float64{o.FitnessFunc(decoded)}, nil
	}
	scores := make([]float64, len(o.ScoreFuncs))
	for i, f := range o.ScoreFuncs {
		scores[i] = f(decoded)
	}
	return scores, nil
}

// ExprLang is the expression language for ExprObjective: gval's full
// language with a unary "+" and the constants pi and e.
var ExprLang = gval.NewLanguage(
	gval.Full(),
	gval.PrefixOperator("+", func(c context.Context, parameter interface{}) (interface{}, error) {
		p, isFloat := parameter.(float64)
		if !isFloat {
			return nil, fmt.Errorf("expected float, got: %v", parameter)
		}

		return +p, nil
	}),
	gval.Constant("pi", math.Pi),
	gval.Constant("e", math.E),
	gval.Function("sqrt", func(arguments ...interface{}) (interface{}, error) {
		if len(arguments) != 1 {
			return nil, fmt.Errorf("sqrt expects 1 argument, got %d", len(arguments))
		}
		x, isFloat := arguments[0].(float64)
		if !isFloat {
			return nil, fmt.Errorf("sqrt expects a number, got: %v", arguments[0])
		}
		return math.Sqrt(x), nil
	}),
)

// exprIdentifier matches the property names an expression can refer to;
// anything else, such as "wall-thickness", parses as arithmetic.
var exprIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedNames are resolved by ExprLang before any parameter of the same name.
var reservedNames = map[string]bool{
	"pi":    true,
	"e":     true,
	"sqrt":  true,
	"true":  true,
	"false": true,
	"nil":   true,
	"in":    true,
}

// checkExprNames rejects property names an expression could not refer to.
func checkExprNames(names []string) error {
	for _, name := range names {
		if !exprIdentifier.MatchString(name) {
			return violation("objective", "property name %q is not an identifier", name)
		}
		if reservedNames[name] {
			return violation("objective", "property name %q is reserved in expressions", name)
		}
	}
	return nil
}

// ExprObjective evaluates fitness and constraint expressions over the
// property names of a spec, e.g.
//
//	fitness:    pi*diameter**2/2 + pi*diameter*height
//	constraint: pi*diameter**2*height/4 >= 300
//
// Each property name is bound to its unscaled decoded integer. Criteria are
// further numeric expressions scored for vector-evaluated selection.
type ExprObjective struct {
	names []string

	FitnessExpr    string
	ConstraintExpr string
	CriteriaExprs  []string

	fitness    gval.Evaluable
	constraint gval.Evaluable
	criteria   []gval.Evaluable
}

// NewExprObjective compiles all expressions and checks them once against
// the all-zero genome. An empty constraint accepts every solution. Property
// names must be identifiers other than the language's constants, functions
// and keywords.
func NewExprObjective(spec PropertySpec, fitnessExpr, constraintExpr string, criteriaExprs ...string) (*ExprObjective, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := checkExprNames(spec.Names()); err != nil {
		return nil, err
	}

	obj := &ExprObjective{
		names:          spec.Names(),
		FitnessExpr:    fitnessExpr,
		ConstraintExpr: constraintExpr,
		CriteriaExprs:  criteriaExprs,
	}

	var err error
	obj.fitness, err = ExprLang.NewEvaluable(fitnessExpr)
	if err != nil {
		return nil, fmt.Errorf("parse fitness %q: %w", fitnessExpr, err)
	}
	if constraintExpr != "" {
		obj.constraint, err = ExprLang.NewEvaluable(constraintExpr)
		if err != nil {
			return nil, fmt.Errorf("parse constraint %q: %w", constraintExpr, err)
		}
	}
	for _, expr := range criteriaExprs {
		criterion, err := ExprLang.NewEvaluable(expr)
		if err != nil {
			return nil, fmt.Errorf("parse criterion %q: %w", expr, err)
		}
		obj.criteria = append(obj.criteria, criterion)
	}

	zero := make([]uint64, len(spec))
	if _, err := obj.Fitness(zero); err != nil {
		return nil, err
	}
	if _, err := obj.Feasible(zero); err != nil {
		return nil, err
	}
	if _, err := obj.Scores(zero); err != nil {
		return nil, err
	}
	return obj, nil
}

func (o *ExprObjective) parameters(decoded []uint64) (map[string]interface{}, error) {
	if len(decoded) != len(o.names) {
		return nil, violation("objective", "got %d values for %d properties", len(decoded), len(o.names))
	}
	params := make(map[string]interface{}, len(decoded))
	for i, name := range o.names {
		params[name] = float64(decoded[i])
	}
	return params, nil
}

func (o *ExprObjective) Fitness(decoded []uint64) (float64, error) {
	params, err := o.parameters(decoded)
	if err != nil {
		return 0, err
	}
	fitness, err := o.fitness.EvalFloat64(context.Background(), params)
	if err != nil {
		return 0, fmt.Errorf("evaluate fitness %q: %w", o.FitnessExpr, err)
	}
	return fitness, nil
}

func (o *ExprObjective) Feasible(decoded []uint64) (bool, error) {
	if o.constraint == nil {
		return true, nil
	}
	params, err := o.parameters(decoded)
	if err != nil {
		return false, err
	}
	feasible, err := o.constraint.EvalBool(context.Background(), params)
	if err != nil {
		return false, fmt.Errorf("evaluate constraint %q: %w", o.ConstraintExpr, err)
	}
	return feasible, nil
}

// Scores evaluates every criterion, or just the fitness when there are none.
func (o *ExprObjective) Scores(decoded []uint64) ([]float64, error) {
	if len(o.criteria) == 0 {
		fitness, err := o.Fitness(decoded)
		if err != nil {
			return nil, err
		}
		return []float64{fitness}, nil
	}

	params, err := o.parameters(decoded)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(o.criteria))
	for i, criterion := range o.criteria {
		scores[i], err = criterion.EvalFloat64(context.Background(), params)
		if err != nil {
			return nil, fmt.Errorf("evaluate criterion %q: %w", o.CriteriaExprs[i], err)
		}
	}
	return scores, nil
}
