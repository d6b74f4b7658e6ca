package objective

import (
	"context"
	"math"
)

// Sphere is sum(x_i^2), minimum 0 at the origin.
func Sphere(_ context.Context, x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum
}

// Schwefel is the Schwefel function with its optimum shifted to x_i = 500,
// so that searches bounded to [0, 1000] are centred. Minimum ~0.
func Schwefel(_ context.Context, x []float64) float64 {
	value := 418.9829 * float64(len(x))
	for _, v := range x {
		t := v - 500.0
		value -= t * math.Sin(math.Sqrt(math.Abs(t)))
	}
	return value
}

// Rastrigin has a global minimum of 0 at the origin and many local minima.
func Rastrigin(_ context.Context, x []float64) float64 {
	sum := 10.0 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10.0*math.Cos(2*math.Pi*v)
	}
	return sum
}

// Rosenbrock has a global minimum of 0 at (1, ..., 1).
func Rosenbrock(_ context.Context, x []float64) float64 {
	sum := 0.0
	for i := 0; i+1 < len(x); i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum
}

// Builtins maps the names of the built-in objectives to their evaluators.
var Builtins = map[string]Info{
	"sphere":     {Description: "sum of squares, minimum 0 at the origin", Evaluator: Func(Sphere)},
	"schwefel":   {Description: "Schwefel function shifted to x=500, minimum ~0", Evaluator: Func(Schwefel)},
	"rastrigin":  {Description: "Rastrigin function, minimum 0 at the origin", Evaluator: Func(Rastrigin)},
	"rosenbrock": {Description: "Rosenbrock valley, minimum 0 at (1, ..., 1)", Evaluator: Func(Rosenbrock)},
}
