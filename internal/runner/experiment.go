package runner

import (
	"fmt"

	"github.com/seantiz/forge/internal/distributor"
	"github.com/seantiz/forge/internal/ga"
	"github.com/seantiz/forge/internal/model"
)

// NewEngine builds and initializes a GA engine for exp. The experiment is
// normalized in place and validated first.
func NewEngine(exp *model.Experiment, dist distributor.Distributor, opts ...ga.Option) (*ga.Engine, error) {
	exp.Normalize()
	if err := exp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid experiment: %w", err)
	}

	if exp.Seed != 0 {
		opts = append(opts, ga.WithSeed(exp.Seed))
	}
	if exp.InvalidWeight != nil {
		opts = append(opts, ga.WithInvalidWeight(*exp.InvalidWeight))
	}
	if exp.DiscardStaleResults {
		opts = append(opts, ga.WithStalePolicy(ga.DiscardStale))
	}

	eng := ga.New(dist, opts...)
	for _, a := range exp.Alleles {
		eng.AddAllele(a.Name)
		if a.Bounded() {
			eng.AddLimit(a.Name, *a.LowerBound, *a.UpperBound)
		}
	}
	eng.SetCapacity(exp.Population)
	eng.SetCrossoverRate(exp.CrossoverProportion)
	eng.SetMutationRate(exp.MutationProportion)
	eng.SetBlockSampling(exp.BlockSampling)

	if err := eng.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize engine: %w", err)
	}
	return eng, nil
}

// BestVariables converts the engine's best-so-far into run variables.
func BestVariables(eng *ga.Engine) (*float64, []model.Variable) {
	fitness, vars, ok := eng.Best()
	if !ok {
		return nil, nil
	}
	pairs := vars.Pairs()
	out := make([]model.Variable, len(pairs))
	for i, p := range pairs {
		out[i] = model.Variable{Name: p.Name, Value: p.Value}
	}
	return &fitness, out
}
