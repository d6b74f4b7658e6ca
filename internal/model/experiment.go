package model

import (
	"errors"
	"fmt"
)

// Experiment defaults, applied by Normalize.
const (
	DefaultPopulation  = 100
	DefaultGenerations = 1
)

// Allele declares one optimised parameter. A nil bound pair leaves the
// allele unbounded.
type Allele struct {
	Name       string   `json:"name" yaml:"name"`
	LowerBound *float64 `json:"lower_bound,omitempty" yaml:"lower_bound,omitempty"`
	UpperBound *float64 `json:"upper_bound,omitempty" yaml:"upper_bound,omitempty"`
}

// Bounded reports whether both bounds are set.
func (a Allele) Bounded() bool {
	return a.LowerBound != nil && a.UpperBound != nil
}

// Experiment describes a genetic search: the objective to minimise, the GA
// parameters and the allele set.
type Experiment struct {
	Objective            string   `json:"objective" yaml:"objective"`
	Population           int      `json:"population" yaml:"population"`
	CrossoverProportion  float64  `json:"crossover_proportion" yaml:"crossover_proportion"`
	MutationProportion   float64  `json:"mutation_proportion" yaml:"mutation_proportion"`
	Generations          int      `json:"generations" yaml:"generations"`
	BlockSampling        bool     `json:"block_sampling,omitempty" yaml:"block_sampling,omitempty"`
	DiscardStaleResults  bool     `json:"discard_stale_results,omitempty" yaml:"discard_stale_results,omitempty"`
	InvalidWeight        *float64 `json:"invalid_weight,omitempty" yaml:"invalid_weight,omitempty"`
	Seed                 int64    `json:"seed,omitempty" yaml:"seed,omitempty"`
	EvaluationDeadlineMS int      `json:"evaluation_deadline_ms,omitempty" yaml:"evaluation_deadline_ms,omitempty"`
	Alleles              []Allele `json:"alleles" yaml:"alleles"`
}

// Normalize fills zero values with defaults and clamps proportions to 1.0.
func (e *Experiment) Normalize() {
	if e.Population <= 0 {
		e.Population = DefaultPopulation
	}
	if e.Generations <= 0 {
		e.Generations = DefaultGenerations
	}
	e.CrossoverProportion = min(e.CrossoverProportion, 1.0)
	e.MutationProportion = min(e.MutationProportion, 1.0)
}

// Validate checks that the experiment can be run.
func (e Experiment) Validate() error {
	if e.Objective == "" {
		return errors.New("objective is required")
	}
	if len(e.Alleles) == 0 {
		return errors.New("at least one allele is required")
	}
	if e.CrossoverProportion < 0 || e.MutationProportion < 0 {
		return errors.New("proportions must be >= 0")
	}
	seen := make(map[string]bool, len(e.Alleles))
	for i, a := range e.Alleles {
		if a.Name == "" {
			return fmt.Errorf("allele %d: name is required", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("allele %q declared twice", a.Name)
		}
		seen[a.Name] = true
		if (a.LowerBound == nil) != (a.UpperBound == nil) {
			return fmt.Errorf("allele %q: both bounds must be set", a.Name)
		}
		if a.Bounded() && *a.LowerBound > *a.UpperBound {
			return fmt.Errorf("allele %q: lower bound %g exceeds upper bound %g", a.Name, *a.LowerBound, *a.UpperBound)
		}
	}
	return nil
}
