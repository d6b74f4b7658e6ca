package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/seantiz/forge/internal/model"
)

// LoadExperiment reads a YAML experiment file.
func LoadExperiment(path string) (*model.Experiment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open experiment: %w", err)
	}
	defer f.Close()

	exp, err := ParseExperiment(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return exp, nil
}

// ParseExperiment decodes a YAML experiment, applies defaults and validates
// it. Unknown keys are rejected.
//
//	objective: rastrigin
//	population: 200
//	crossover_proportion: 0.6
//	mutation_proportion: 0.1
//	generations: 50
//	alleles:
//	  - name: x
//	    lower_bound: -5.12
//	    upper_bound: 5.12
func ParseExperiment(r io.Reader) (*model.Experiment, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var exp model.Experiment
	if err := dec.Decode(&exp); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty experiment")
		}
		return nil, fmt.Errorf("decode experiment: %w", err)
	}

	exp.Normalize()
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return &exp, nil
}
