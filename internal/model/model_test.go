package model

import (
	"regexp"
	"testing"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func ptr(v float64) *float64 { return &v }

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusCompleted, false},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusCancelled, true},
		{StatusCompleted, StatusRunning, false},
		{StatusFailed, StatusPending, false},
	}
	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []string{StatusCompleted, StatusFailed, StatusCancelled} {
		if !Terminal(s) {
			t.Errorf("Terminal(%q) = false, want true", s)
		}
	}
	for _, s := range []string{StatusPending, StatusRunning} {
		if Terminal(s) {
			t.Errorf("Terminal(%q) = true, want false", s)
		}
	}
}

func TestExperimentNormalize(t *testing.T) {
	e := Experiment{CrossoverProportion: 1.5, MutationProportion: 0.2}
	e.Normalize()

	if e.Population != DefaultPopulation {
		t.Errorf("Population = %d, want %d", e.Population, DefaultPopulation)
	}
	if e.Generations != DefaultGenerations {
		t.Errorf("Generations = %d, want %d", e.Generations, DefaultGenerations)
	}
	if e.CrossoverProportion != 1.0 {
		t.Errorf("CrossoverProportion = %v, want 1.0", e.CrossoverProportion)
	}
	if e.MutationProportion != 0.2 {
		t.Errorf("MutationProportion = %v, want 0.2", e.MutationProportion)
	}
}

func TestExperimentValidate(t *testing.T) {
	valid := Experiment{
		Objective: "sphere",
		Alleles: []Allele{
			{Name: "x", LowerBound: ptr(-10), UpperBound: ptr(10)},
			{Name: "y"},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate valid experiment: %v", err)
	}

	tests := []struct {
		name string
		mod  func(e *Experiment)
	}{
		{"no objective", func(e *Experiment) { e.Objective = "" }},
		{"no alleles", func(e *Experiment) { e.Alleles = nil }},
		{"empty name", func(e *Experiment) { e.Alleles[0].Name = "" }},
		{"duplicate", func(e *Experiment) { e.Alleles[1].Name = "x" }},
		{"half bound", func(e *Experiment) { e.Alleles[1].LowerBound = ptr(1) }},
		{"inverted", func(e *Experiment) { e.Alleles[0].LowerBound = ptr(20) }},
		{"negative proportion", func(e *Experiment) { e.MutationProportion = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			e.Alleles = append([]Allele(nil), valid.Alleles...)
			tt.mod(&e)
			if err := e.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
