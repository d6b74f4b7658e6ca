package genome

import "math"

// Genome is an ordered list of named alleles with a cached fitness.
// A genome is valid exactly when its fitness is not +Inf; the zero value
// has fitness 0 and is valid. Genomes are values: use Clone before handing
// one to code that mutates it.
type Genome struct {
	alleles []Pair
	fitness float64
}

func (g *Genome) index(name string) int {
	for i := range g.alleles {
		if g.alleles[i].Name == name {
			return i
		}
	}
	return -1
}

// Allele returns the value of the named allele, or 0.0 if it is absent.
func (g *Genome) Allele(name string) float64 {
	if i := g.index(name); i >= 0 {
		return g.alleles[i].Value
	}
	return 0.0
}

// SetAllele updates the named allele or appends it.
func (g *Genome) SetAllele(name string, val float64) {
	if i := g.index(name); i >= 0 {
		g.alleles[i].Value = val
		return
	}
	g.alleles = append(g.alleles, Pair{Name: name, Value: val})
}

// AlleleAt returns the value at position i, or 0.0 when out of range.
func (g *Genome) AlleleAt(i int) float64 {
	if i < 0 || i >= len(g.alleles) {
		return 0.0
	}
	return g.alleles[i].Value
}

// SetAlleleAt sets the value at position i, growing the allele list with
// unnamed 0.0 placeholders when i is past the end.
func (g *Genome) SetAlleleAt(i int, val float64) {
	if i < 0 {
		return
	}
	g.grow(i + 1)
	g.alleles[i].Value = val
}

// PairAt returns the allele at position i, or the zero Pair when out of range.
func (g *Genome) PairAt(i int) Pair {
	if i < 0 || i >= len(g.alleles) {
		return Pair{}
	}
	return g.alleles[i]
}

// SetPairAt writes p at position i, first growing the allele list with
// unnamed 0.0 placeholders when i is past the end. Crossover uses it to
// assemble offspring positionally.
func (g *Genome) SetPairAt(i int, p Pair) {
	if i < 0 {
		return
	}
	g.grow(i + 1)
	g.alleles[i] = p
}

func (g *Genome) grow(n int) {
	for len(g.alleles) < n {
		g.alleles = append(g.alleles, Pair{})
	}
}

// NameAt returns the allele name at position i, or "" past the end.
func (g *Genome) NameAt(i int) string {
	if i < 0 || i >= len(g.alleles) {
		return ""
	}
	return g.alleles[i].Name
}

// Len returns the number of alleles.
func (g *Genome) Len() int {
	return len(g.alleles)
}

// Fitness returns the cached fitness.
func (g *Genome) Fitness() float64 {
	return g.fitness
}

// SetFitness stores v; +Inf marks the genome invalid.
func (g *Genome) SetFitness(v float64) {
	g.fitness = v
}

// Valid reports whether the last assigned fitness was not +Inf.
func (g *Genome) Valid() bool {
	return !math.IsInf(g.fitness, 1)
}

// Less is the population ranking: valid genomes compare by fitness
// ascending, a valid genome ranks ahead of an invalid one, and two invalid
// genomes do not dominate each other.
func (g *Genome) Less(o *Genome) bool {
	if g.Valid() && o.Valid() {
		return g.fitness < o.fitness
	}
	return g.Valid()
}

// Same reports whether both genomes carry the same fitness and identical
// allele name/value sequences.
func (g *Genome) Same(o *Genome) bool {
	if g.fitness != o.fitness || len(g.alleles) != len(o.alleles) {
		return false
	}
	for i := range g.alleles {
		if g.alleles[i] != o.alleles[i] {
			return false
		}
	}
	return true
}

// Var upserts every allele into h. Variables in h unknown to the genome are
// left untouched, so one template holder can be shared across genomes.
func (g *Genome) Var(h *Holder) {
	for _, p := range g.alleles {
		h.Set(p.Name, p.Value)
	}
}

// SetFrom replaces the allele list with the holder's pairs.
func (g *Genome) SetFrom(h *Holder) {
	g.alleles = h.Pairs()
}

// Pairs returns a copy of the alleles.
func (g *Genome) Pairs() []Pair {
	return append([]Pair(nil), g.alleles...)
}

// Clone returns a deep copy.
func (g *Genome) Clone() Genome {
	return Genome{alleles: g.Pairs(), fitness: g.fitness}
}
