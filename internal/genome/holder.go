// Package genome holds the two value types exchanged between the genetic
// engine and the objective: the ordered variable holder and the genome.
package genome

import (
	"fmt"
	"strings"
)

// Pair is one named value. Names are unique within a Holder or Genome,
// except for the unnamed placeholders a Genome grows during crossover.
type Pair struct {
	Name  string
	Value float64
}

// Holder is an ordered name→value mapping. Insertion order is preserved and
// is the order of Collate and FillFrom. The zero value is an empty holder.
type Holder struct {
	vars []Pair
}

// NewHolder returns a holder declaring every name with value 0.0.
func NewHolder(names ...string) *Holder {
	h := &Holder{vars: make([]Pair, 0, len(names))}
	for _, n := range names {
		h.Set(n, 0.0)
	}
	return h
}

func (h *Holder) index(name string) int {
	for i := range h.vars {
		if h.vars[i].Name == name {
			return i
		}
	}
	return -1
}

// Get returns the value stored under name, or 0.0 if it is absent.
func (h *Holder) Get(name string) float64 {
	if i := h.index(name); i >= 0 {
		return h.vars[i].Value
	}
	return 0.0
}

// Set updates name in place or appends it, and returns val.
func (h *Holder) Set(name string, val float64) float64 {
	if i := h.index(name); i >= 0 {
		h.vars[i].Value = val
		return val
	}
	h.vars = append(h.vars, Pair{Name: name, Value: val})
	return val
}

// NameAt returns the name at position i, or "" past the end. Callers use the
// empty name as the end of iteration.
func (h *Holder) NameAt(i int) string {
	if i < 0 || i >= len(h.vars) {
		return ""
	}
	return h.vars[i].Name
}

// Exists reports whether name is stored.
func (h *Holder) Exists(name string) bool {
	return h.index(name) >= 0
}

// Len returns the number of stored variables.
func (h *Holder) Len() int {
	return len(h.vars)
}

// Collate returns the values in stored order.
func (h *Holder) Collate() []float64 {
	out := make([]float64, len(h.vars))
	for i, p := range h.vars {
		out[i] = p.Value
	}
	return out
}

// FillFrom assigns values positionally. It fails, leaving the holder
// unchanged, when len(v) differs from Len.
func (h *Holder) FillFrom(v []float64) bool {
	if len(v) != len(h.vars) {
		return false
	}
	for i := range v {
		h.vars[i].Value = v[i]
	}
	return true
}

// Pairs returns a copy of the stored pairs.
func (h *Holder) Pairs() []Pair {
	return append([]Pair(nil), h.vars...)
}

// Clone returns an independent copy.
func (h *Holder) Clone() *Holder {
	return &Holder{vars: h.Pairs()}
}

// String renders one "name->value" line per variable.
func (h *Holder) String() string {
	var b strings.Builder
	for _, p := range h.vars {
		fmt.Fprintf(&b, "%s->%f\n", p.Name, p.Value)
	}
	return b.String()
}
