package genome

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolderGetSet(t *testing.T) {
	h := NewHolder("a", "b")

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 0.0, h.Get("a"))
	assert.Equal(t, 0.0, h.Get("missing"))

	assert.Equal(t, 3.5, h.Set("b", 3.5))
	assert.Equal(t, 3.5, h.Get("b"))
	assert.Equal(t, 2, h.Len(), "upsert of an existing name must not append")

	h.Set("c", 1)
	assert.Equal(t, "c", h.NameAt(2))
	assert.True(t, h.Exists("c"))
	assert.False(t, h.Exists("d"))
}

func TestHolderNameAtTerminates(t *testing.T) {
	h := NewHolder("x", "y", "z")

	var names []string
	for i := 0; ; i++ {
		n := h.NameAt(i)
		if n == "" {
			break
		}
		names = append(names, n)
	}
	assert.Equal(t, []string{"x", "y", "z"}, names)
	assert.Equal(t, "", h.NameAt(-1))
}

func TestHolderCollateFillFrom(t *testing.T) {
	h := NewHolder("a", "b", "c")
	require.True(t, h.FillFrom([]float64{1, 2, 3}))
	assert.Equal(t, []float64{1, 2, 3}, h.Collate())

	assert.False(t, h.FillFrom([]float64{9, 9}))
	assert.Equal(t, []float64{1, 2, 3}, h.Collate(), "failed fill must leave the holder unchanged")

	assert.False(t, h.FillFrom([]float64{9, 9, 9, 9}))
	assert.Equal(t, []float64{1, 2, 3}, h.Collate())
}

func TestHolderCloneIsIndependent(t *testing.T) {
	h := NewHolder("a")
	c := h.Clone()
	c.Set("a", 7)
	c.Set("b", 1)

	assert.Equal(t, 0.0, h.Get("a"))
	assert.Equal(t, 1, h.Len())
}

func TestHolderString(t *testing.T) {
	h := NewHolder("a")
	h.Set("a", 1.5)
	assert.Equal(t, "a->1.500000\n", h.String())
}

func TestGenomeValidity(t *testing.T) {
	var g Genome
	assert.True(t, g.Valid(), "zero genome is valid")

	g.SetFitness(math.Inf(1))
	assert.False(t, g.Valid())

	g.SetFitness(2)
	assert.True(t, g.Valid())
	assert.Equal(t, 2.0, g.Fitness())

	g.SetFitness(math.Inf(-1))
	assert.True(t, g.Valid(), "only +Inf marks a genome invalid")
}

func TestGenomeAlleleAccess(t *testing.T) {
	var g Genome
	g.SetAllele("a", 1)
	g.SetAllele("b", 2)
	g.SetAllele("a", 3)

	assert.Equal(t, 2, g.Len())
	assert.Equal(t, 3.0, g.Allele("a"))
	assert.Equal(t, 0.0, g.Allele("nope"))
	assert.Equal(t, 2.0, g.AlleleAt(1))
	assert.Equal(t, 0.0, g.AlleleAt(5))
	assert.Equal(t, "b", g.NameAt(1))
	assert.Equal(t, "", g.NameAt(2))

	g.SetAlleleAt(0, 9)
	assert.Equal(t, 9.0, g.Allele("a"))
	assert.Equal(t, 2, g.Len())

	g.SetAlleleAt(-1, 4)
	assert.Equal(t, 2, g.Len(), "negative index is ignored")
}

func TestGenomeSetAlleleAtGrows(t *testing.T) {
	var g Genome
	g.SetAllele("a", 1)
	g.SetAlleleAt(3, 7)

	require.Equal(t, 4, g.Len())
	assert.Equal(t, 7.0, g.AlleleAt(3))
	assert.Equal(t, "", g.NameAt(3))
	for i := 1; i < 3; i++ {
		assert.Equal(t, Pair{}, g.PairAt(i), "placeholder at %d", i)
	}
	assert.Equal(t, 1.0, g.Allele("a"))
}

func TestGenomeSetPairAtGrows(t *testing.T) {
	var g Genome
	g.SetPairAt(2, Pair{Name: "c", Value: 3})

	require.Equal(t, 3, g.Len())
	assert.Equal(t, Pair{}, g.PairAt(0))
	assert.Equal(t, Pair{}, g.PairAt(1))
	assert.Equal(t, Pair{Name: "c", Value: 3}, g.PairAt(2))
	assert.Equal(t, Pair{}, g.PairAt(3))
}

func TestGenomeLess(t *testing.T) {
	mk := func(f float64) *Genome {
		g := &Genome{}
		g.SetFitness(f)
		return g
	}
	inf := math.Inf(1)

	tests := []struct {
		name string
		a, b float64
		want bool
	}{
		{"lower fitness ranks first", 1, 2, true},
		{"higher fitness ranks later", 2, 1, false},
		{"equal", 1, 1, false},
		{"valid before invalid", 100, inf, true},
		{"invalid after valid", inf, 100, false},
		{"both invalid", inf, inf, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mk(tt.a).Less(mk(tt.b)))
		})
	}
}

func TestGenomeSame(t *testing.T) {
	a := &Genome{}
	a.SetAllele("x", 1)
	a.SetFitness(4)

	b := a.Clone()
	assert.True(t, a.Same(&b))

	b.SetAllele("x", 2)
	assert.False(t, a.Same(&b), "allele values differ")

	c := a.Clone()
	c.SetFitness(5)
	assert.False(t, a.Same(&c), "fitness differs")

	d := a.Clone()
	d.SetAllele("y", 0)
	assert.False(t, a.Same(&d), "lengths differ")
}

func TestGenomeVarIsAdditive(t *testing.T) {
	h := NewHolder("shared", "x")
	h.Set("shared", 42)

	var g Genome
	g.SetAllele("x", 1)
	g.SetAllele("y", 2)
	g.Var(h)

	assert.Equal(t, 42.0, h.Get("shared"), "unknown holder variables are left untouched")
	assert.Equal(t, 1.0, h.Get("x"))
	assert.Equal(t, 2.0, h.Get("y"))
	assert.Equal(t, []string{"shared", "x", "y"}, []string{h.NameAt(0), h.NameAt(1), h.NameAt(2)})
}

func TestGenomeSetFromReplaces(t *testing.T) {
	var g Genome
	g.SetAllele("old", 1)

	h := NewHolder("a", "b")
	h.Set("b", 5)
	g.SetFrom(h)

	assert.Equal(t, []Pair{{Name: "a"}, {Name: "b", Value: 5}}, g.Pairs())

	h.Set("a", 9)
	assert.Equal(t, 0.0, g.Allele("a"), "genome must not alias the holder")
}

func TestGenomeCloneIsDeep(t *testing.T) {
	var g Genome
	g.SetAllele("a", 1)
	c := g.Clone()
	c.SetAllele("a", 2)
	assert.Equal(t, 1.0, g.Allele("a"))
}
