package ga

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/seantiz/forge/internal/genome"
)

// minFitness stands in for zero or negative fitness when computing 1/fitness.
const minFitness = 1e-12

// unboundedRange is the half-width of the range an allele without limits is
// drawn from.
const unboundedRange = math.MaxInt32 / 2

// weight is the selection weight of g: 1/fitness for valid genomes, the
// invalid weight otherwise.
func (e *Engine) weight(g *genome.Genome) float64 {
	if !g.Valid() {
		return e.invalidWeight
	}
	return 1.0 / math.Max(g.Fitness(), minFitness)
}

// selectPopulation draws len(prev) genomes from prev with replacement.
func (e *Engine) selectPopulation(prev []genome.Genome) []genome.Genome {
	next := make([]genome.Genome, len(prev))
	if len(prev) == 0 {
		return next
	}

	if e.selection == SelectTournament {
		for i := range next {
			next[i] = prev[e.tournament(prev)].Clone()
		}
		return next
	}

	weights := make([]float64, len(prev))
	for i := range prev {
		weights[i] = e.weight(&prev[i])
	}
	cum := floats.CumSum(make([]float64, len(weights)), weights)
	if cum[len(cum)-1] <= 0 {
		// Nothing carries weight; fall back to uniform selection.
		for i := range cum {
			cum[i] = float64(i + 1)
		}
	}

	for i := range next {
		next[i] = prev[e.pickWeighted(cum)].Clone()
	}
	return next
}

// pickWeighted returns the first index whose cumulative weight reaches a
// uniform threshold over the total, or the last index if none does.
func (e *Engine) pickWeighted(cum []float64) int {
	threshold := cum[len(cum)-1] * e.rng.Float64()
	i := sort.SearchFloat64s(cum, threshold)
	if i >= len(cum) {
		return len(cum) - 1
	}
	return i
}

// tournament draws two genomes uniformly and returns the index of the
// better one.
func (e *Engine) tournament(pop []genome.Genome) int {
	a := e.rng.IntN(len(pop))
	b := e.rng.IntN(len(pop))
	if pop[b].Less(&pop[a]) {
		return b
	}
	return a
}

// crossover pairs sampled valid genomes with a distinct valid partner,
// crosses them and resubmits both offspring.
func (e *Engine) crossover() {
	var sample []int
	if e.blockSampling {
		sample = e.sampleDistinct(e.crossPartition(), true)
	} else {
		sample = e.sampleBernoulli(e.crossRate, true)
	}

	for _, i := range sample {
		j, ok := e.partner(i)
		if !ok {
			continue
		}
		a, b := &e.population[i], &e.population[j]
		if !cross(a, b, e.crosspoint(a.Len())) {
			continue
		}
		e.submit(i)
		e.submit(j)
	}
}

// crosspoint truncates a uniform draw over [1, n] to a crossover point.
func (e *Engine) crosspoint(n int) int {
	if n <= 1 {
		return 1
	}
	return int(1 + e.rng.Float64()*float64(n-1))
}

// cross swaps the alleles before point between a and b. The genomes are
// replaced by fresh offspring with zero fitness. It reports false and
// leaves both unchanged when the sizes differ or point is not inside the
// genome.
func cross(a, b *genome.Genome, point int) bool {
	n := a.Len()
	if n != b.Len() || point < 1 || point >= n {
		return false
	}

	var c1, c2 genome.Genome
	for i := range point {
		c1.SetPairAt(i, b.PairAt(i))
		c2.SetPairAt(i, a.PairAt(i))
	}
	for i := point; i < n; i++ {
		c1.SetPairAt(i, a.PairAt(i))
		c2.SetPairAt(i, b.PairAt(i))
	}

	*a, *b = c1, c2
	return true
}

// mutation mutates a sample of genomes plus every invalid genome and
// resubmits them.
func (e *Engine) mutation() {
	var sample []int
	if e.blockSampling {
		sample = e.sampleWithReplacement(e.mutatePartition())
	} else {
		sample = e.sampleBernoulli(e.mutateRate, false)
	}

	for i := range e.population {
		if !e.population[i].Valid() && !slices.Contains(sample, i) {
			sample = append(sample, i)
		}
	}

	for _, i := range sample {
		g := &e.population[i]
		e.mutate(g, !g.Valid())
		e.submit(i)
	}
}

// mutate redraws alleles of g within their limits. With all set every
// allele is redrawn; otherwise each allele is redrawn with probability
// 1/len and mutation stops at the first one.
func (e *Engine) mutate(g *genome.Genome, all bool) {
	n := g.Len()
	if n == 0 {
		return
	}
	prob := 100.0 / float64(n)
	if all {
		prob = 101.0
	}

	for i := range n {
		if e.rng.Float64()*100.0 > prob {
			continue
		}
		g.SetAlleleAt(i, e.draw(g.NameAt(i)))
		if !all {
			return
		}
	}
}

// draw returns a uniform value within the named allele's limits.
func (e *Engine) draw(name string) float64 {
	b, ok := e.limits[name]
	if !ok {
		b = bounds{lower: -unboundedRange, upper: unboundedRange}
	}
	return b.lower + e.rng.Float64()*(b.upper-b.lower)
}
