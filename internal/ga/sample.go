package ga

// sampleBernoulli returns every population index that passes an
// independent trial with probability p. validOnly skips invalid genomes.
func (e *Engine) sampleBernoulli(p float64, validOnly bool) []int {
	var sample []int
	for i := range e.population {
		if validOnly && !e.population[i].Valid() {
			continue
		}
		if e.rng.Float64() < p {
			sample = append(sample, i)
		}
	}
	return sample
}

// sampleDistinct draws up to count distinct indices without replacement.
// validOnly restricts the draw to valid genomes; the sample is smaller
// than count when too few candidates exist.
func (e *Engine) sampleDistinct(count int, validOnly bool) []int {
	candidates := e.candidates(validOnly, -1)
	e.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if count < len(candidates) {
		candidates = candidates[:count]
	}
	return candidates
}

// sampleWithReplacement draws count indices uniformly, duplicates and
// invalid genomes allowed.
func (e *Engine) sampleWithReplacement(count int) []int {
	if len(e.population) == 0 {
		return nil
	}
	sample := make([]int, count)
	for i := range sample {
		sample[i] = e.rng.IntN(len(e.population))
	}
	return sample
}

// partner picks a valid genome other than i to cross with.
func (e *Engine) partner(i int) (int, bool) {
	candidates := e.candidates(true, i)
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[e.rng.IntN(len(candidates))], true
}

func (e *Engine) candidates(validOnly bool, exclude int) []int {
	out := make([]int, 0, len(e.population))
	for i := range e.population {
		if i == exclude || (validOnly && !e.population[i].Valid()) {
			continue
		}
		out = append(out, i)
	}
	return out
}
