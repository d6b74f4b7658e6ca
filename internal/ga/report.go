package ga

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/seantiz/forge/internal/genome"
)

// Report summarises one evaluation round. Generation 0 is the initial
// population.
type Report struct {
	Generation   int
	BestAssigned bool
	BestFitness  float64
	BestVars     []genome.Pair
	Mean         float64
	StdDev       float64
	Valid        int
	Size         int
}

func (e *Engine) buildReport() Report {
	r := Report{
		Generation: e.generation,
		Size:       len(e.population),
	}

	fitness, vars, ok := e.Best()
	r.BestAssigned = ok
	r.BestFitness = fitness
	r.BestVars = vars.Pairs()

	valid := make([]float64, 0, len(e.population))
	for i := range e.population {
		if e.population[i].Valid() {
			valid = append(valid, e.population[i].Fitness())
		}
	}
	r.Valid = len(valid)
	switch len(valid) {
	case 0:
	case 1:
		r.Mean = valid[0]
	default:
		r.Mean, r.StdDev = stat.MeanStdDev(valid, nil)
	}
	return r
}

// report logs the round and hands it to the reporter: a summary at Info,
// every genome at Debug.
func (e *Engine) report() {
	r := e.buildReport()

	attrs := []any{
		"generation", r.Generation,
		"valid", r.Valid,
		"size", r.Size,
		"mean_fitness", r.Mean,
		"stddev_fitness", r.StdDev,
	}
	if r.BestAssigned {
		attrs = append(attrs, "best_fitness", r.BestFitness, "best", formatPairs(r.BestVars))
	}
	e.logger.Info("generation evaluated", attrs...)

	if e.logger.Enabled(context.Background(), slog.LevelDebug) {
		for i := range e.population {
			g := &e.population[i]
			e.logger.Debug("genome",
				"generation", r.Generation,
				"index", i,
				"valid", g.Valid(),
				"fitness", g.Fitness(),
				"alleles", formatPairs(g.Pairs()),
			)
		}
	}

	if e.reporter != nil {
		e.reporter(r)
	}
}

// formatPairs renders pairs as "name=value" separated by spaces.
func formatPairs(pairs []genome.Pair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%f", p.Name, p.Value)
	}
	return b.String()
}
