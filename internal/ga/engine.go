package ga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/seantiz/forge/internal/distributor"
	"github.com/seantiz/forge/internal/genome"
)

var (
	// ErrNoPopulation is returned by Initialize when the capacity is zero.
	ErrNoPopulation = errors.New("population capacity is zero")
	// ErrNoAlleles is returned by Initialize when no allele is registered.
	ErrNoAlleles = errors.New("no alleles registered")
	// ErrNotInitialized is returned when a generation is requested before
	// Initialize succeeded.
	ErrNotInitialized = errors.New("engine not initialized")
)

type bounds struct {
	lower, upper float64
}

// Engine runs the genetic algorithm.
type Engine struct {
	dist   distributor.Distributor
	logger *slog.Logger
	rng    *rand.Rand

	alleles       []string
	limits        map[string]bounds
	capacity      int
	crossRate     float64
	mutateRate    float64
	crossCount    int
	mutateCount   int
	blockSampling bool

	invalidWeight float64
	stale         StalePolicy
	selection     Selection
	reporter      Reporter

	template    genome.Genome
	holder      *genome.Holder
	population  []genome.Genome
	epochs      []uint64
	epoch       uint64
	generation  int
	initialized bool

	bestAssigned bool
	bestFitness  float64
	bestVars     *genome.Holder
}

// New creates an engine that evaluates genomes through dist.
func New(dist distributor.Distributor, opts ...Option) *Engine {
	e := &Engine{
		dist:          dist,
		logger:        slog.Default(),
		rng:           newRand(time.Now().UnixNano()),
		limits:        make(map[string]bounds),
		invalidWeight: DefaultInvalidWeight,
		bestFitness:   math.Inf(1),
		bestVars:      genome.NewHolder(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
}

// AddAllele registers a named allele. Registering a name twice has no effect.
func (e *Engine) AddAllele(name string) {
	for _, a := range e.alleles {
		if a == name {
			return
		}
	}
	e.alleles = append(e.alleles, name)
}

// AddLimit bounds the named allele to [lower, upper]. Alleles without a
// limit draw from a wide symmetric range.
func (e *Engine) AddLimit(name string, lower, upper float64) {
	e.limits[name] = bounds{lower: lower, upper: upper}
}

// SetCapacity sets the population size.
func (e *Engine) SetCapacity(n int) { e.capacity = n }

// SetCrossoverRate sets the per-genome crossover probability in [0, 1].
func (e *Engine) SetCrossoverRate(p float64) { e.crossRate = p }

// SetMutationRate sets the per-genome mutation probability in [0, 1].
func (e *Engine) SetMutationRate(p float64) { e.mutateRate = p }

// SetCrossoverCount fixes the crossover partition. Zero derives it from the
// capacity and the crossover rate.
func (e *Engine) SetCrossoverCount(n int) { e.crossCount = n }

// SetMutationCount fixes the mutation partition. Zero derives it from the
// capacity and the mutation rate.
func (e *Engine) SetMutationCount(n int) { e.mutateCount = n }

// SetBlockSampling switches crossover and mutation from per-genome
// Bernoulli trials to fixed-size samples of the partition size.
func (e *Engine) SetBlockSampling(on bool) { e.blockSampling = on }

func (e *Engine) crossPartition() int {
	if e.crossCount > 0 {
		return e.crossCount
	}
	return int(float64(e.capacity) * e.crossRate)
}

func (e *Engine) mutatePartition() int {
	if e.mutateCount > 0 {
		return e.mutateCount
	}
	return int(float64(e.capacity) * e.mutateRate)
}

// Initialize builds the template genome and a fully random population of
// the configured capacity. On error the engine is left unchanged.
func (e *Engine) Initialize() error {
	if e.capacity <= 0 {
		return ErrNoPopulation
	}
	if len(e.alleles) == 0 {
		return ErrNoAlleles
	}

	var tmpl genome.Genome
	for _, name := range e.alleles {
		tmpl.SetAllele(name, 0.0)
	}
	holder := genome.NewHolder()
	tmpl.Var(holder)

	pop := make([]genome.Genome, e.capacity)
	for i := range pop {
		pop[i] = tmpl.Clone()
		e.mutate(&pop[i], true)
	}

	e.template = tmpl
	e.holder = holder
	e.population = pop
	e.epochs = make([]uint64, len(pop))
	e.generation = 0
	e.bestAssigned = false
	e.bestFitness = math.Inf(1)
	e.bestVars = genome.NewHolder()
	e.initialized = true

	e.logger.Debug("population initialized",
		"capacity", e.capacity,
		"alleles", len(e.alleles),
		"cross_partition", e.crossPartition(),
		"mutate_partition", e.mutatePartition(),
		"block_sampling", e.blockSampling,
	)
	return nil
}

// Run evaluates the initial population and then breeds it for the given
// number of generations.
func (e *Engine) Run(ctx context.Context, generations int) error {
	if err := e.EvaluateGeneration(ctx); err != nil {
		return err
	}
	for range generations {
		if err := e.AdvanceGeneration(ctx); err != nil {
			return err
		}
	}
	return nil
}

// EvaluateGeneration submits every genome for evaluation, collects the
// results, ranks the population and updates the best-so-far.
func (e *Engine) EvaluateGeneration(ctx context.Context) error {
	if !e.initialized {
		return ErrNotInitialized
	}

	e.epochs = make([]uint64, len(e.population))
	for i := range e.population {
		e.submit(i)
	}
	if err := e.collect(ctx); err != nil {
		return fmt.Errorf("evaluate generation: %w", err)
	}
	e.report()
	return nil
}

// AdvanceGeneration breeds one new generation: selection, crossover,
// mutation, evaluation of every changed genome, ranking and culling.
func (e *Engine) AdvanceGeneration(ctx context.Context) error {
	if !e.initialized {
		return ErrNotInitialized
	}

	e.population = e.selectPopulation(e.population)
	e.epochs = make([]uint64, len(e.population))

	if e.crossPartition() > 0 {
		e.crossover()
	}
	if e.mutatePartition() > 0 {
		e.mutation()
	}

	if err := e.collect(ctx); err != nil {
		return fmt.Errorf("advance generation %d: %w", e.generation+1, err)
	}
	e.generation++
	e.report()
	return nil
}

// submit queues genome i for evaluation, replacing any queued request for it.
func (e *Engine) submit(i int) {
	e.population[i].Var(e.holder)
	e.dist.Cancel(i)

	e.epoch++
	e.epochs[i] = e.epoch
	e.dist.Submit(&distributor.WorkItem{
		Key:   i,
		Epoch: e.epoch,
		Data:  e.holder.Collate(),
	})
}

// observe stores a finished evaluation on the genome it belongs to.
func (e *Engine) observe(item *distributor.WorkItem, fitness float64) {
	if item.Key < 0 || item.Key >= len(e.population) {
		e.logger.Warn("result for unknown genome", "key", item.Key)
		return
	}
	if e.stale == DiscardStale && item.Epoch != e.epochs[item.Key] {
		e.logger.Debug("discarding stale result", "key", item.Key, "epoch", item.Epoch)
		return
	}
	if math.IsNaN(fitness) {
		fitness = math.Inf(1)
	}
	e.population[item.Key].SetFitness(fitness)
}

// collect runs the distributor, then ranks, culls and updates the best.
func (e *Engine) collect(ctx context.Context) error {
	if err := e.dist.Run(ctx, e.observe); err != nil {
		return err
	}

	sort.SliceStable(e.population, func(i, j int) bool {
		return e.population[i].Less(&e.population[j])
	})
	if len(e.population) > e.capacity {
		e.population = e.population[:e.capacity]
	}

	if len(e.population) > 0 {
		top := &e.population[0]
		if top.Valid() && (!e.bestAssigned || top.Fitness() < e.bestFitness) {
			e.bestFitness = top.Fitness()
			e.bestVars = genome.NewHolder()
			top.Var(e.bestVars)
			e.bestAssigned = true
		}
	}
	return nil
}

// Best returns the best fitness seen so far and its variables. ok is false
// until a round has produced a valid genome; the fitness is then +Inf and
// the holder empty.
func (e *Engine) Best() (fitness float64, vars *genome.Holder, ok bool) {
	if !e.bestAssigned {
		return math.Inf(1), genome.NewHolder(), false
	}
	return e.bestFitness, e.bestVars.Clone(), true
}

// Population returns a copy of the current population, best first after a
// completed round.
func (e *Engine) Population() []genome.Genome {
	out := make([]genome.Genome, len(e.population))
	for i := range e.population {
		out[i] = e.population[i].Clone()
	}
	return out
}

// Template returns a copy of the template genome: every allele at 0.0.
func (e *Engine) Template() genome.Genome {
	return e.template.Clone()
}

// Generation returns the number of completed AdvanceGeneration calls.
func (e *Engine) Generation() int {
	return e.generation
}
