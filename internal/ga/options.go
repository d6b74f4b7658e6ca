package ga

import "log/slog"

// DefaultInvalidWeight is the selection weight given to invalid genomes. It
// exceeds the weight of any valid genome with fitness above 1e-11, so
// infeasible genomes keep reproducing while most of the population is
// infeasible.
const DefaultInvalidWeight = 99999999999.99999

// StalePolicy decides what happens to a result that arrives for a genome
// whose evaluation was superseded after dispatch.
type StalePolicy int

const (
	// LastWriterWins stores every result that arrives for a key.
	LastWriterWins StalePolicy = iota
	// DiscardStale drops results whose epoch is older than the latest
	// submission for the key.
	DiscardStale
)

func (p StalePolicy) String() string {
	switch p {
	case DiscardStale:
		return "discard-stale"
	default:
		return "last-writer-wins"
	}
}

// Selection picks the strategy used to carry genomes into the next generation.
type Selection int

const (
	// SelectWeighted is fitness-proportionate selection with weight 1/fitness.
	SelectWeighted Selection = iota
	// SelectTournament keeps the better of two uniformly drawn genomes.
	SelectTournament
)

// Reporter receives a Report after every evaluation round.
type Reporter func(Report)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSeed makes the engine's random choices reproducible.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = newRand(seed) }
}

// WithInvalidWeight overrides DefaultInvalidWeight. Zero excludes invalid
// genomes from selection unless every genome is invalid.
func WithInvalidWeight(w float64) Option {
	return func(e *Engine) { e.invalidWeight = w }
}

// WithStalePolicy sets how superseded results are handled. The engine
// drains its distributor before every resubmission, so a round driven by
// the engine alone never produces a stale result; the policy only matters
// when an observer is fed results from an earlier dispatch.
func WithStalePolicy(p StalePolicy) Option {
	return func(e *Engine) { e.stale = p }
}

// WithSelection sets the selection strategy.
func WithSelection(s Selection) Option {
	return func(e *Engine) { e.selection = s }
}

// WithReporter registers a callback for per-round reports.
func WithReporter(r Reporter) Option {
	return func(e *Engine) { e.reporter = r }
}
