package model

import "time"

// Run status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning:   true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether status is a final run state.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed || status == StatusCancelled
}

// Variable is one named parameter value of a reported solution.
type Variable struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Run is one optimisation run of an experiment.
// BestFitness is nil until a valid genome has been evaluated.
type Run struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Experiment  Experiment `json:"experiment"`
	BestFitness *float64   `json:"best_fitness,omitempty"`
	BestVars    []Variable `json:"best_vars,omitempty"`
	Generations int        `json:"generations"`
	Error       string     `json:"error,omitempty"`
	TimeoutS    *int       `json:"timeout_s,omitempty"`
	DurationMS  *int       `json:"duration_ms,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// GenerationRecord summarises the population after one evaluation round.
// Generation 0 is the initial population.
type GenerationRecord struct {
	RunID         string    `json:"run_id"`
	Generation    int       `json:"generation"`
	BestFitness   *float64  `json:"best_fitness,omitempty"`
	MeanFitness   float64   `json:"mean_fitness"`
	StdDevFitness float64   `json:"stddev_fitness"`
	ValidCount    int       `json:"valid_count"`
	Size          int       `json:"size"`
	CreatedAt     time.Time `json:"created_at"`
}
