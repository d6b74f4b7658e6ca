// Package ga implements the generational genetic algorithm. An Engine owns a
// population of genomes, breeds it with fitness-proportionate selection,
// single-point crossover and bounded mutation, and hands every evaluation
// to a distributor.Distributor. Fitness is minimised; +Inf marks a genome
// whose evaluation failed.
//
// The engine is not safe for concurrent use. All population changes happen
// on the goroutine calling Run, between distribution rounds.
package ga
