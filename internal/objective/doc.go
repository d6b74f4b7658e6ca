// Package objective defines the evaluation contract between the genetic
// engine and the function being minimised, together with the built-in test
// objectives and a name-based registry used by the CLI, the HTTP API and the
// remote workers.
package objective
