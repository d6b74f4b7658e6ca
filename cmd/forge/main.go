// Command forge runs genetic searches, either once from an experiment file
// or as an HTTP service that executes runs asynchronously.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
