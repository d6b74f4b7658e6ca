package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/forge/internal/objective"
	"github.com/seantiz/forge/internal/worker"
)

const sphereExperiment = `objective: sphere
population: 30
crossover_proportion: 0.5
mutation_proportion: 0.2
generations: 10
seed: 3
alleles:
  - name: x
    lower_bound: -2
    upper_bound: 2
  - name: y
    lower_bound: -2
    upper_bound: 2
`

func writeExperiment(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write experiment: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("FORGE_WORKERS", "")
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRunPrintsBestSolution(t *testing.T) {
	out, _, err := execute(t, "run", writeExperiment(t, sphereExperiment))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(out, "Best fitness: ") {
		t.Errorf("output = %q, want best fitness line", out)
	}
	if !strings.Contains(out, "x->") || !strings.Contains(out, "y->") {
		t.Errorf("output = %q, want x and y variables", out)
	}
}

func TestRunVerboseLogsGenerations(t *testing.T) {
	_, logs, err := execute(t, "run", "-v", "-g", "2", writeExperiment(t, sphereExperiment))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(logs, `"generation":2`) {
		t.Errorf("logs missing generation 2 summary: %s", logs)
	}
	if strings.Contains(logs, `"level":"DEBUG"`) {
		t.Error("-v must not enable debug logging")
	}
}

func TestRunOverRemoteWorker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.New(ln, objective.NewDefaultRegistry()).Serve(ctx)

	out, _, err := execute(t, "run", "-w", "tcp://"+ln.Addr().String(),
		"--dispatch-timeout", time.Second.String(), writeExperiment(t, sphereExperiment))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(out, "Best fitness: ") {
		t.Errorf("output = %q", out)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no file", []string{"run"}},
		{"missing file", []string{"run", filepath.Join(t.TempDir(), "nope.yaml")}},
		{"unknown objective", []string{"run", writeExperiment(t, "objective: nope\nalleles:\n  - name: x\n")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := execute(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestObjectivesLists(t *testing.T) {
	out, _, err := execute(t, "objectives")
	if err != nil {
		t.Fatalf("objectives: %v", err)
	}
	for _, name := range []string{"sphere", "schwefel", "rastrigin", "rosenbrock"} {
		if !strings.Contains(out, name) {
			t.Errorf("output missing %q:\n%s", name, out)
		}
	}
}

func TestVerbosityLevel(t *testing.T) {
	if verbosityLevel(0).String() != "WARN" || verbosityLevel(1).String() != "INFO" || verbosityLevel(3).String() != "DEBUG" {
		t.Error("unexpected verbosity mapping")
	}
}
