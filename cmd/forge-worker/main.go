// Command forge-worker evaluates objectives for a forge coordinator. It
// listens on FORGE_WORKER_LISTEN (tcp://:7070, unix:///path or vsock://port)
// and can run as the init process of a microVM.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/seantiz/forge/internal/config"
	"github.com/seantiz/forge/internal/objective"
	"github.com/seantiz/forge/internal/transport"
	"github.com/seantiz/forge/internal/worker"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	worker.SetupInit(logger)

	network, addr, err := transport.ParseAddress(cfg.Listen)
	if err != nil {
		log.Fatalf("listen address: %v", err)
	}
	ln, err := transport.Listen(network, addr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.Listen, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("forge-worker listening", "addr", cfg.Listen, "default_objective", cfg.DefaultObjective)

	agent := worker.New(ln, objective.NewDefaultRegistry(),
		worker.WithDefaultObjective(cfg.DefaultObjective),
		worker.WithEvaluationTimeout(cfg.EvaluationTimeout),
		worker.WithLogger(logger),
	)
	if err := agent.Serve(ctx); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
