package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seantiz/forge/internal/api"
	"github.com/seantiz/forge/internal/config"
	"github.com/seantiz/forge/internal/ga"
	"github.com/seantiz/forge/internal/objective"
	"github.com/seantiz/forge/internal/runner"
	"github.com/seantiz/forge/internal/store"
	"github.com/seantiz/forge/internal/worker"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "forge",
		Short:         "Genetic search over distributed objective evaluations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newServeCmd(), newObjectivesCmd())
	return root
}

type runOptions struct {
	verbose         int
	workers         []string
	dispatchTimeout time.Duration
	generations     int
	seed            int64
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <experiment.yaml>",
		Short: "Run one experiment and print the best solution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runExperiment(ctx, cmd, args[0], opts)
		},
	}
	cmd.Flags().CountVarP(&opts.verbose, "verbose", "v", "log generation summaries (-v) or every genome (-vv)")
	cmd.Flags().StringSliceVarP(&opts.workers, "worker", "w", nil, "remote worker address, repeatable (default $FORGE_WORKERS)")
	cmd.Flags().DurationVar(&opts.dispatchTimeout, "dispatch-timeout", 0, "deadline of one remote evaluation (default $FORGE_DISPATCH_TIMEOUT)")
	cmd.Flags().IntVarP(&opts.generations, "generations", "g", 0, "override the experiment's generation count")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "override the experiment's random seed")
	return cmd
}

func verbosityLevel(v int) slog.Level {
	switch {
	case v >= 2:
		return slog.LevelDebug
	case v == 1:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

func runExperiment(ctx context.Context, cmd *cobra.Command, path string, opts runOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cmd.ErrOrStderr(), verbosityLevel(opts.verbose))

	exp, err := config.LoadExperiment(path)
	if err != nil {
		return err
	}
	if opts.generations > 0 {
		exp.Generations = opts.generations
	}
	if opts.seed != 0 {
		exp.Seed = opts.seed
	}

	workers := opts.workers
	if len(workers) == 0 {
		workers = cfg.Workers
	}
	dispatchTimeout := opts.dispatchTimeout
	if dispatchTimeout <= 0 {
		dispatchTimeout = cfg.DispatchTimeout
	}

	eval, err := objective.NewDefaultRegistry().Resolve(exp.Objective)
	if err != nil {
		return err
	}
	if exp.EvaluationDeadlineMS > 0 {
		eval = objective.WithDeadline(eval, time.Duration(exp.EvaluationDeadlineMS)*time.Millisecond)
	}

	dist, err := runner.PoolFactory(workers, dispatchTimeout, logger)(ctx, exp.Objective, eval)
	if err != nil {
		return err
	}
	defer func() {
		if err := dist.Shutdown(context.Background()); err != nil {
			logger.Warn("distributor shutdown", "error", err)
		}
	}()

	eng, err := runner.NewEngine(exp, dist, ga.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := eng.Run(ctx, exp.Generations); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	out := cmd.OutOrStdout()
	fitness, vars, ok := eng.Best()
	if !ok {
		fmt.Fprintln(out, "No valid solution found")
		return nil
	}
	fmt.Fprintf(out, "Best fitness: %g\n", fitness)
	fmt.Fprint(out, vars.String())
	return nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and execute submitted runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(ctx, cfg, config.NewLogger(os.Stdout, cfg.LogLevel))
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("forge: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"workers", len(cfg.Workers),
		"local_workers", cfg.LocalWorkers,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	reg := objective.NewDefaultRegistry()
	g, gctx := errgroup.WithContext(ctx)

	workers := cfg.Workers
	if len(workers) == 0 {
		for i := range cfg.LocalWorkers {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				return fmt.Errorf("listen local worker %d: %w", i, err)
			}
			workers = append(workers, "tcp://"+ln.Addr().String())
			agent := worker.New(ln, reg, worker.WithLogger(logger.With("local_worker", i)))
			g.Go(func() error { return agent.Serve(gctx) })
		}
	}

	run := runner.NewRunner(db, reg, logger,
		runner.WithDistributorFactory(runner.PoolFactory(workers, cfg.DispatchTimeout, logger)),
		runner.WithDefaultTimeout(cfg.RunTimeout),
	)
	srv := api.NewServer(cfg.ListenAddr, db, reg, run, logger)

	g.Go(func() error {
		defer run.Shutdown()
		return srv.Run(gctx)
	})
	return g.Wait()
}

func newObjectivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "objectives",
		Short: "List the built-in objectives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDESCRIPTION")
			for _, info := range objective.NewDefaultRegistry().List() {
				fmt.Fprintf(tw, "%s\t%s\n", info.Name, info.Description)
			}
			return tw.Flush()
		},
	}
}
