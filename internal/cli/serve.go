package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/k6lunge/internal/runner"
	"github.com/wesleyorama2/k6lunge/internal/server"
	"github.com/wesleyorama2/k6lunge/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Start the HTTP API: script management under /api/scripts, test runs
under /api/run-test and Prometheus metrics under /metrics.

The execution mode is read once from EXECUTION_MODE at start-up.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	log := env.log
	defer func() { _ = log.Sync() }()

	if err := env.scripts.Init(); err != nil {
		return errors.Wrap(err, "failed to prepare the script store")
	}
	if env.cfg.SeedSamples {
		n, err := env.scripts.Seed()
		if err != nil {
			return err
		}
		if n > 0 {
			log.Infow("Sample scripts written", "count", n, "dir", env.scripts.Root())
		}
	}

	mode := runner.Mode(env.cfg.Mode)
	recorder := telemetry.NewRecorder()

	d, err := env.dispatcher(mode, runner.WithObserver(recorder))
	if err != nil {
		return err
	}

	h := server.NewHandler(d, env.scripts, recorder.Handler(), log, env.cfg.MaxUploadBytes)
	e := server.New(h, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx, e, env.cfg.Addr(), log)
}
