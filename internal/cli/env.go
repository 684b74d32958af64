package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/k6lunge/internal/cluster"
	"github.com/wesleyorama2/k6lunge/internal/config"
	"github.com/wesleyorama2/k6lunge/internal/logging"
	"github.com/wesleyorama2/k6lunge/internal/runner"
	"github.com/wesleyorama2/k6lunge/internal/store"
)

// environment is what every command needs: configuration, a logger and the
// script store.
type environment struct {
	cfg     config.Configuration
	log     *zap.SugaredLogger
	scripts *store.FS
}

func loadEnvironment(cmd *cobra.Command) (*environment, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	log, err := logging.Initialize(cfg.DateTime, cfg.DebugMode, cfg.LogColors)
	if err != nil {
		return nil, err
	}

	return &environment{
		cfg:     cfg,
		log:     log,
		scripts: store.New(cfg.ScriptsDir, cfg.Environments, cfg.Applications),
	}, nil
}

// mode returns the execution mode, honouring an explicit override.
func (env *environment) mode(override string) (runner.Mode, error) {
	raw := env.cfg.Mode
	if override != "" {
		raw = override
	}
	m, ok := runner.ParseMode(raw)
	if !ok {
		return "", errors.Errorf("unknown execution mode %q (local, cluster)", raw)
	}
	return m, nil
}

// buildStrategy constructs the strategy for mode. It runs once per process.
func buildStrategy(cfg config.Configuration, mode runner.Mode, log *zap.SugaredLogger) (runner.Strategy, error) {
	switch mode {
	case runner.ModeCluster:
		orch, err := cluster.NewFromKubeconfig(cfg.Kubeconfig)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to the cluster")
		}
		return runner.NewClusterStrategy(orch, cfg.Namespace, cfg.ClusterCleanup, log), nil
	case runner.ModeLocal:
		return runner.NewLocalStrategy(cfg.K6Binary, runner.ExecRunner{}, log), nil
	default:
		return nil, errors.Errorf("unknown execution mode %q", mode)
	}
}

func (env *environment) dispatcher(mode runner.Mode, opts ...runner.Option) (*runner.Dispatcher, error) {
	strategy, err := buildStrategy(env.cfg, mode, env.log)
	if err != nil {
		return nil, err
	}

	env.log.Infow("Execution mode selected", "mode", mode)
	opts = append([]runner.Option{runner.WithLogger(env.log)}, opts...)
	return runner.NewDispatcher(strategy, env.scripts, env.cfg.WorkDir, opts...), nil
}
