package cli

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/k6lunge/internal/runner"
)

var version = "0.1.0"

// errThresholdViolated ends a run whose k6 thresholds failed. The result has
// already been printed.
var errThresholdViolated = errors.New("thresholds violated")

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "k6lunge",
		Short:   "Run k6 load tests locally or on a Kubernetes cluster",
		Version: version,
		Long: `k6lunge dispatches k6 load tests. Scripts come from an upload, the
script store or the command line. A ramp-up/steady/ramp-down load profile is
written into the script's options before it is run locally with the k6 binary
or submitted to the k6 operator as a TestRun.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			_ = cmd.Help()
		},
	}

	root.PersistentFlags().String("config", ".env", "Path to a .env file overriding environment variables")

	root.AddCommand(newServeCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newTransformCmd())
	root.AddCommand(newScriptsCmd())
	return root
}

// Execute runs the command line and returns the process exit code: 0 on
// success, 99 when a local run violated its thresholds, 1 on any error.
func Execute() int {
	return execute(NewRootCmd(), os.Args[1:])
}

func execute(root *cobra.Command, args []string) int {
	root.SetArgs(args)

	err := root.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errThresholdViolated):
		return runner.ThresholdExitCode
	}

	var rep reportedError
	if !errors.As(err, &rep) {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return 1
}

// reportedError is an error the command has already printed.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }
