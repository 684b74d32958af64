package cli

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/k6lunge/internal/runner"
	"github.com/wesleyorama2/k6lunge/internal/script"
)

func newTransformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Print a script with the load profile applied",
		Long: `Write the script's options declaration for a load profile without
running it:

  k6lunge transform --file test.js --ramp-up-vus 10 --ramp-up-duration 30s`,
		Args: cobra.NoArgs,
		RunE: runTransform,
	}

	addScriptFlags(cmd)
	addProfileFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "Write the script to this path instead of stdout")
	return cmd
}

func runTransform(cmd *cobra.Command, _ []string) error {
	p, err := loadProfile(cmd)
	if err != nil {
		return err
	}
	src, err := scriptSource(cmd)
	if err != nil {
		return err
	}

	var scripts runner.ScriptGetter
	if src.Stored != nil {
		env, err := loadEnvironment(cmd)
		if err != nil {
			return err
		}
		scripts = env.scripts
	}

	text, err := runner.Resolve(src, scripts)
	if err != nil {
		return err
	}

	transformed, err := script.NewTransformer().Apply(text, p)
	if err != nil {
		return err
	}

	outPath, _ := cmd.Flags().GetString("output")
	if outPath == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), transformed)
		return err
	}
	return errors.Wrapf(os.WriteFile(outPath, []byte(transformed+"\n"), 0o644), "failed to write %s", outPath)
}
