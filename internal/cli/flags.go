package cli

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/k6lunge/internal/profile"
	"github.com/wesleyorama2/k6lunge/internal/runner"
)

// stageFlags names the flags of one profile stage.
type stageFlags struct {
	vus      string
	duration string
}

var (
	rampUpFlags   = stageFlags{"ramp-up-vus", "ramp-up-duration"}
	steadyFlags   = stageFlags{"steady-vus", "steady-duration"}
	rampDownFlags = stageFlags{"ramp-down-vus", "ramp-down-duration"}
)

// addScriptFlags registers the flags selecting the script to run. The
// precedence is --file, then --env/--app/--id, then --inline.
func addScriptFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "Path to a k6 script")
	cmd.Flags().String("env", "", "Environment of a stored script")
	cmd.Flags().String("app", "", "Application of a stored script")
	cmd.Flags().String("id", "", "ID of a stored script")
	cmd.Flags().String("inline", "", "Script text")
}

// addProfileFlags registers the load profile flags. Per-stage flags
// override the stages read from --profile or --stages.
func addProfileFlags(cmd *cobra.Command) {
	cmd.Flags().String("profile", "", "Load profile file (YAML or JSON)")
	cmd.Flags().String("stages", "", "Stages as duration:target pairs (e.g., 30s:10,2m:10,30s:0)")
	for _, sf := range []struct {
		flags stageFlags
		name  string
	}{{rampUpFlags, "ramp-up"}, {steadyFlags, "steady"}, {rampDownFlags, "ramp-down"}} {
		cmd.Flags().String(sf.flags.vus, "", "Target VUs of the "+sf.name+" stage")
		cmd.Flags().String(sf.flags.duration, "", "Duration of the "+sf.name+" stage (e.g., 30s, 2m)")
	}
}

// scriptSource builds the script source from the script flags.
func scriptSource(cmd *cobra.Command) (runner.ScriptSource, error) {
	var src runner.ScriptSource

	file, _ := cmd.Flags().GetString("file")
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return src, errors.Wrap(err, "failed to read script")
		}
		src.Uploaded = data
	}

	env, _ := cmd.Flags().GetString("env")
	app, _ := cmd.Flags().GetString("app")
	id, _ := cmd.Flags().GetString("id")
	if env != "" || app != "" || id != "" {
		src.Stored = &runner.StoredRef{Environment: env, Application: app, ID: id}
	}

	src.Inline, _ = cmd.Flags().GetString("inline")
	return src, nil
}

// loadProfile builds the load profile from the profile flags.
func loadProfile(cmd *cobra.Command) (profile.LoadProfile, error) {
	var (
		p   profile.LoadProfile
		err error
	)

	profilePath, _ := cmd.Flags().GetString("profile")
	stages, _ := cmd.Flags().GetString("stages")

	switch {
	case profilePath != "":
		if p, err = profile.LoadFile(profilePath); err != nil {
			return p, err
		}
	case stages != "":
		if p, err = profile.ParseStages(stages); err != nil {
			return p, errors.Wrap(err, "invalid stages format")
		}
	}

	for _, s := range []struct {
		flags stageFlags
		stage *profile.Stage
	}{{rampUpFlags, &p.RampUp}, {steadyFlags, &p.Steady}, {rampDownFlags, &p.RampDown}} {
		if err := overrideStage(cmd, s.flags, s.stage); err != nil {
			return p, err
		}
	}

	return p, p.Validate()
}

func overrideStage(cmd *cobra.Command, sf stageFlags, stage *profile.Stage) error {
	if cmd.Flags().Changed(sf.vus) {
		raw, _ := cmd.Flags().GetString(sf.vus)
		vus, err := profile.ParseVUs(raw)
		if err != nil {
			return errors.Wrap(err, "--"+sf.vus)
		}
		stage.VUs = vus
	}
	if cmd.Flags().Changed(sf.duration) {
		stage.Duration, _ = cmd.Flags().GetString(sf.duration)
	}
	return nil
}
