package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/k6lunge/internal/output"
	"github.com/wesleyorama2/k6lunge/internal/store"
)

func newScriptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "Manage the script store",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored scripts",
		Args:  cobra.NoArgs,
		RunE:  runScriptsList,
	}
	list.Flags().String("env", "", "Only list scripts of this environment")
	list.Flags().String("app", "", "Only list scripts of this application (requires --env)")
	list.Flags().String("format", "text", "Output format (text, json, yaml)")

	get := &cobra.Command{
		Use:   "get <environment> <application> <id>",
		Short: "Print a stored script",
		Args:  cobra.ExactArgs(3),
		RunE:  runScriptsGet,
	}

	save := &cobra.Command{
		Use:   "save <environment> <application> <name> <file|->",
		Short: "Store a script under the slug of its name",
		Args:  cobra.ExactArgs(4),
		RunE:  runScriptsSave,
	}

	del := &cobra.Command{
		Use:   "delete <environment> <application> <id>",
		Short: "Delete a stored script",
		Args:  cobra.ExactArgs(3),
		RunE:  runScriptsDelete,
	}

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Write the bundled sample scripts that are missing",
		Args:  cobra.NoArgs,
		RunE:  runScriptsSeed,
	}

	cmd.AddCommand(list, get, save, del, seed)
	return cmd
}

func runScriptsList(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	filter := store.Filter{}
	filter.Environment, _ = cmd.Flags().GetString("env")
	filter.Application, _ = cmd.Flags().GetString("app")
	formatFlag, _ := cmd.Flags().GetString("format")

	scripts, err := env.scripts.List(filter)
	if err != nil {
		return err
	}
	return writeScripts(cmd.OutOrStdout(), formatFlag, scripts)
}

func writeScripts(w io.Writer, format string, scripts []store.Script) error {
	switch output.OutputFormat(format) {
	case output.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(scripts)
	case output.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(scripts); err != nil {
			return err
		}
		return enc.Close()
	case output.FormatText, "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tENVIRONMENT\tAPPLICATION\tID")
		for _, s := range scripts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Environment, s.Application, s.ID)
		}
		return tw.Flush()
	default:
		return errors.Errorf("unknown output format %q (text, json, yaml)", format)
	}
}

func runScriptsGet(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	content, err := env.scripts.Get(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), content)
	return err
}

func runScriptsSave(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	var content []byte
	if args[3] == "-" {
		content, err = io.ReadAll(cmd.InOrStdin())
	} else {
		content, err = os.ReadFile(args[3])
	}
	if err != nil {
		return errors.Wrap(err, "failed to read script")
	}

	script, err := env.scripts.Put(args[2], string(content), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", script.FullID, script.Path)
	return nil
}

func runScriptsDelete(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	if err := env.scripts.Delete(args[0], args[1], args[2]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s-%s-%s\n", args[0], args[1], args[2])
	return nil
}

func runScriptsSeed(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	if err := env.scripts.Init(); err != nil {
		return err
	}
	n, err := env.scripts.Seed()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d sample scripts to %s\n", n, env.scripts.Root())
	return nil
}
