package cli

import (
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depwalk/pkg/pipeline"
	"github.com/matzehuels/depwalk/pkg/pyenv"
)

// envCommand creates the env command, which prints the marker
// environment of a Python interpreter.
func (c *CLI) envCommand() *cobra.Command {
	interpreter := pipeline.DefaultInterpreter

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the interpreter's marker environment",
		Long: `Print the environment marker variables of a Python interpreter.

These are the values depwalk evaluates PEP 508 markers against when
deciding which declared dependencies apply to the environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := pyenv.Detect(cmd.Context(), interpreter)
			if err != nil {
				return err
			}

			printKeyValue("interpreter", env.Exe())
			printKeyValue("fingerprint", env.Fingerprint())
			markers := env.Markers()
			for _, name := range slices.Sorted(maps.Keys(markers)) {
				printKeyValue(name, markers[name])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&interpreter, "python", interpreter, "Python interpreter to probe")
	return cmd
}
