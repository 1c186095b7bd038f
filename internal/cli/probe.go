package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depwalk/pkg/errors"
	"github.com/matzehuels/depwalk/pkg/pep508"
	"github.com/matzehuels/depwalk/pkg/pipeline"
	"github.com/matzehuels/depwalk/pkg/probe"
	"github.com/matzehuels/depwalk/pkg/pyenv"
)

// probeOpts holds the command-line flags for the probe command.
type probeOpts struct {
	interpreter string
	raw         bool // show declared requirements without marker filtering
}

// probeCommand creates the probe command, which shows the dependencies a
// single installed package declares.
func (c *CLI) probeCommand() *cobra.Command {
	opts := probeOpts{interpreter: pipeline.DefaultInterpreter}

	cmd := &cobra.Command{
		Use:   "probe <package>",
		Short: "Show the declared dependencies of an installed package",
		Long: `Show the dependencies a package declares in its installed metadata.

By default, requirements are filtered against the interpreter's marker
environment, the way graph building filters them. With --raw, the
declared requirement strings are printed unfiltered.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringVar(&opts.interpreter, "python", opts.interpreter, "Python interpreter to probe")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print declared requirements without marker filtering")
	return cmd
}

func runProbe(cmd *cobra.Command, pkg string, opts *probeOpts) error {
	ctx := cmd.Context()

	env, err := pyenv.Detect(ctx, opts.interpreter)
	if err != nil {
		return err
	}

	prober := probe.NewPythonProber(probe.DefaultTimeout)
	requires, err := prober.DeclaredDependencies(ctx, env, pyenv.NormalizeName(pkg))
	if err != nil {
		return err
	}

	if len(requires) == 0 {
		printInfo("%s declares no dependencies", pkg)
		return nil
	}

	if opts.raw {
		for _, raw := range requires {
			fmt.Println(raw)
		}
		return nil
	}

	for _, raw := range requires {
		req, err := pep508.Parse(raw)
		if err != nil {
			return err
		}
		applies, err := req.Applies(env)
		switch {
		case err != nil && errors.GetCode(err) == errors.ErrCodeUnsupportedMarker:
			printWarning("%s (marker not supported here)", raw)
		case err != nil:
			return err
		case applies:
			printSuccess("%s", pyenv.NormalizeName(req.Name))
			if raw != req.Name {
				printDetail("%s", raw)
			}
		default:
			printDetail("%s (filtered by marker)", raw)
		}
	}
	return nil
}
