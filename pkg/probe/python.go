package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/matzehuels/depwalk/pkg/errors"
	"github.com/matzehuels/depwalk/pkg/pyenv"
)

// DefaultTimeout bounds a single interpreter invocation.
const DefaultTimeout = 30 * time.Second

// requiresScript prints a package's declared dependencies as a JSON
// array on stdout. The package name arrives via argv, never via string
// interpolation into the script, and the output is parsed as JSON -
// importlib returns None for packages without dependency metadata, which
// json.dumps maps to an empty list here.
const requiresScript = `import json, sys
from importlib.metadata import requires
print(json.dumps(requires(sys.argv[1]) or []))`

// PythonProber queries an environment's interpreter via subprocess.
// Safe for concurrent use; each probe runs its own process.
type PythonProber struct {
	timeout time.Duration
}

// NewPythonProber creates a prober with the given per-probe timeout.
// A non-positive timeout falls back to DefaultTimeout.
func NewPythonProber(timeout time.Duration) *PythonProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PythonProber{timeout: timeout}
}

// DeclaredDependencies runs the environment's interpreter to read the
// installed metadata of pkg.
//
// Failure modes, all aborting the caller's build:
//   - PACKAGE_NOT_FOUND: pkg is not installed in env
//   - TIMEOUT: the interpreter exceeded the per-probe timeout
//   - PROBE_FAILED: any other non-zero exit or unparseable output
func (p *PythonProber) DeclaredDependencies(ctx context.Context, env *pyenv.Environment, pkg string) ([]string, error) {
	if err := errors.ValidatePythonPackageName(pkg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, env.Exe(), "-c", requiresScript, pkg)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		switch {
		case ctx.Err() == context.DeadlineExceeded:
			return nil, errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "probing %s in %s", pkg, env.Exe())
		case ctx.Err() != nil:
			return nil, errors.Wrap(errors.ErrCodeProbeFailed, ctx.Err(), "probing %s in %s", pkg, env.Exe())
		case strings.Contains(stderr.String(), "PackageNotFoundError"):
			return nil, errors.Wrap(errors.ErrCodePackageNotFound, err, "package %s not installed in %s", pkg, env.Exe())
		default:
			return nil, errors.Wrap(errors.ErrCodeProbeFailed, err,
				"probing %s in %s: %s", pkg, env.Exe(), strings.TrimSpace(stderr.String()))
		}
	}

	var reqs []string
	if err := json.Unmarshal(stdout.Bytes(), &reqs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeProbeFailed, err, "parsing probe output for %s", pkg)
	}
	return reqs, nil
}

// Ensure PythonProber implements Prober.
var _ Prober = (*PythonProber)(nil)
