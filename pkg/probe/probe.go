// Package probe queries a Python environment for the declared runtime
// dependencies of installed packages.
//
// The concrete [PythonProber] shells out to the environment's interpreter
// and reads importlib.metadata, so it reports dependencies as installed
// (post-resolution), not as declared in source trees. The [Prober]
// interface is the seam the discovery engine depends on; alternate
// ecosystems or test doubles plug in behind it.
package probe

import (
	"context"

	"github.com/matzehuels/depwalk/pkg/pyenv"
)

// Prober fetches the declared direct dependencies of one package.
type Prober interface {
	// DeclaredDependencies returns the raw PEP 508 requirement strings
	// declared by pkg in env. Fails with a PROBE_FAILED error when the
	// package is not installed or the underlying query fails; the result
	// for a given (pkg, env) pair is stable within one graph build.
	DeclaredDependencies(ctx context.Context, env *pyenv.Environment, pkg string) ([]string, error)
}
