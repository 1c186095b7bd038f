// Package pyenv models a concrete Python installation: the interpreter
// executable plus a snapshot of its PEP 508 marker environment.
//
// The snapshot is captured once per handle by running the interpreter
// with a short script that prints the marker variables as JSON. All
// subsequent marker evaluation is done in-process against the snapshot,
// so building a graph runs the interpreter once for the environment and
// once per package.
package pyenv

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"sort"
	"strings"

	"github.com/matzehuels/depwalk/pkg/cache"
	"github.com/matzehuels/depwalk/pkg/errors"
)

// markerScript prints the interpreter's PEP 508 marker variables as a
// JSON object on stdout. Output is parsed strictly - never evaluated.
const markerScript = `import json, os, platform, sys
print(json.dumps({
    "os_name": os.name,
    "sys_platform": sys.platform,
    "platform_machine": platform.machine(),
    "platform_release": platform.release(),
    "platform_system": platform.system(),
    "platform_version": platform.version(),
    "platform_python_implementation": platform.python_implementation(),
    "python_version": ".".join(platform.python_version_tuple()[:2]),
    "python_full_version": platform.python_version(),
    "implementation_name": sys.implementation.name,
}))`

// Environment is a handle to one Python installation.
// Immutable after construction; safe for concurrent use.
type Environment struct {
	exe     string
	markers map[string]string
}

// Detect creates an Environment for the interpreter at exe by running it
// once to capture the marker variable snapshot.
// Returns an INVALID_INTERPRETER error if the interpreter cannot be run
// or its output cannot be parsed.
func Detect(ctx context.Context, exe string) (*Environment, error) {
	if err := errors.ValidateInterpreterPath(exe); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, exe, "-c", markerScript)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInterpreter, ctx.Err(), "detecting environment for %s", exe)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInterpreter, err,
			"running %s: %s", exe, strings.TrimSpace(stderr.String()))
	}

	markers := make(map[string]string)
	if err := json.Unmarshal(stdout.Bytes(), &markers); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInterpreter, err, "parsing marker snapshot from %s", exe)
	}

	return &Environment{exe: exe, markers: markers}, nil
}

// Static creates an Environment from a fixed marker table without
// touching an interpreter. Intended for tests.
func Static(exe string, markers map[string]string) *Environment {
	m := make(map[string]string, len(markers))
	for k, v := range markers {
		m[k] = v
	}
	return &Environment{exe: exe, markers: m}
}

// Exe returns the interpreter executable path.
func (e *Environment) Exe() string { return e.exe }

// Markers returns a copy of the marker variable snapshot.
func (e *Environment) Markers() map[string]string {
	m := make(map[string]string, len(e.markers))
	for k, v := range e.markers {
		m[k] = v
	}
	return m
}

// Lookup resolves a marker variable from the snapshot.
// It implements [pep508.Environment].
func (e *Environment) Lookup(name string) (string, bool) {
	v, ok := e.markers[name]
	return v, ok
}

// Fingerprint returns a stable hash identifying the environment
// (interpreter path plus marker snapshot). Used as a cache key component
// so cached probe results never leak across environments.
func (e *Environment) Fingerprint() string {
	keys := make([]string, 0, len(e.markers))
	for k := range e.markers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(e.exe)
	for _, k := range keys {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(e.markers[k])
	}
	return cache.Hash([]byte(b.String()))
}

// NormalizeName converts a package name to its canonical form following
// PEP 503: lowercase, with runs of ".", "_" and "-" collapsed to a
// single hyphen. Canonical names are what the dependency graph uses as
// node identifiers.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if r == '.' || r == '_' || r == '-' {
			if !lastSep {
				b.WriteByte('-')
				lastSep = true
			}
			continue
		}
		lastSep = false
		b.WriteRune(r)
	}
	return b.String()
}
