package discover

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/depwalk/pkg/depgraph"
	"github.com/matzehuels/depwalk/pkg/errors"
	"github.com/matzehuels/depwalk/pkg/pyenv"
)

// stubProber serves canned requirement lists and counts probes per package.
type stubProber struct {
	mu       sync.Mutex
	requires map[string][]string
	fail     map[string]error
	delay    map[string]time.Duration
	calls    map[string]int
}

func newStubProber(requires map[string][]string) *stubProber {
	return &stubProber{
		requires: requires,
		fail:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (p *stubProber) DeclaredDependencies(_ context.Context, _ *pyenv.Environment, pkg string) ([]string, error) {
	p.mu.Lock()
	p.calls[pkg]++
	p.mu.Unlock()

	if d, ok := p.delay[pkg]; ok {
		time.Sleep(d)
	}
	if err, ok := p.fail[pkg]; ok {
		return nil, err
	}
	reqs, ok := p.requires[pkg]
	if !ok {
		return nil, errors.New(errors.ErrCodePackageNotFound, "package %s is not installed", pkg)
	}
	return reqs, nil
}

func (p *stubProber) callCount(pkg string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[pkg]
}

func linuxEnv() *pyenv.Environment {
	return pyenv.Static("/usr/bin/python3", map[string]string{
		"os_name":                        "posix",
		"sys_platform":                   "linux",
		"platform_system":                "Linux",
		"platform_machine":               "x86_64",
		"platform_python_implementation": "CPython",
		"python_version":                 "3.11",
		"python_full_version":            "3.11.9",
		"implementation_name":            "cpython",
	})
}

func TestDiscoverWalksTransitively(t *testing.T) {
	prober := newStubProber(map[string][]string{
		"app":      {"requests"},
		"requests": {"urllib3", "certifi"},
		"urllib3":  nil,
		"certifi":  nil,
	})

	g, err := New(prober).Discover(context.Background(), linuxEnv(), []string{"app"}, Options{})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	wantNodes := []string{"app", "certifi", "requests", "urllib3"}
	if got := g.Nodes(); !slices.Equal(got, wantNodes) {
		t.Errorf("nodes = %v, want %v", got, wantNodes)
	}
	wantEdges := []depgraph.Edge{
		{From: "app", To: "requests"},
		{From: "requests", To: "certifi"},
		{From: "requests", To: "urllib3"},
	}
	if got := g.Edges(); !slices.Equal(got, wantEdges) {
		t.Errorf("edges = %v, want %v", got, wantEdges)
	}
}

func TestDiscoverProbesEachPackageOnce(t *testing.T) {
	// Diamond: both b and c depend on d. d must be probed exactly once.
	prober := newStubProber(map[string][]string{
		"a": {"b", "c"},
		"b": {"d"},
		"c": {"d"},
		"d": nil,
	})

	if _, err := New(prober).Discover(context.Background(), linuxEnv(), []string{"a"}, Options{}); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	for _, pkg := range []string{"a", "b", "c", "d"} {
		if got := prober.callCount(pkg); got != 1 {
			t.Errorf("probe count for %s = %d, want 1", pkg, got)
		}
	}
}

func TestDiscoverNormalizesNames(t *testing.T) {
	prober := newStubProber(map[string][]string{
		"typing-extensions": nil,
	})

	g, err := New(prober).Discover(context.Background(), linuxEnv(), []string{"Typing.Extensions"}, Options{})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if got, want := g.Nodes(), []string{"typing-extensions"}; !slices.Equal(got, want) {
		t.Errorf("nodes = %v, want %v", got, want)
	}
}

func TestDiscoverFilteredDependencyNeverProbed(t *testing.T) {
	prober := newStubProber(map[string][]string{
		"app":      {`colorama; platform_system == "Windows"`, "requests"},
		"requests": nil,
		"colorama": nil,
	})

	g, err := New(prober).Discover(context.Background(), linuxEnv(), []string{"app"}, Options{})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if g.HasNode("colorama") {
		t.Error("filtered dependency colorama appears in graph")
	}
	if got := prober.callCount("colorama"); got != 0 {
		t.Errorf("probe count for colorama = %d, want 0", got)
	}
	if !g.HasEdge("app", "requests") {
		t.Error("edge app -> requests missing")
	}
}

func TestDiscoverUnsupportedMarkerSkipsWithWarning(t *testing.T) {
	prober := newStubProber(map[string][]string{
		"app":      {`weird; nonexistent_variable == "x"`, "requests"},
		"requests": nil,
	})

	var warnings []string
	opts := Options{Logger: func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}}

	g, err := New(prober).Discover(context.Background(), linuxEnv(), []string{"app"}, opts)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if g.HasNode("weird") {
		t.Error("dependency with unsupported marker appears in graph")
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "weird") {
		t.Errorf("warnings = %v, want one mentioning weird", warnings)
	}
}

func TestDiscoverProbeFailureAborts(t *testing.T) {
	prober := newStubProber(map[string][]string{
		"app":    {"broken", "fine"},
		"broken": nil,
		"fine":   nil,
	})
	prober.fail["broken"] = errors.New(errors.ErrCodeProbeFailed, "metadata is corrupt")

	_, err := New(prober).Discover(context.Background(), linuxEnv(), []string{"app"}, Options{})
	if err == nil {
		t.Fatal("Discover() error = nil, want probe failure")
	}
	if got := errors.GetCode(err); got != errors.ErrCodeProbeFailed {
		t.Errorf("error code = %s, want %s", got, errors.ErrCodeProbeFailed)
	}
}

func TestDiscoverMissingRootAborts(t *testing.T) {
	prober := newStubProber(map[string][]string{})

	_, err := New(prober).Discover(context.Background(), linuxEnv(), []string{"ghost"}, Options{})
	if err == nil {
		t.Fatal("Discover() error = nil, want package-not-found")
	}
	if got := errors.GetCode(err); got != errors.ErrCodePackageNotFound {
		t.Errorf("error code = %s, want %s", got, errors.ErrCodePackageNotFound)
	}
}

func TestDiscoverMalformedRequirementAborts(t *testing.T) {
	prober := newStubProber(map[string][]string{
		"app": {"???not a requirement???"},
	})

	_, err := New(prober).Discover(context.Background(), linuxEnv(), []string{"app"}, Options{})
	if err == nil {
		t.Fatal("Discover() error = nil, want malformed-requirement")
	}
	if got := errors.GetCode(err); got != errors.ErrCodeMalformedRequirement {
		t.Errorf("error code = %s, want %s", got, errors.ErrCodeMalformedRequirement)
	}
}

func TestDiscoverSelfDependencyKept(t *testing.T) {
	// Extras can make a distribution require itself; the edge is kept
	// but the package is not probed twice.
	prober := newStubProber(map[string][]string{
		"pkg": {"pkg"},
	})

	g, err := New(prober).Discover(context.Background(), linuxEnv(), []string{"pkg"}, Options{})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if !g.HasEdge("pkg", "pkg") {
		t.Error("self edge missing")
	}
	if got := prober.callCount("pkg"); got != 1 {
		t.Errorf("probe count = %d, want 1", got)
	}
}

func TestDiscoverDeterministicAcrossRuns(t *testing.T) {
	requires := map[string][]string{
		"a": {"c", "b"},
		"b": {"d"},
		"c": {"d", "b"},
		"d": nil,
	}

	base, err := New(newStubProber(requires)).Discover(context.Background(), linuxEnv(), []string{"a"}, Options{Workers: 4})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	for range 5 {
		g, err := New(newStubProber(requires)).Discover(context.Background(), linuxEnv(), []string{"a"}, Options{Workers: 4})
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		if !g.Equal(base) {
			t.Fatalf("graphs differ across runs:\nbase = %v\ngot  = %v", base.Edges(), g.Edges())
		}
	}
}

func TestDiscoverMaxNodesDeterministicUnderScheduling(t *testing.T) {
	// With a node cap, which packages get probed must not depend on
	// which probe finishes first. Each round probes a sorted frontier,
	// so the admitted set is the same no matter how workers are
	// scheduled; delays skew completion order to expose regressions.
	requires := map[string][]string{
		"app": {"b", "a"},
		"a":   {"x"},
		"b":   {"y"},
		"x":   nil,
		"y":   nil,
	}

	want := depgraph.New()
	for _, e := range []depgraph.Edge{
		{From: "app", To: "a"},
		{From: "app", To: "b"},
		{From: "a", To: "x"},
		{From: "b", To: "y"},
	} {
		_ = want.AddEdge(e.From, e.To)
	}

	for _, delays := range []map[string]time.Duration{
		{"a": 5 * time.Millisecond},
		{"b": 5 * time.Millisecond},
	} {
		prober := newStubProber(requires)
		prober.delay = delays

		g, err := New(prober).Discover(context.Background(), linuxEnv(), []string{"app"}, Options{Workers: 4, MaxNodes: 3})
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		if !g.Equal(want) {
			t.Errorf("graph under cap = %v, want %v", g.Edges(), want.Edges())
		}
		for _, pkg := range []string{"x", "y"} {
			if got := prober.callCount(pkg); got != 0 {
				t.Errorf("probe count for %s = %d, want 0 under the node cap", pkg, got)
			}
		}
	}
}

func TestDiscoverNoRoots(t *testing.T) {
	_, err := New(newStubProber(nil)).Discover(context.Background(), linuxEnv(), nil, Options{})
	if err == nil {
		t.Fatal("Discover() error = nil, want invalid-input")
	}
	if got := errors.GetCode(err); got != errors.ErrCodeInvalidInput {
		t.Errorf("error code = %s, want %s", got, errors.ErrCodeInvalidInput)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{}.WithDefaults()
	if opts.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", opts.Workers, DefaultWorkers)
	}
	if opts.MaxNodes != DefaultMaxNodes {
		t.Errorf("MaxNodes = %d, want %d", opts.MaxNodes, DefaultMaxNodes)
	}
	if opts.Logger == nil {
		t.Error("Logger = nil, want no-op default")
	}

	custom := Options{Workers: 2, MaxNodes: 10}.WithDefaults()
	if custom.Workers != 2 || custom.MaxNodes != 10 {
		t.Errorf("WithDefaults() overwrote explicit values: %+v", custom)
	}
}
