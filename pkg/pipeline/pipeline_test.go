package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/matzehuels/depwalk/pkg/cache"
	"github.com/matzehuels/depwalk/pkg/errors"
	"github.com/matzehuels/depwalk/pkg/pyenv"
)

type fakeProber struct {
	mu       sync.Mutex
	requires map[string][]string
	calls    int
}

func (p *fakeProber) DeclaredDependencies(_ context.Context, _ *pyenv.Environment, pkg string) ([]string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	reqs, ok := p.requires[pkg]
	if !ok {
		return nil, errors.New(errors.ErrCodePackageNotFound, "package %s is not installed", pkg)
	}
	return reqs, nil
}

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testEnv() *pyenv.Environment {
	return pyenv.Static("/usr/bin/python3", map[string]string{
		"sys_platform":        "linux",
		"platform_system":     "Linux",
		"python_version":      "3.12",
		"python_full_version": "3.12.4",
	})
}

func testOptions(prober *fakeProber, formats ...string) Options {
	return Options{
		Packages: []string{"app", "requests", "urllib3"},
		Formats:  formats,
		Env:      testEnv(),
		Prober:   prober,
	}
}

func newFakeProber() *fakeProber {
	return &fakeProber{requires: map[string][]string{
		"app":      {"requests"},
		"requests": {"urllib3", "certifi"},
		"urllib3":  nil,
		"certifi":  nil,
	}}
}

func TestExecute(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	result, err := runner.Execute(context.Background(), testOptions(newFakeProber(), "dot", "json"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// certifi is not requested, so the reduced graph drops it.
	if got, want := result.Stats.Nodes, 3; got != want {
		t.Errorf("Stats.Nodes = %d, want %d", got, want)
	}
	if got, want := result.Stats.Edges, 2; got != want {
		t.Errorf("Stats.Edges = %d, want %d", got, want)
	}
	if got, want := result.Stats.RawNodes, 4; got != want {
		t.Errorf("Stats.RawNodes = %d, want %d", got, want)
	}

	dot := string(result.Artifacts["dot"])
	if !strings.Contains(dot, `"app" -> "requests";`) {
		t.Errorf("dot output missing edge:\n%s", dot)
	}
	if strings.Contains(dot, "certifi") {
		t.Errorf("dot output contains unrequested package:\n%s", dot)
	}
	if _, ok := result.Artifacts["json"]; !ok {
		t.Error("json artifact missing")
	}
	if result.GraphHash == "" {
		t.Error("GraphHash is empty")
	}
	if result.CacheInfo.GraphHit {
		t.Error("GraphHit = true on cold run, want false")
	}
}

func TestExecuteGraphCacheHit(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	runner := NewRunner(fc, nil, nil)

	prober := newFakeProber()
	first, err := runner.Execute(context.Background(), testOptions(prober, "json"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	coldCalls := prober.callCount()
	if coldCalls == 0 {
		t.Fatal("prober never called on cold run")
	}

	second, err := runner.Execute(context.Background(), testOptions(prober, "json"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !second.CacheInfo.GraphHit {
		t.Error("GraphHit = false on warm run, want true")
	}
	if got := prober.callCount(); got != coldCalls {
		t.Errorf("prober called %d times total, want %d (no probes on warm run)", got, coldCalls)
	}
	if first.GraphHash != second.GraphHash {
		t.Errorf("GraphHash changed across runs: %s vs %s", first.GraphHash, second.GraphHash)
	}
}

func TestExecuteRefreshBypassesCache(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	runner := NewRunner(fc, nil, nil)

	prober := newFakeProber()
	if _, err := runner.Execute(context.Background(), testOptions(prober, "json")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	coldCalls := prober.callCount()

	opts := testOptions(prober, "json")
	opts.Refresh = true
	result, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.CacheInfo.GraphHit {
		t.Error("GraphHit = true with Refresh, want false")
	}
	if got := prober.callCount(); got <= coldCalls {
		t.Errorf("prober called %d times total, want more than %d (refresh re-probes)", got, coldCalls)
	}
}

func TestExecuteDeterministicHash(t *testing.T) {
	runner := NewRunner(nil, nil, nil)

	a, err := runner.Execute(context.Background(), testOptions(newFakeProber(), "json"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	b, err := runner.Execute(context.Background(), testOptions(newFakeProber(), "json"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if a.GraphHash != b.GraphHash {
		t.Errorf("GraphHash differs across identical runs: %s vs %s", a.GraphHash, b.GraphHash)
	}
	if string(a.Artifacts["json"]) != string(b.Artifacts["json"]) {
		t.Error("json artifact differs across identical runs")
	}
}

func TestValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		wantCode errors.Code
	}{
		{
			name:     "no packages",
			opts:     Options{},
			wantCode: errors.ErrCodeInvalidInput,
		},
		{
			name:     "invalid package name",
			opts:     Options{Packages: []string{"-bad-"}},
			wantCode: errors.ErrCodeInvalidPackage,
		},
		{
			name:     "unsupported format",
			opts:     Options{Packages: []string{"requests"}, Formats: []string{"svg"}},
			wantCode: errors.ErrCodeInvalidFormat,
		},
		{
			name: "defaults applied",
			opts: Options{Packages: []string{"requests"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if tt.wantCode != "" {
				if err == nil {
					t.Fatal("ValidateAndSetDefaults() error = nil, want error")
				}
				if got := errors.GetCode(err); got != tt.wantCode {
					t.Errorf("error code = %s, want %s", got, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateAndSetDefaults() error = %v", err)
			}
			if tt.opts.Interpreter != DefaultInterpreter {
				t.Errorf("Interpreter = %q, want %q", tt.opts.Interpreter, DefaultInterpreter)
			}
			if len(tt.opts.Formats) != 1 || tt.opts.Formats[0] != FormatDOT {
				t.Errorf("Formats = %v, want [%s]", tt.opts.Formats, FormatDOT)
			}
		})
	}
}
