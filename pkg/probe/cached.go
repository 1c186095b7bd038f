package probe

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/depwalk/pkg/cache"
	"github.com/matzehuels/depwalk/pkg/pyenv"
)

// CachedProber decorates a Prober with a persistent byte cache so repeat
// runs against an unchanged environment skip interpreter round-trips.
//
// This is distinct from the discovery engine's in-build memoization:
// memoization guarantees at-most-one probe per package within one build,
// while this cache is opt-in persistence across builds, keyed by the
// environment fingerprint so a changed environment misses cleanly.
type CachedProber struct {
	inner Prober
	cache cache.Cache
	keyer cache.Keyer
	ttl   time.Duration
}

// NewCachedProber wraps inner with the given cache backend and TTL.
// A nil keyer uses the default keyer.
func NewCachedProber(inner Prober, c cache.Cache, keyer cache.Keyer, ttl time.Duration) *CachedProber {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &CachedProber{inner: inner, cache: c, keyer: keyer, ttl: ttl}
}

// DeclaredDependencies serves from cache when possible and falls through
// to the wrapped prober otherwise. Cache read and write failures degrade
// to uncached probing; they never fail a build on their own.
func (p *CachedProber) DeclaredDependencies(ctx context.Context, env *pyenv.Environment, pkg string) ([]string, error) {
	key := p.keyer.ProbeKey(env.Fingerprint(), pkg)

	if data, hit, err := p.cache.Get(ctx, key); err == nil && hit {
		var reqs []string
		if err := json.Unmarshal(data, &reqs); err == nil {
			return reqs, nil
		}
		// Corrupt entry - drop it and re-probe.
		_ = p.cache.Delete(ctx, key)
	}

	reqs, err := p.inner.DeclaredDependencies(ctx, env, pkg)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(reqs); err == nil {
		_ = p.cache.Set(ctx, key, data, p.ttl)
	}
	return reqs, nil
}

// Ensure CachedProber implements Prober.
var _ Prober = (*CachedProber)(nil)
