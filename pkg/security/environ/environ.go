// Package environ applies caller-supplied environment overlays to the worker
// process while keeping a fixed set of sensitive keys out of reach.
package environ

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/entrhq/browserd/pkg/logging"
)

// fixedBlocked lists keys that overlays can never change. Compared upper-cased.
var fixedBlocked = []string{
	"NODE_OPTIONS",
	"NODE_PATH",
	"PATH",
	"HOME",
	"USERPROFILE",
	"TEMP",
	"TMP",
	"TMPDIR",
	"PLAYWRIGHT_BROWSERS_PATH",
	"PLAYWRIGHT_DRIVER_PATH",
}

// Blocklist decides which environment keys are immune to overlays.
type Blocklist struct {
	keys     map[string]struct{}
	patterns []glob.Glob
}

// NewBlocklist builds a blocklist from the fixed keys plus extra glob patterns
// such as "AWS_*". Matching is case-insensitive.
func NewBlocklist(patterns []string) (*Blocklist, error) {
	b := &Blocklist{keys: make(map[string]struct{}, len(fixedBlocked))}
	for _, k := range fixedBlocked {
		b.keys[k] = struct{}{}
	}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(strings.ToUpper(p))
		if err != nil {
			return nil, fmt.Errorf("invalid blocked env pattern %q: %w", p, err)
		}
		b.patterns = append(b.patterns, g)
	}
	return b, nil
}

// Blocked reports whether key is immune to overlays.
func (b *Blocklist) Blocked(key string) bool {
	upper := strings.ToUpper(key)
	if _, ok := b.keys[upper]; ok {
		return true
	}
	for _, g := range b.patterns {
		if g.Match(upper) {
			return true
		}
	}
	return false
}

// Environment is the single guarded accessor for the process environment.
// Overlays persist for the lifetime of the process.
type Environment struct {
	mu        sync.RWMutex
	blocklist *Blocklist
	logger    *logging.Logger
}

// New creates an accessor enforcing blocklist. A nil blocklist means the
// fixed keys only.
func New(blocklist *Blocklist) *Environment {
	if blocklist == nil {
		blocklist, _ = NewBlocklist(nil)
	}
	return &Environment{
		blocklist: blocklist,
		logger:    logging.NewLogger("environ"),
	}
}

// Apply sets every non-blocked key with a value and unsets those with a nil
// value. Blocked keys are skipped and returned.
func (e *Environment) Apply(overlay map[string]*string) (skipped []string, err error) {
	if len(overlay) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, k := range keys {
		if k == "" {
			continue
		}
		if e.blocklist.Blocked(k) {
			e.logger.Debugf("skipping blocked env key %s", k)
			skipped = append(skipped, k)
			continue
		}
		if v := overlay[k]; v != nil {
			if err := os.Setenv(k, *v); err != nil {
				return skipped, fmt.Errorf("failed to set %s: %w", k, err)
			}
		} else if err := os.Unsetenv(k); err != nil {
			return skipped, fmt.Errorf("failed to unset %s: %w", k, err)
		}
	}
	return skipped, nil
}

// Get returns the value of key, or "" when unset.
func (e *Environment) Get(key string) string {
	v, _ := e.Lookup(key)
	return v
}

// Lookup returns the value of key and whether it is set.
func (e *Environment) Lookup(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return os.LookupEnv(key)
}

// Snapshot returns a copy of the current environment.
func (e *Environment) Snapshot() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}
