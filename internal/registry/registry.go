// Package registry maps tool names to their descriptors and handlers.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	gwerrors "concord/internal/errors"
	"concord/internal/schema"
)

// Class describes a tool's idempotency, which gates retry and caching.
type Class int

const (
	// Read has no side effects. Retryable and cacheable.
	Read Class = iota
	// Write has side effects and is not safe to repeat. Never auto-retried.
	Write
	// IdempotentWrite has side effects but repeating it converges on the
	// same state, e.g. adding a reaction. Retryable, never cached.
	IdempotentWrite
)

func (c Class) String() string {
	switch c {
	case Read:
		return "read"
	case Write:
		return "write"
	case IdempotentWrite:
		return "idempotent_write"
	default:
		return "unknown"
	}
}

// Retryable reports whether an ambiguous failure may be retried.
func (c Class) Retryable() bool { return c != Write }

// Cacheable reports whether successful results may be cached.
func (c Class) Cacheable() bool { return c == Read }

// Handler executes a tool against validated parameters.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Descriptor is the complete registration record for one tool version.
type Descriptor struct {
	Name        string
	Version     string
	Description string
	Schema      *schema.Object
	Class       Class
	// CacheTTL bounds how long a successful read result may be served
	// from cache. Zero disables caching even for Read tools.
	CacheTTL time.Duration
	// Resources extracts the upstream resource ids a call touches, used
	// to tag cached reads and to invalidate them after writes.
	Resources func(params map[string]any) []string
	Handler   Handler
}

// Registry holds every registered tool, every version retained.
type Registry struct {
	mu       sync.RWMutex
	versions map[string][]*Descriptor // per name, sorted ascending by version
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{versions: make(map[string][]*Descriptor)}
}

// Register adds a descriptor. Re-registering an existing name+version or
// omitting required fields is a programming error and fails loudly at startup.
func (r *Registry) Register(d *Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("tool descriptor missing name")
	}
	if d.Version == "" {
		d.Version = "1.0.0"
	}
	if d.Schema == nil {
		return fmt.Errorf("tool %s missing schema", d.Name)
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %s missing handler", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	existing := r.versions[d.Name]
	for _, v := range existing {
		if v.Version == d.Version {
			return fmt.Errorf("tool %s version %s already registered", d.Name, d.Version)
		}
	}
	existing = append(existing, d)
	sort.Slice(existing, func(i, j int) bool {
		return compareVersions(existing[i].Version, existing[j].Version) < 0
	})
	r.versions[d.Name] = existing
	return nil
}

// MustRegister is Register for static catalogs built at startup.
func (r *Registry) MustRegister(d *Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Resolve returns the descriptor for name. An empty version selects the
// latest registered version.
func (r *Registry) Resolve(name, version string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions := r.versions[name]
	if len(versions) == 0 {
		return nil, &gwerrors.UnknownToolError{Tool: name}
	}
	if version == "" {
		return versions[len(versions)-1], nil
	}
	for _, d := range versions {
		if d.Version == version {
			return d, nil
		}
	}
	return nil, &gwerrors.UnknownVersionError{Tool: name, Version: version}
}

// List returns the latest version of every tool, sorted by name.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.versions))
	for _, versions := range r.versions {
		out = append(out, versions[len(versions)-1])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len reports the number of distinct tool names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.versions)
}

// compareVersions orders dotted numeric versions; non-numeric segments
// fall back to string order.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv string
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		an, aErr := strconv.Atoi(av)
		bn, bErr := strconv.Atoi(bv)
		if aErr == nil && bErr == nil {
			if an != bn {
				if an < bn {
					return -1
				}
				return 1
			}
			continue
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
