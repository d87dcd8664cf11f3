package policy

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/victoralfred/gowritter/safepath"
	"gopkg.in/yaml.v3"
)

// Loader loads and manages policies from YAML files.
type Loader struct {
	path     string
	safePath *safepath.SafePath
	policy   *CompiledPolicy
	mu       sync.RWMutex
	lastHash []byte
	lastLoad time.Time
	onChange []func(*CompiledPolicy)
}

// LoaderOption configures the loader.
type LoaderOption func(*Loader)

// WithOnChange adds a callback invoked when a reload observes a changed
// policy file.
func WithOnChange(fn func(*CompiledPolicy)) LoaderOption {
	return func(l *Loader) {
		l.onChange = append(l.onChange, fn)
	}
}

// NewLoader creates a new policy loader rooted at basePath.
func NewLoader(basePath, policyFile string, opts ...LoaderOption) (*Loader, error) {
	sp, err := safepath.New(basePath)
	if err != nil {
		return nil, fmt.Errorf("creating safe path: %w", err)
	}

	l := &Loader{
		path:     policyFile,
		safePath: sp,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load reads, parses and compiles the policy file. Unchanged file content
// returns the cached compiled policy.
func (l *Loader) Load(ctx context.Context) (*CompiledPolicy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.safePath.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	hash := sha256.Sum256(data)
	if l.policy != nil && string(hash[:]) == string(l.lastHash) {
		return l.policy, nil
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	compiled, err := compile(&config)
	if err != nil {
		return nil, fmt.Errorf("compiling policy: %w", err)
	}

	changed := l.policy != nil
	l.policy = compiled
	l.lastHash = hash[:]
	l.lastLoad = time.Now()

	if changed {
		for _, fn := range l.onChange {
			fn(compiled)
		}
	}
	return compiled, nil
}

// Current returns the most recently loaded policy, or nil before the
// first Load.
func (l *Loader) Current() *CompiledPolicy {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.policy
}
