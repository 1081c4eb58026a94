package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"go.uber.org/zap"
)

// Registry maps variant names to generator constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[config.Variant]Constructor
	logger       *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger ...*zap.Logger) *Registry {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Registry{
		constructors: make(map[config.Variant]Constructor),
		logger:       l,
	}
}

// Register adds a constructor, replacing any previous one for the variant
func (r *Registry) Register(variant config.Variant, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[variant] = ctor
}

// Get retrieves a constructor by variant
func (r *Registry) Get(variant config.Variant) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.constructors[variant]
	return c, ok
}

// Names returns registered variants, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for v := range r.constructors {
		names = append(names, string(v))
	}
	sort.Strings(names)
	return names
}

// New builds the generator named by cfg.Variant.
func (r *Registry) New(cfg config.StrategyConfig) (Generator, error) {
	ctor, ok := r.Get(cfg.Variant)
	if !ok {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("no generator registered for variant %q", cfg.Variant))
	}
	g, err := ctor(cfg)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("generator created",
		zap.String("variant", string(cfg.Variant)),
		zap.String("generator", g.Description()),
	)
	return g, nil
}
