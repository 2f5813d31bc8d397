package strategy

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/tnprice/crawler/internal/scraper"
)

// Params carries everything a strategy factory needs for one job.
type Params struct {
	Website    scraper.Website
	Config     scraper.ScraperConfig
	MaxPages   int
	Discoverer Discoverer
	Logger     *zap.Logger
}

// Factory builds a strategy instance for one job.
type Factory func(Params) scraper.Strategy

// Registry resolves a config type name to a strategy. Custom site-specific
// strategies register by name at process start; an explicit registration
// table, populated once, replaces relying on import-order side effects.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewRegistry builds a registry preloaded with the two built-ins.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		logger:    logger,
	}
	r.Register(scraper.ConfigTypeProductList, func(p Params) scraper.Strategy {
		return NewProductList(p)
	})
	r.Register(scraper.ConfigTypeSitemap, func(p Params) scraper.Strategy {
		return NewSitemap(p)
	})
	return r
}

// Register adds (or replaces) a named factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Has reports whether a strategy is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names lists registered strategy names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the strategy for the job's config type. Unknown names
// fall back to the selector-driven strategy with a warning rather than
// failing the job.
func (r *Registry) Resolve(p Params) scraper.Strategy {
	name := p.Config.ConfigType
	if name == "" {
		name = scraper.ConfigTypeProductList
	}

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("unknown strategy, falling back to product_list",
			zap.String("config_type", name),
			zap.String("website", p.Website.Name),
		)
		factory = func(p Params) scraper.Strategy { return NewProductList(p) }
	}
	return factory(p)
}
