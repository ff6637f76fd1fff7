package dex

import (
	"sort"
	"strings"
	"sync"
)

// Canonical venue identifiers
const (
	VenueUniswapV2 = "uniswapv2"
	VenueSushiswap = "sushiswap"
	VenueUniswapV3 = "uniswapv3"
)

// aliases maps lowercase-trimmed free-text venue names to canonical identifiers
var aliases = map[string]string{
	"uniswapv2":  VenueUniswapV2,
	"uniswap v2": VenueUniswapV2,
	"uniswap":    VenueUniswapV2,
	"sushiswap":  VenueSushiswap,
	"sushi":      VenueSushiswap,
	"uniswapv3":  VenueUniswapV3,
	"uniswap v3": VenueUniswapV3,
}

// Canonical normalizes a venue name. Unknown names report false.
func Canonical(name string) (string, bool) {
	venue, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	return venue, ok
}

// Registry holds the routers configured for this deployment
type Registry struct {
	mu      sync.RWMutex
	routers map[string]Router
}

func NewRegistry() *Registry {
	return &Registry{routers: make(map[string]Router)}
}

// Register installs router under its canonical name
func (r *Registry) Register(router Router) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routers[router.Name()] = router
}

// Lookup resolves a free-text venue name to a configured router
func (r *Registry) Lookup(name string) (Router, bool) {
	venue, ok := Canonical(name)
	if !ok {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	router, ok := r.routers[venue]
	return router, ok
}

// Venues lists configured canonical identifiers in sorted order
func (r *Registry) Venues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	venues := make([]string, 0, len(r.routers))
	for name := range r.routers {
		venues = append(venues, name)
	}
	sort.Strings(venues)
	return venues
}
