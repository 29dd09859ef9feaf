package catalog

import (
	"fmt"

	"github.com/agent-mesh/region-router/internal/config"
	"github.com/agent-mesh/region-router/internal/domain"
)

// Catalog holds the immutable set of configured regions in declaration
// order. Declaration order is significant: strategy tie-breaks resolve to
// the region appearing first in the configuration list.
type Catalog struct {
	regions []domain.RegionConfig
	byID    map[string]int
}

// New builds a catalog from a region list, rejecting duplicate ids
func New(regions []domain.RegionConfig) (*Catalog, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("catalog requires at least one region")
	}

	byID := make(map[string]int, len(regions))
	for i, region := range regions {
		if region.ID == "" {
			return nil, fmt.Errorf("region at index %d has empty ID", i)
		}
		if _, exists := byID[region.ID]; exists {
			return nil, fmt.Errorf("duplicate region ID '%s'", region.ID)
		}
		byID[region.ID] = i
	}

	catalog := &Catalog{
		regions: make([]domain.RegionConfig, len(regions)),
		byID:    byID,
	}
	copy(catalog.regions, regions)
	return catalog, nil
}

// Load parses and validates the configuration document at path and
// returns the catalog plus the global routing policy. Any malformed
// document, duplicate region id, or unknown strategy fails here, before
// any router is constructed.
func Load(path string) (*Catalog, domain.RoutingPolicy, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, domain.RoutingPolicy{}, err
	}

	catalog, err := New(cfg.Regions)
	if err != nil {
		return nil, domain.RoutingPolicy{}, err
	}

	return catalog, cfg.ToRoutingPolicy(), nil
}

// All returns every configured region in declaration order
func (c *Catalog) All() []domain.RegionConfig {
	out := make([]domain.RegionConfig, len(c.regions))
	copy(out, c.regions)
	return out
}

// ActiveRegions returns the regions with active status, in declaration order
func (c *Catalog) ActiveRegions() []domain.RegionConfig {
	var active []domain.RegionConfig
	for _, region := range c.regions {
		if region.Status == domain.StatusActive {
			active = append(active, region)
		}
	}
	return active
}

// ByID returns the region with the given id
func (c *Catalog) ByID(id string) (domain.RegionConfig, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return domain.RegionConfig{}, false
	}
	return c.regions[idx], true
}

// Contains reports whether a region with the given id is configured
func (c *Catalog) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Len returns the number of configured regions
func (c *Catalog) Len() int {
	return len(c.regions)
}
