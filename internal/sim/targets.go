package sim

import (
	"strings"
	"sync"

	"growcore/pkg/domain"
)

type speciesStageKey struct {
	species string
	stage   domain.GrowthStage
}

// SpeciesCatalog maps (species, growth stage) pairs to target environments.
// Absence of an entry means "no deviation checking applies", not an error.
type SpeciesCatalog struct {
	mu      sync.RWMutex
	targets map[speciesStageKey]domain.TargetEnvironment
}

// NewSpeciesCatalog returns an empty catalog.
func NewSpeciesCatalog() *SpeciesCatalog {
	return &SpeciesCatalog{targets: make(map[speciesStageKey]domain.TargetEnvironment)}
}

func normalizeSpecies(species string) string {
	return strings.ToLower(strings.TrimSpace(species))
}

// Register adds or replaces the target environment for a species/stage pair.
func (c *SpeciesCatalog) Register(species string, stage domain.GrowthStage, target domain.TargetEnvironment) {
	key := speciesStageKey{species: normalizeSpecies(species), stage: stage}
	c.mu.Lock()
	c.targets[key] = target
	c.mu.Unlock()
}

// Lookup returns the target environment for a species/stage pair. It returns
// false when species or stage is unset or unknown.
func (c *SpeciesCatalog) Lookup(species string, stage domain.GrowthStage) (domain.TargetEnvironment, bool) {
	if species == "" || stage == "" {
		return domain.TargetEnvironment{}, false
	}
	key := speciesStageKey{species: normalizeSpecies(species), stage: stage}
	c.mu.RLock()
	target, ok := c.targets[key]
	c.mu.RUnlock()
	return target, ok
}

func ptr(v float64) *float64 { return &v }

// DefaultCatalog returns the built-in species/stage target table. Species
// packs may extend a catalog at service construction time; the built-ins stay
// aligned with the species catalogue of the surrounding application.
func DefaultCatalog() *SpeciesCatalog {
	c := NewSpeciesCatalog()

	c.Register("oyster", domain.StageColonization, domain.TargetEnvironment{
		TemperatureC: ptr(24), HumidityPct: ptr(90), CO2PPM: ptr(5000),
	})
	c.Register("oyster", domain.StagePrimordia, domain.TargetEnvironment{
		TemperatureC: ptr(18), HumidityPct: ptr(95), CO2PPM: ptr(800),
	})
	c.Register("oyster", domain.StageFruiting, domain.TargetEnvironment{
		TemperatureC: ptr(18), HumidityPct: ptr(85), CO2PPM: ptr(1000),
	})

	c.Register("lions_mane", domain.StageColonization, domain.TargetEnvironment{
		TemperatureC: ptr(23), HumidityPct: ptr(90), CO2PPM: ptr(5000),
	})
	c.Register("lions_mane", domain.StagePrimordia, domain.TargetEnvironment{
		TemperatureC: ptr(16), HumidityPct: ptr(95), CO2PPM: ptr(700),
	})
	c.Register("lions_mane", domain.StageFruiting, domain.TargetEnvironment{
		TemperatureC: ptr(20), HumidityPct: ptr(90), CO2PPM: ptr(800),
	})

	c.Register("king_oyster", domain.StageColonization, domain.TargetEnvironment{
		TemperatureC: ptr(24), HumidityPct: ptr(90), CO2PPM: ptr(5000),
	})
	c.Register("king_oyster", domain.StageFruiting, domain.TargetEnvironment{
		TemperatureC: ptr(16), HumidityPct: ptr(88), CO2PPM: ptr(900),
	})

	return c
}
