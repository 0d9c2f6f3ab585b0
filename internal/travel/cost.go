package travel

import (
	"math"

	"github.com/ashgale/canon/internal/graph"
)

// costedSegment fills in the segment's time from the distance model:
//
//	base minutes = distance / (walk speed * terrain multiplier)
//
// then applies modifiers as successive multiplications, in this order:
// weather time-multiplier, transportation speed-multiplier (inverted into
// time), then character condition.
func (e *Engine) costedSegment(_ *graph.Graph, seg Segment, prefs Preferences) Segment {
	terrainMult := lookupMult(e.cfg.TerrainMultipliers, seg.Terrain)
	minutes := seg.DistanceMeters / (e.cfg.WalkSpeed * terrainMult) / 60

	minutes *= lookupMult(e.cfg.WeatherMultipliers, prefs.Weather)
	minutes /= lookupMult(e.cfg.TransportSpeeds, prefs.Transport)
	minutes /= e.conditionFactor(prefs)

	seg.Minutes = minutes
	return seg
}

// conditionFactor derives a nonlinear speed factor from stamina and
// health. Each fraction is clamped to the configured floor so neither can
// zero the factor (which would make the time cost unbounded or free).
// Full condition yields exactly 1.0 - no modifier.
func (e *Engine) conditionFactor(prefs Preferences) float64 {
	stamina := prefs.Stamina
	if stamina <= 0 {
		stamina = 100
	}
	health := prefs.Health
	if health <= 0 {
		health = 100
	}
	sf := clampFrac(stamina/100, e.cfg.ConditionFloor)
	hf := clampFrac(health/100, e.cfg.ConditionFloor)
	return math.Sqrt(sf * hf)
}

func clampFrac(f, floor float64) float64 {
	if f < floor {
		return floor
	}
	if f > 1 {
		return 1
	}
	return f
}

// lookupMult resolves a multiplier tag; unknown or empty tags are neutral.
func lookupMult(table map[string]float64, tag string) float64 {
	if tag == "" {
		return 1.0
	}
	if m, ok := table[tag]; ok && m > 0 {
		return m
	}
	return 1.0
}
