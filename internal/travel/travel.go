// Package travel computes multi-scale routes over the world graph's
// containment hierarchy, under a knowledge filter.
//
// The engine reads the graph and never mutates it; movement it decides on
// is expressed as proposed patches for the arbiter to commit. All failures
// are typed results the caller branches on - "no known route" is an
// expected outcome, not an exception.
package travel

import (
	"context"
	"log/slog"

	"github.com/ashgale/canon/internal/canon"
	"github.com/ashgale/canon/internal/graph"
	"github.com/ashgale/canon/internal/knowledge"
	"github.com/ashgale/canon/internal/prop"
)

// PairClass is the hierarchical classification of an origin/destination pair.
type PairClass string

const (
	ClassSameLocation  PairClass = "same_location"
	ClassNested        PairClass = "nested"
	ClassSameContainer PairClass = "same_container"
	ClassDistant       PairClass = "distant"
)

// Failure reasons. Reason strings are part of the caller contract; the
// knowledge gate reason must mention "unknown".
const (
	ReasonUnknownDestination = "destination unknown"
	ReasonMissingEntity      = "missing entity"
	ReasonNoRoute            = "no route"
	ReasonTimeout            = "timeout"
	ReasonCycleDetected      = "cycle detected"
)

// Algorithm labels reported on results.
const (
	AlgoHierarchical = "hierarchical"
	AlgoCached       = "cached"
)

// Segment kinds.
const (
	SegmentLocal       = "local"
	SegmentContainment = "containment"
	SegmentConnection  = "connection"
)

// Segment is one traversable step of a computed route.
type Segment struct {
	From           string  `json:"from"`
	To             string  `json:"to"`
	Kind           string  `json:"kind"`
	Terrain        string  `json:"terrain,omitempty"`
	DistanceMeters float64 `json:"distance_m"`
	Minutes        float64 `json:"minutes"`
}

// Preferences tune the cost model for one traveler.
// Zero values mean "unspecified": walking, clear weather, full condition.
type Preferences struct {
	// Transport selects a speed multiplier from the engine config
	// ("" or "walk" is baseline walking).
	Transport string `json:"transport,omitempty"`
	// Weather selects a time multiplier from the engine config.
	Weather string `json:"weather,omitempty"`
	// Stamina and Health are 0-100 condition inputs; 0 reads as 100.
	Stamina float64 `json:"stamina,omitempty"`
	Health  float64 `json:"health,omitempty"`
}

// hash returns the cache key component for the preferences.
func (p Preferences) hash() (string, error) {
	return prop.HashCanonical(prop.DomainPrefs, prop.Map{
		"transport": prop.String(p.Transport),
		"weather":   prop.String(p.Weather),
		"stamina":   prop.Float(p.Stamina),
		"health":    prop.Float(p.Health),
	})
}

// RouteResult is the outcome of a route computation. Success false carries
// a Reason from the failure taxonomy; nothing in a failed result reveals
// graph contents the traveler has not discovered.
type RouteResult struct {
	Success          bool      `json:"success"`
	Reason           string    `json:"reason,omitempty"`
	From             string    `json:"from"`
	To               string    `json:"to"`
	Class            PairClass `json:"class,omitempty"`
	Segments         []Segment `json:"segments,omitempty"`
	DistanceMeters   float64   `json:"distance_m"`
	EstimatedMinutes float64   `json:"estimated_minutes"`
	AlgorithmUsed    string    `json:"algorithm_used,omitempty"`
	NodesExplored    int       `json:"nodes_explored"`
}

// Config holds the tunable cost model and engine limits.
type Config struct {
	// WalkSpeed is the base walking speed in meters per second.
	WalkSpeed float64
	// DefaultScale is meters per grid unit when the world root does not
	// carry a meters_per_unit property.
	DefaultScale float64
	// NominalContainmentMeters is the distance charged for a nested
	// (containment) segment.
	NominalContainmentMeters float64
	// MaxChainDepth caps the containment chain walk; deeper worlds fail
	// closed with a cycle/depth error.
	MaxChainDepth int
	// CacheSize is the FIFO route cache capacity.
	CacheSize int
	// ConditionFloor clamps the stamina and health fractions so neither
	// can zero out (or blow up) the time cost.
	ConditionFloor float64
	// TerrainMultipliers maps terrain tags to speed multipliers.
	TerrainMultipliers map[string]float64
	// WeatherMultipliers maps weather tags to time multipliers.
	WeatherMultipliers map[string]float64
	// TransportSpeeds maps transport tags to speed multipliers.
	TransportSpeeds map[string]float64
}

// DefaultConfig returns the reference tuning: 1.4 m/s walking, 15 m per
// grid unit, capacity-128 FIFO cache.
func DefaultConfig() Config {
	return Config{
		WalkSpeed:                1.4,
		DefaultScale:             15,
		NominalContainmentMeters: 100,
		MaxChainDepth:            64,
		CacheSize:                128,
		ConditionFloor:           0.1,
		TerrainMultipliers: map[string]float64{
			"road":     1.2,
			"plains":   1.0,
			"forest":   0.7,
			"hills":    0.6,
			"swamp":    0.4,
			"mountain": 0.35,
		},
		WeatherMultipliers: map[string]float64{
			"clear": 1.0,
			"rain":  1.3,
			"fog":   1.2,
			"storm": 1.8,
			"snow":  1.6,
		},
		TransportSpeeds: map[string]float64{
			"walk":  1.0,
			"horse": 2.5,
			"cart":  1.5,
			"wagon": 1.2,
			"ship":  3.0,
		},
	}
}

// Engine computes and caches routes. One engine per session keeps the
// cache isolated; the cache carries its own mutex so a shared engine is
// still safe.
type Engine struct {
	cfg   Config
	cache *routeCache
	log   *slog.Logger
}

// NewEngine creates an engine. Zero-valued config fields fall back to
// DefaultConfig values.
func NewEngine(cfg Config) *Engine {
	return NewEngineWithLogger(cfg, slog.Default())
}

// NewEngineWithLogger creates an engine with an explicit logger.
func NewEngineWithLogger(cfg Config, log *slog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.WalkSpeed <= 0 {
		cfg.WalkSpeed = def.WalkSpeed
	}
	if cfg.DefaultScale <= 0 {
		cfg.DefaultScale = def.DefaultScale
	}
	if cfg.NominalContainmentMeters <= 0 {
		cfg.NominalContainmentMeters = def.NominalContainmentMeters
	}
	if cfg.MaxChainDepth <= 0 {
		cfg.MaxChainDepth = def.MaxChainDepth
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.ConditionFloor <= 0 {
		cfg.ConditionFloor = def.ConditionFloor
	}
	if cfg.TerrainMultipliers == nil {
		cfg.TerrainMultipliers = def.TerrainMultipliers
	}
	if cfg.WeatherMultipliers == nil {
		cfg.WeatherMultipliers = def.WeatherMultipliers
	}
	if cfg.TransportSpeeds == nil {
		cfg.TransportSpeeds = def.TransportSpeeds
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg, cache: newRouteCache(cfg.CacheSize), log: log}
}

// fail builds a typed failure result.
func fail(fromID, toID, reason string) RouteResult {
	return RouteResult{Success: false, Reason: reason, From: fromID, To: toID}
}

// CalculateRoute computes a route from fromID to toID for a traveler whose
// knowledge is kv. The caller supplies its timeout through ctx; the engine
// aborts cleanly between phases and reports a "timeout" failure rather
// than partial results.
func (e *Engine) CalculateRoute(ctx context.Context, g *graph.Graph, kv knowledge.View, fromID, toID string, prefs Preferences) RouteResult {
	// Knowledge gate comes before ANY graph read so a failed result
	// reveals nothing about undiscovered geography.
	if !kv.IsDiscovered(toID) {
		return fail(fromID, toID, ReasonUnknownDestination)
	}

	key, keyErr := cacheKey(fromID, toID, prefs)
	if keyErr == nil {
		if cached, ok := e.cache.get(key); ok {
			cached.AlgorithmUsed = AlgoCached
			cached.NodesExplored = 0
			return cached
		}
	}

	if _, ok := g.GetEntity(fromID); !ok {
		return fail(fromID, toID, ReasonMissingEntity)
	}
	if _, ok := g.GetEntity(toID); !ok {
		return fail(fromID, toID, ReasonMissingEntity)
	}

	if ctx.Err() != nil {
		return fail(fromID, toID, ReasonTimeout)
	}

	// Phase 1: containment chains.
	fromChain, err := containmentChain(g, fromID, e.cfg.MaxChainDepth)
	if err != nil {
		return fail(fromID, toID, ReasonCycleDetected)
	}
	toChain, err := containmentChain(g, toID, e.cfg.MaxChainDepth)
	if err != nil {
		return fail(fromID, toID, ReasonCycleDetected)
	}

	if ctx.Err() != nil {
		return fail(fromID, toID, ReasonTimeout)
	}

	// Phase 2: classification.
	class := classifyPair(fromID, toID, fromChain, toChain)

	if ctx.Err() != nil {
		return fail(fromID, toID, ReasonTimeout)
	}

	// Phase 3: segment construction and cost model.
	segments, ok := e.buildSegments(g, class, fromID, toID, fromChain, toChain, prefs)
	if !ok {
		return fail(fromID, toID, ReasonNoRoute)
	}

	result := RouteResult{
		Success:       true,
		From:          fromID,
		To:            toID,
		Class:         class,
		Segments:      segments,
		AlgorithmUsed: AlgoHierarchical,
		NodesExplored: len(fromChain) + len(toChain) + 1,
	}
	for _, s := range segments {
		result.DistanceMeters += s.DistanceMeters
		result.EstimatedMinutes += s.Minutes
	}

	if keyErr == nil {
		e.cache.put(key, result)
	}
	e.log.Debug("route computed",
		"from", fromID, "to", toID, "class", string(class),
		"segments", len(segments), "minutes", result.EstimatedMinutes)
	return result
}

// MovePatches expresses a successful route as proposed patches that move
// the traveler to the destination and charge stamina for the trip. The
// engine itself commits nothing; the caller submits these to the arbiter.
func MovePatches(travelerID string, route RouteResult, proposer string) canon.PatchSet {
	if !route.Success {
		return nil
	}
	staminaCost := route.EstimatedMinutes / 10
	if staminaCost < 1 {
		staminaCost = 1
	}
	return canon.PatchSet{
		{Op: canon.OpSet, Entity: travelerID, Field: "location", Value: prop.String(route.To), Proposer: proposer},
		{Op: canon.OpDecrement, Entity: travelerID, Field: "stamina", Value: prop.Float(staminaCost), Proposer: proposer},
	}
}
