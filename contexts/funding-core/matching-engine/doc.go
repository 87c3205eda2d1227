// Package matchingengine implements the quadratic-funding distribution and
// marginal-estimate engine inside the funding-core context.
//
// The engine is purely functional: every entry point takes an immutable
// round snapshot (approved campaigns plus confirmed contributions), scores
// each campaign with the canonical QF formula (Σ sqrt of per-donor totals,
// squared), apportions the matching pool with largest-remainder rounding so
// the pool is conserved exactly, and returns freshly built value objects.
// It owns no persistent state; snapshot loading sits behind a port.
package matchingengine
