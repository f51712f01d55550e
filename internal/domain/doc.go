// Package domain models one disaster monitoring and response run.
//
// # Run State
//
// A RunState is the single source of truth for one detection/planning cycle.
// It is created fresh per run, owned exclusively by the active workflow, and
// mutated only through Apply, which validates a StateUpdate against the full
// schema before merging. Nothing outside this package writes RunState fields
// directly.
//
// # Hazard Data Conventions
//
// Hazard records are normalized from heterogeneous public feeds:
//
//	USGS earthquake catalog (GeoJSON): magnitude is moment magnitude.
//	  Severity mapping: <3.0 low | <4.5 moderate | <6.0 high | ≥6.0 critical.
//	NOAA/NWS active alerts: severity comes from the alert's own
//	  severity field ("Minor"/"Moderate"/"Severe"/"Extreme"), mapped to
//	  low/moderate/high/critical. Magnitude is not meaningful and is 0.
//
// Records carry a provider confidence in [0,1]. Feeds that publish confirmed
// observations (USGS) report 1.0; forecast-style alerts report the fraction
// of certainty the provider encodes ("observed"=1.0, "likely"=0.7,
// "possible"=0.4, otherwise 0.5).
//
// # Severity Scoring
//
// Severity assessment is an additive score in [0,1] built from magnitude,
// population at risk, critical infrastructure count, and affected area.
// The level bands are:
//
//	<0.2 low | <0.4 moderate | <0.6 high | ≥0.6 critical
//
// Escalation (handing the run to the planning engine) triggers when the
// score reaches the configured escalation threshold, when the level is high
// or above, or when the free-text situation description indicates an
// ongoing event ("ongoing", "happening now", "in progress").
//
// # Phases
//
// Phase tags name every node of both workflow graphs. The detection graph
// cycles polling → … → waiting; the planning graph runs loading_context →
// … → planning_complete or error_handling, which are terminal. A run's
// Phase always reflects exactly where it stopped, so callers can
// distinguish "completed with partial data" from "did not run".
package domain
