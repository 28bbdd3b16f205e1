// Package dedupe suppresses repeated reports of the same condition within a
// time window. The orchestrator uses it so a printer that stays unreachable
// logs one warning per window rather than one per cycle.
package dedupe
