// Package alignment implements the time-alignment layer of the
// coordination engine: loading per-venue bar and order tables, synthesizing
// second-level bars from minute data when native seconds are unavailable,
// and joining venue series onto a common time grid.
//
// Every grid records the join policy that produced it and whether any input
// was synthetic, so downstream metric records can carry that provenance
// into evidence.
package alignment
