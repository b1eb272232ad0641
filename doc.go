// Package coherence simulates a small shared-memory multiprocessor that
// exercises a write-back MOESI cache-coherence protocol across several
// cores sharing one memory bus.
//
// A System owns N processors, one Memory and one Bus. Each processor runs
// on its own goroutine, generating instructions and servicing them through
// its private Cache; misses arbitrate for the bus and are resolved by the
// Engine, which mutates the coherence states of peer caches in a globally
// consistent order. The package exposes a read-only Snapshot for external
// observers (a GUI, a control panel, a test harness) — none of those
// consumers are implemented here.
package coherence
