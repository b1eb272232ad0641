package coherence

import "fmt"

// ConfigError reports a rejected configuration value (§7: "Configuration
// error"). It is always returned to the caller, never panicked — an
// invalid frequency or processor count is a caller mistake, not a bug in
// the simulator.
type ConfigError struct {
	Field string
	Value any
	Rule  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("coherence: invalid %s %v: %s", e.Field, e.Value, e.Rule)
}

// InvariantViolation reports that one of the §3 global invariants was
// found broken between bus transactions — a protocol bug, not a runtime
// error (§7). It names the address and every processor id observed
// holding an incompatible state for it, so the diagnostic is actionable
// without re-running under a debugger.
type InvariantViolation struct {
	Address    int
	Detail     string
	Processors []int
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("coherence: invariant violated at address %d: %s (processors %v)",
		e.Address, e.Detail, e.Processors)
}
