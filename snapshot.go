package coherence

import "fmt"

// BlockView is one cache line as exposed to an observer: address and data
// rendered in the normative §6 encodings, state as its single-character
// code.
type BlockView struct {
	Address string
	Data    string
	State   string
}

// ReadMemory returns the hex word at addrBits (§6: "read_memory(addr_bits)
// → hex word").
func (s *System) ReadMemory(addrBits string) (string, error) {
	idx, err := ParseAddressBits(addrBits)
	if err != nil {
		return "", err
	}
	s.mu.RLock()
	mem := s.memory
	s.mu.RUnlock()
	if idx < 0 || idx >= mem.Size() {
		return "", fmt.Errorf("coherence: address %q out of range", addrBits)
	}
	return DataHex(mem.Read(idx)), nil
}

// ProcessorState returns processor i's execution state string (§6:
// "processor_state(i) → string").
func (s *System) ProcessorState(i int) (string, error) {
	p, err := s.Processor(i)
	if err != nil {
		return "", err
	}
	return p.View().Label(s.addrWidth), nil
}

// CacheSnapshot returns a frozen copy of processor i's cache (§6:
// "cache_snapshot(i) → list of (addr_bits, hex word, state char)"). Lines
// never installed display as Invalid, per §6's "the empty cache state
// before any allocation displays as I".
func (s *System) CacheSnapshot(i int) ([]BlockView, error) {
	p, err := s.Processor(i)
	if err != nil {
		return nil, err
	}
	views := p.Cache().Snapshot()
	out := make([]BlockView, len(views))
	for j, v := range views {
		out[j] = BlockView{
			Address: AddressBits(v.Address, s.addrWidth),
			Data:    DataHex(v.Data),
			State:   v.State.String(),
		}
	}
	return out, nil
}

// CurrentInstruction returns processor i's in-flight instruction, or nil
// if none has been issued yet (§6: "current_instruction(i) → instruction
// record or None").
func (s *System) CurrentInstruction(i int) (*Instruction, error) {
	p, err := s.Processor(i)
	if err != nil {
		return nil, err
	}
	return p.View().Current, nil
}

// PreviousInstruction returns processor i's previously-issued instruction,
// or nil if at most one instruction has ever been issued.
func (s *System) PreviousInstruction(i int) (*Instruction, error) {
	p, err := s.Processor(i)
	if err != nil {
		return nil, err
	}
	return p.View().Previous, nil
}

// Snapshot is a single frozen picture of the whole machine: every word of
// memory and every processor's cache and instruction history. It exists
// for callers (documentation tooling, cmd/snapshot2png) that want one
// consistent-enough read instead of many separate calls; per §5 it is
// only eventually consistent with an in-flight bus transaction, exactly
// like the per-field accessors above.
type Snapshot struct {
	MemorySize   int
	AddressWidth int
	Memory       []string
	Processors   []ProcessorSnapshot
}

// ProcessorSnapshot is one processor's contribution to a Snapshot.
type ProcessorSnapshot struct {
	ID       int
	State    string
	Cache    []BlockView
	Current  *Instruction
	Previous *Instruction
}

// Snapshot builds a full read-only picture of the system.
func (s *System) Snapshot() Snapshot {
	s.mu.RLock()
	mem := s.memory
	procs := append([]*Processor(nil), s.processors...)
	s.mu.RUnlock()

	words := make([]string, mem.Size())
	for i := range words {
		words[i] = DataHex(mem.Read(i))
	}

	out := make([]ProcessorSnapshot, len(procs))
	for i, p := range procs {
		view := p.View()
		blocks := p.Cache().Snapshot()
		bvs := make([]BlockView, len(blocks))
		for j, b := range blocks {
			bvs[j] = BlockView{
				Address: AddressBits(b.Address, s.addrWidth),
				Data:    DataHex(b.Data),
				State:   b.State.String(),
			}
		}
		out[i] = ProcessorSnapshot{
			ID:       p.ID(),
			State:    view.Label(s.addrWidth),
			Cache:    bvs,
			Current:  view.Current,
			Previous: view.Previous,
		}
	}

	return Snapshot{
		MemorySize:   mem.Size(),
		AddressWidth: s.addrWidth,
		Memory:       words,
		Processors:   out,
	}
}

// CheckInvariants scans a Snapshot for violations of the §3 global
// invariants (single-writer, coexistence, clean-shared) and returns the
// first one found. It is meant for property tests (§8), not the hot
// tick-loop — per §7, an invariant violation is a protocol bug to be
// caught pre-release, not something the runtime polices on every tick.
func CheckInvariants(snap Snapshot) *InvariantViolation {
	byAddr := make(map[int][]struct {
		proc  int
		state State
	})

	for _, p := range snap.Processors {
		for _, b := range p.Cache {
			idx, err := ParseAddressBits(b.Address)
			if err != nil {
				continue
			}
			var st State
			switch b.State {
			case "M":
				st = Modified
			case "O":
				st = Owned
			case "E":
				st = Exclusive
			case "S":
				st = Shared
			default:
				st = Invalid
			}
			if st == Invalid {
				continue
			}
			byAddr[idx] = append(byAddr[idx], struct {
				proc  int
				state State
			}{p.ID, st})
		}
	}

	for addr, holders := range byAddr {
		writers := 0
		owners := 0
		shared := false
		for _, h := range holders {
			if h.state == Modified || h.state == Exclusive {
				writers++
			}
			if h.state == Owned {
				owners++
			}
			if h.state == Shared {
				shared = true
			}
		}
		if writers > 1 {
			return &InvariantViolation{Address: addr, Detail: "more than one cache holds M or E", Processors: ids(holders)}
		}
		if owners > 0 && writers > 0 {
			return &InvariantViolation{Address: addr, Detail: "an O copy coexists with an M or E copy", Processors: ids(holders)}
		}
		if owners > 1 {
			return &InvariantViolation{Address: addr, Detail: "more than one cache holds O", Processors: ids(holders)}
		}
		if shared && writers > 0 {
			return &InvariantViolation{Address: addr, Detail: "an S copy coexists with an M or E copy", Processors: ids(holders)}
		}
	}
	return nil
}

func ids(holders []struct {
	proc  int
	state State
}) []int {
	out := make([]int, len(holders))
	for i, h := range holders {
		out[i] = h.proc
	}
	return out
}
