package coherence

import (
	"fmt"
	"math/rand"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// InstructionSource generates the next instruction for a processor to
// issue (§4.5's "instruction generation"). processorID identifies the
// caller; addrWidth bounds the address space so a source can produce a
// valid bit-string address.
type InstructionSource interface {
	Next(processorID, addrWidth int) Instruction
}

// GaussianSource is the default instruction generator (§4.5): it samples
// x ~ N(0,1) and picks READ for x < -1, WRITE for x > 1, and CALC
// otherwise, so CALC dominates the middle of the distribution with READ
// and WRITE in the tails. Each processor owns its own GaussianSource —
// *rand.Rand is not safe for concurrent use, and sharing one across
// processor goroutines would serialize instruction generation for no
// benefit.
type GaussianSource struct {
	rng *rand.Rand
}

// NewGaussianSource builds a source seeded independently of any other
// processor's generator.
func NewGaussianSource(seed int64) *GaussianSource {
	return &GaussianSource{rng: rand.New(rand.NewSource(seed))}
}

// Next implements InstructionSource.
func (g *GaussianSource) Next(processorID, addrWidth int) Instruction {
	x := g.rng.NormFloat64()

	instr := Instruction{Processor: processorID}
	switch {
	case x < -1:
		instr.Type = Read
	case x > 1:
		instr.Type = Write
	default:
		instr.Type = Calc
		return instr
	}

	instr.Address = g.rng.Intn(1 << addrWidth)
	if instr.Type == Write {
		instr.Data = uint16(g.rng.Intn(1 << 16))
	}
	return instr
}

// FixedSource replays a predetermined queue of instructions before
// falling back to another source (or to CALC, if no fallback is given).
// This is how the literal end-to-end scenarios of §8 drive a Processor
// deterministically instead of waiting on the Gaussian distribution to
// happen to produce the instruction a test wants.
type FixedSource struct {
	mu       sync.Mutex
	queue    []Instruction
	fallback InstructionSource
}

// NewFixedSource builds a source that replays instrs in order.
func NewFixedSource(instrs ...Instruction) *FixedSource {
	return &FixedSource{queue: instrs}
}

// WithFallback sets the source consulted once the fixed queue is
// exhausted, and returns f for chaining.
func (f *FixedSource) WithFallback(fallback InstructionSource) *FixedSource {
	f.fallback = fallback
	return f
}

// Next implements InstructionSource.
func (f *FixedSource) Next(processorID, addrWidth int) Instruction {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		if f.fallback != nil {
			return f.fallback.Next(processorID, addrWidth)
		}
		return Instruction{Type: Calc, Processor: processorID}
	}

	instr := f.queue[0]
	f.queue = f.queue[1:]
	instr.Processor = processorID
	return instr
}

// LuaWorkloadSource is an InstructionSource backed by a Lua script, so a
// workload can be authored once and replayed deterministically from the
// CLI (-workload flag) or a test, the same role the teacher's embedded
// interpreter (basic_embed.go) plays in scripting machine behavior instead
// of hand-writing it in Go.
//
// The script must define a global function:
//
//	function next_instruction(processor, addr_width)
//	    return "READ", addr, 0
//	end
//
// returning a type string ("READ", "WRITE" or "CALC") plus an address and
// a data word (both ignored when not applicable).
type LuaWorkloadSource struct {
	mu sync.Mutex
	L  *lua.LState
	fn *lua.LFunction
}

// NewLuaWorkloadSource compiles script and resolves its next_instruction
// entry point.
func NewLuaWorkloadSource(script string) (*LuaWorkloadSource, error) {
	L := lua.NewState()
	if err := L.DoString(script); err != nil {
		L.Close()
		return nil, fmt.Errorf("coherence: loading lua workload: %w", err)
	}

	fn, ok := L.GetGlobal("next_instruction").(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("coherence: lua workload must define next_instruction(processor, addr_width)")
	}

	return &LuaWorkloadSource{L: L, fn: fn}, nil
}

// Next implements InstructionSource. A script error or malformed return
// value degrades to CALC rather than propagating a panic into the
// processor's tick loop.
func (s *LuaWorkloadSource) Next(processorID, addrWidth int) Instruction {
	s.mu.Lock()
	defer s.mu.Unlock()

	instr := Instruction{Type: Calc, Processor: processorID}

	err := s.L.CallByParam(lua.P{Fn: s.fn, NRet: 3, Protect: true},
		lua.LNumber(processorID), lua.LNumber(addrWidth))
	if err != nil {
		return instr
	}
	defer s.L.Pop(3)

	typ, ok := s.L.Get(-3).(lua.LString)
	if !ok {
		return instr
	}
	addr, _ := s.L.Get(-2).(lua.LNumber)
	data, _ := s.L.Get(-1).(lua.LNumber)

	switch string(typ) {
	case "READ":
		instr.Type = Read
		instr.Address = int(addr)
	case "WRITE":
		instr.Type = Write
		instr.Address = int(addr)
		instr.Data = uint16(data)
	default:
		instr.Type = Calc
	}
	return instr
}

// Close releases the Lua interpreter's resources.
func (s *LuaWorkloadSource) Close() {
	s.L.Close()
}
