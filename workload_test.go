package coherence

import "testing"

func TestGaussianSourceProducesAllThreeTypes(t *testing.T) {
	src := NewGaussianSource(1)
	seen := map[InstrType]bool{}
	for i := 0; i < 2000; i++ {
		instr := src.Next(1, 4)
		seen[instr.Type] = true
	}
	for _, typ := range []InstrType{Calc, Read, Write} {
		if !seen[typ] {
			t.Errorf("GaussianSource never produced %v over 2000 samples", typ)
		}
	}
}

func TestGaussianSourceAddressWithinBounds(t *testing.T) {
	src := NewGaussianSource(2)
	for i := 0; i < 500; i++ {
		instr := src.Next(1, 4)
		if instr.Type == Calc {
			continue
		}
		if instr.Address < 0 || instr.Address >= 16 {
			t.Fatalf("address %d out of [0,16) for width 4", instr.Address)
		}
	}
}

func TestFixedSourceReplaysInOrderThenFallsBack(t *testing.T) {
	fallback := NewFixedSource(Instruction{Type: Calc})
	src := NewFixedSource(
		Instruction{Type: Read, Address: 1},
		Instruction{Type: Write, Address: 2, Data: 9},
	).WithFallback(fallback)

	first := src.Next(7, 4)
	if first.Type != Read || first.Address != 1 || first.Processor != 7 {
		t.Errorf("first = %+v, want Read addr 1 proc 7", first)
	}
	second := src.Next(7, 4)
	if second.Type != Write || second.Address != 2 || second.Data != 9 {
		t.Errorf("second = %+v, want Write addr 2 data 9", second)
	}
	third := src.Next(7, 4)
	if third.Type != Calc {
		t.Errorf("third (post-exhaustion) = %+v, want fallback Calc", third)
	}
}

func TestFixedSourceNoFallbackDefaultsToCalc(t *testing.T) {
	src := NewFixedSource()
	instr := src.Next(3, 4)
	if instr.Type != Calc || instr.Processor != 3 {
		t.Errorf("Next() on empty queue, no fallback = %+v, want Calc for processor 3", instr)
	}
}

func TestLuaWorkloadSourceBasic(t *testing.T) {
	script := `
function next_instruction(processor, addr_width)
  if processor == 1 then
    return "READ", 3, 0
  end
  return "CALC", 0, 0
end
`
	src, err := NewLuaWorkloadSource(script)
	if err != nil {
		t.Fatalf("NewLuaWorkloadSource: %v", err)
	}
	defer src.Close()

	instr := src.Next(1, 4)
	if instr.Type != Read || instr.Address != 3 {
		t.Errorf("Next(1, 4) = %+v, want Read addr 3", instr)
	}
	instr2 := src.Next(2, 4)
	if instr2.Type != Calc {
		t.Errorf("Next(2, 4) = %+v, want Calc", instr2)
	}
}

func TestLuaWorkloadSourceMissingEntryPointErrors(t *testing.T) {
	_, err := NewLuaWorkloadSource(`x = 1`)
	if err == nil {
		t.Error("expected error for script without next_instruction, got nil")
	}
}

func TestLuaWorkloadSourceDegradesToCalcOnRuntimeError(t *testing.T) {
	script := `
function next_instruction(processor, addr_width)
  error("boom")
end
`
	src, err := NewLuaWorkloadSource(script)
	if err != nil {
		t.Fatalf("NewLuaWorkloadSource: %v", err)
	}
	defer src.Close()

	instr := src.Next(1, 4)
	if instr.Type != Calc {
		t.Errorf("Next() after lua runtime error = %+v, want Calc", instr)
	}
}
