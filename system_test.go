package coherence

import (
	"errors"
	"testing"
)

func TestNewRejectsNonPositiveProcessors(t *testing.T) {
	_, err := New(0, 16)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("New(0, 16) err = %v, want *ConfigError", err)
	}
}

func TestNewRejectsNonPowerOfTwoMemory(t *testing.T) {
	_, err := New(2, 10)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("New(2, 10) err = %v, want *ConfigError", err)
	}
}

func TestNewBuildsExpectedShape(t *testing.T) {
	s, err := New(3, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.ProcessorCount() != 3 {
		t.Errorf("ProcessorCount() = %d, want 3", s.ProcessorCount())
	}
	if s.MemorySize() != 16 {
		t.Errorf("MemorySize() = %d, want 16", s.MemorySize())
	}
	if s.AddressWidth() != 4 {
		t.Errorf("AddressWidth() = %d, want 4", s.AddressWidth())
	}
	for i := 0; i < 3; i++ {
		p, err := s.Processor(i)
		if err != nil {
			t.Fatalf("Processor(%d): %v", i, err)
		}
		if p.ID() != i+1 {
			t.Errorf("Processor(%d).ID() = %d, want %d", i, p.ID(), i+1)
		}
	}
	if _, err := s.Processor(3); err == nil {
		t.Error("Processor(3) on a 3-processor system = nil error, want out-of-range error")
	}
}

func TestSetFrequencyBounds(t *testing.T) {
	s, _ := New(1, 2)
	if err := s.SetFrequency(0); err == nil {
		t.Error("SetFrequency(0) = nil error, want ConfigError")
	}
	if err := s.SetFrequency(8); err == nil {
		t.Error("SetFrequency(8) = nil error, want ConfigError")
	}
	if err := s.SetFrequency(-1); err == nil {
		t.Error("SetFrequency(-1) = nil error, want ConfigError")
	}
	if err := s.SetFrequency(2.5); err != nil {
		t.Errorf("SetFrequency(2.5) = %v, want nil", err)
	}
	if got := s.Frequency(); got != 2.5 {
		t.Errorf("Frequency() = %v, want 2.5", got)
	}
}

func TestStepAdvancesEveryProcessorOneTick(t *testing.T) {
	s, _ := New(2, 16)
	s.Step()
	for i := 0; i < 2; i++ {
		p, _ := s.Processor(i)
		if p.View().Phase != Executing {
			t.Errorf("processor %d phase after one Step = %v, want Executing", i, p.View().Phase)
		}
	}
	if s.IsRunning() {
		t.Error("IsRunning() after Step() = true, want false")
	}
}

func TestResetRebuildsCleanState(t *testing.T) {
	s, _ := New(2, 16)
	p0, _ := s.Processor(0)
	p0.Cache().Install(1, 0xdead, Modified)

	s.Reset()

	p0After, _ := s.Processor(0)
	if p0After == p0 {
		t.Error("Reset did not replace the processor instance")
	}
	snap, err := s.CacheSnapshot(0)
	if err != nil {
		t.Fatalf("CacheSnapshot: %v", err)
	}
	for _, b := range snap {
		if b.State != "I" {
			t.Errorf("post-reset cache line state = %q, want I", b.State)
		}
	}
}

func TestResetIsIdempotent(t *testing.T) {
	s, _ := New(1, 2)
	s.Reset()
	s.Reset()
	if s.ProcessorCount() != 1 {
		t.Errorf("ProcessorCount() after double Reset = %d, want 1", s.ProcessorCount())
	}
}

func TestReadMemoryRendersNormativeHex(t *testing.T) {
	s, _ := New(1, 4)

	got, err := s.ReadMemory("00")
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if got != "0000" {
		t.Errorf("ReadMemory(\"00\") = %q, want \"0000\"", got)
	}

	if _, err := s.ReadMemory("11111"); err == nil {
		t.Error("ReadMemory with malformed bits = nil error, want error")
	}
}

func TestCheckInvariantsCleanSystemHasNoViolation(t *testing.T) {
	s, _ := New(3, 16)
	s.Step()
	if v := CheckInvariants(s.Snapshot()); v != nil {
		t.Errorf("CheckInvariants on freshly stepped system = %v, want nil", v)
	}
}

func TestCheckInvariantsDetectsTwoWriters(t *testing.T) {
	snap := Snapshot{
		Processors: []ProcessorSnapshot{
			{ID: 1, Cache: []BlockView{{Address: "0001", Data: "0000", State: "M"}}},
			{ID: 2, Cache: []BlockView{{Address: "0001", Data: "0000", State: "E"}}},
		},
	}
	v := CheckInvariants(snap)
	if v == nil {
		t.Fatal("CheckInvariants = nil, want violation for two writers of the same address")
	}
}

func TestCheckInvariantsDetectsOwnedWithWriter(t *testing.T) {
	snap := Snapshot{
		Processors: []ProcessorSnapshot{
			{ID: 1, Cache: []BlockView{{Address: "0010", Data: "0000", State: "O"}}},
			{ID: 2, Cache: []BlockView{{Address: "0010", Data: "0000", State: "M"}}},
		},
	}
	v := CheckInvariants(snap)
	if v == nil {
		t.Fatal("CheckInvariants = nil, want violation for O coexisting with M")
	}
}

func TestCheckInvariantsAllowsMultipleSharers(t *testing.T) {
	snap := Snapshot{
		Processors: []ProcessorSnapshot{
			{ID: 1, Cache: []BlockView{{Address: "0011", Data: "0000", State: "S"}}},
			{ID: 2, Cache: []BlockView{{Address: "0011", Data: "0000", State: "S"}}},
			{ID: 3, Cache: []BlockView{{Address: "0011", Data: "0000", State: "S"}}},
		},
	}
	if v := CheckInvariants(snap); v != nil {
		t.Errorf("CheckInvariants with only S sharers = %v, want nil", v)
	}
}
