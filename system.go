package coherence

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultCacheSize     = 4
	defaultAssociativity = 2
	defaultFrequency     = 1.0
	minFrequency         = 0.0
	maxFrequency         = 8.0
)

// System owns every processor, the shared memory and the shared
// coherence engine, and drives them with one goroutine per processor
// (§4.6, §5). It is the only component an external caller constructs
// directly; everything else is reached through it.
type System struct {
	nProcessors   int
	memorySize    int
	addrWidth     int
	cacheSize     int
	associativity int

	mu         sync.RWMutex // guards processors/memory/engine across reset
	processors []*Processor
	memory     *Memory
	engine     *Engine

	freqMu    sync.RWMutex
	frequency float64

	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group

	seedCounter atomic.Int64
}

// New builds a System of nProcessors cores sharing memorySize words of
// memory (§6: "new(n_processors, memory_size)"). memorySize must be a
// power of two so every address has exactly log2(memorySize) bits (§3
// invariant 5).
func New(nProcessors, memorySize int) (*System, error) {
	if nProcessors <= 0 {
		return nil, &ConfigError{Field: "n_processors", Value: nProcessors, Rule: "must be positive"}
	}
	if !IsPowerOfTwo(memorySize) || memorySize < 2 {
		return nil, &ConfigError{Field: "memory_size", Value: memorySize, Rule: "must be a power of two, at least 2"}
	}

	s := &System{
		nProcessors:   nProcessors,
		memorySize:    memorySize,
		addrWidth:     AddressWidth(memorySize),
		cacheSize:     min(defaultCacheSize, memorySize),
		associativity: defaultAssociativity,
		frequency:     defaultFrequency,
	}
	s.rebuild()
	return s, nil
}

// rebuildLocked allocates a fresh processor set, reusing the existing memory
// instance (cleared in place) rather than replacing it — memory is one
// instance per simulation for its whole lifetime (§3, §4.1), so a reset
// clears it instead of allocating a new one. Callers must hold s.mu for
// writing.
func (s *System) rebuildLocked() {
	if s.memory == nil {
		s.memory = NewMemory(s.memorySize)
	} else {
		s.memory.Clear()
	}
	s.engine = NewEngine(s.memory)

	procs := make([]*Processor, s.nProcessors)
	for i := 0; i < s.nProcessors; i++ {
		id := i + 1
		seed := time.Now().UnixNano() + s.seedCounter.Add(1)
		source := NewGaussianSource(seed)
		procs[i] = NewProcessor(id, s.cacheSize, s.associativity, s.memory, s.engine, s.addrWidth, source)
	}
	for i, p := range procs {
		peers := make([]Peer, 0, len(procs)-1)
		for j, q := range procs {
			if i == j {
				continue
			}
			peers = append(peers, Peer{ID: q.ID(), Cache: q.Cache()})
		}
		p.SetPeers(peers)
	}
	s.processors = procs
}

func (s *System) rebuild() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildLocked()
}

// ProcessorCount returns the number of processors in the system.
func (s *System) ProcessorCount() int {
	return s.nProcessors
}

// MemorySize returns the number of addressable words in shared memory.
func (s *System) MemorySize() int {
	return s.memorySize
}

// AddressWidth returns log2(MemorySize()), the width every address bit
// string must have.
func (s *System) AddressWidth() int {
	return s.addrWidth
}

// Processor returns processor i (0-indexed, matching §6's
// get_processor(pos)); it is read-only from the caller's perspective —
// mutating it is the owning goroutine's job alone.
func (s *System) Processor(i int) (*Processor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.processors) {
		return nil, fmt.Errorf("coherence: processor index %d out of range", i)
	}
	return s.processors[i], nil
}

// SetFrequency sets the system clock frequency in Hz. Rejected outside
// (0, 8) per §6, returned to the caller as a ConfigError rather than
// applied.
func (s *System) SetFrequency(hz float64) error {
	if !(hz > minFrequency && hz < maxFrequency) {
		return &ConfigError{Field: "frequency", Value: hz, Rule: "must satisfy 0 < f < 8"}
	}
	s.freqMu.Lock()
	s.frequency = hz
	s.freqMu.Unlock()
	return nil
}

// Frequency returns the current clock frequency in Hz.
func (s *System) Frequency() float64 {
	s.freqMu.RLock()
	defer s.freqMu.RUnlock()
	return s.frequency
}

// IsRunning reports whether the system's drivers are currently active.
func (s *System) IsRunning() bool {
	return s.running.Load()
}

// TurnOn starts one driver goroutine per processor (§4.6). wait=true
// free-runs each driver at the current frequency; wait=false executes
// exactly one tick per processor and then stops. The order in which
// drivers are started is randomized (§4.6) so observed behavior never
// depends on processor-id order.
//
// TurnOn joins any previous run before starting a new one — the spec's
// "join is implicit on next construction" (§6) is honored here and in
// Reset rather than forcing every caller to remember to wait.
func (s *System) TurnOn(wait bool) {
	s.joinPrevious()

	s.mu.RLock()
	procs := append([]*Processor(nil), s.processors...)
	s.mu.RUnlock()

	order := rand.Perm(len(procs))

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	eg, ctx := errgroup.WithContext(ctx)
	s.group = eg
	s.running.Store(true)

	for _, idx := range order {
		p := procs[idx]
		eg.Go(func() error {
			s.drive(ctx, p, wait)
			return nil
		})
	}
}

// drive runs processor p's tick loop until ctx is cancelled (free-run) or
// for exactly one tick (step mode), per §4.6. A panic out of p.Tick is a
// protocol bug, not a condition the rest of the system should go down
// for: it is logged and this driver exits, the same way debug_monitor.go
// captures a diagnostic and keeps the rest of the machine running instead
// of taking the whole process down with it.
func (s *System) drive(ctx context.Context, p *Processor, wait bool) {
	defer func() {
		// Cancelled between acquiring the bus and servicing the miss: run
		// the servicing tick so the transaction completes and the bus is
		// released before this driver exits.
		if ph := p.View().Phase; ctx.Err() != nil && (ph == ReadingMemory || ph == WritingMemory) {
			s.tick(p)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !s.tick(p) {
			return
		}

		if !wait {
			s.running.Store(false)
			return
		}

		delay := time.Duration(float64(time.Second) / s.Frequency())
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// tick runs one Tick on p, recovering a panic into a logged diagnostic.
// It reports whether the driver should keep running.
func (s *System) tick(p *Processor) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("coherence: processor %d panicked mid-tick, stopping its driver: %v", p.ID(), r)
			ok = false
		}
	}()
	p.Tick()
	return true
}

// TurnOff requests that every driver stop, without blocking for them to
// actually exit (§6, §5 "Cancellation"). A driver mid-bus-transaction
// completes that transaction before observing the cancellation.
func (s *System) TurnOff() {
	s.running.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
}

// joinPrevious waits for the previous TurnOn's drivers to fully exit.
func (s *System) joinPrevious() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.group != nil {
		_ = s.group.Wait()
	}
	s.group = nil
	s.cancel = nil
}

// Step runs exactly one tick on every processor and blocks until all of
// them have completed it — a synchronous convenience wrapper around
// TurnOn(false) for callers (tests, a step-debugger UI) that want the
// tick to have visibly happened before they proceed.
func (s *System) Step() {
	s.TurnOn(false)
	// Let every driver finish its tick before joinPrevious cancels the
	// run's context; cancelling first would let a driver exit untouched.
	_ = s.group.Wait()
	s.joinPrevious()
}

// Reset stops the system, clears memory, and rebuilds every processor
// with a fresh cache and instruction source (§6). Reset is idempotent:
// calling it twice in a row leaves the system in the same state as
// calling it once.
func (s *System) Reset() {
	s.joinPrevious()
	s.running.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildLocked()
}
