//go:build !windows

// Command coherence-console drives a coherence.System interactively: step
// it one tick at a time, free-run it, and inspect every processor's cache
// and execution state from a raw-mode terminal, one keystroke at a time
// instead of a full readline.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/moesi-sim/coherence"
)

func main() {
	nProcessors := flag.Int("processors", 4, "number of processors")
	memorySize := flag.Int("memory", 16, "shared memory size in words (must be a power of two)")
	frequency := flag.Float64("frequency", 1.0, "free-run clock frequency in Hz (0 < f < 8)")
	workloadPath := flag.String("workload", "", "path to a Lua workload script (optional)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: coherence-console [options]\n\nInteractive MOESI coherence simulator console.\n\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nKeys: s=step  r=run  x=stop  p=print snapshot  q=quit\n")
	}
	flag.Parse()

	sys, err := coherence.New(*nProcessors, *memorySize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := sys.SetFrequency(*frequency); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *workloadPath != "" {
		script, err := os.ReadFile(*workloadPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading workload: %v\n", err)
			os.Exit(1)
		}
		src, err := coherence.NewLuaWorkloadSource(string(script))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading workload: %v\n", err)
			os.Exit(1)
		}
		defer src.Close()

		// One interpreter instance drives every processor: next_instruction
		// receives the calling processor's id and can branch on it.
		for i := 0; i < sys.ProcessorCount(); i++ {
			p, err := sys.Processor(i)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			p.SetSource(src)
		}
		fmt.Printf("workload: %s loaded onto all %d processors\n", *workloadPath, sys.ProcessorCount())
	}

	host := newKeyHost()
	host.Start()
	defer host.Stop()

	fmt.Printf("coherence-console: %d processors, %d words, %g Hz\n", sys.ProcessorCount(), sys.MemorySize(), sys.Frequency())
	fmt.Println("s=step  r=run  x=stop  p=print  q=quit")

	for {
		key, ok := host.ReadKey()
		if !ok {
			return
		}
		switch key {
		case 's':
			sys.Step()
			printSnapshot(sys)
		case 'r':
			sys.TurnOn(true)
			fmt.Println("running...")
		case 'x':
			sys.TurnOff()
			fmt.Println("stopped")
		case 'p':
			printSnapshot(sys)
		case 'q':
			sys.TurnOff()
			return
		}
	}
}

func printSnapshot(sys *coherence.System) {
	snap := sys.Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "memory: %s\n", strings.Join(snap.Memory, " "))
	for _, p := range snap.Processors {
		fmt.Fprintf(&b, "  P%d [%s]", p.ID, p.State)
		for _, blk := range p.Cache {
			fmt.Fprintf(&b, " %s:%s/%s", blk.Address, blk.Data, blk.State)
		}
		b.WriteByte('\n')
	}
	if v := coherence.CheckInvariants(snap); v != nil {
		fmt.Fprintf(&b, "  !! %v\n", v)
	}
	fmt.Print(b.String())
}

// keyHost puts stdin in raw mode and reads single keystrokes, the same
// non-blocking raw-mode shape the teacher's terminal host uses to feed an
// emulated TERM_KEY_IN device, adapted here to drive console commands
// instead of a virtual machine's keyboard MMIO.
type keyHost struct {
	fd      int
	old     *term.State
	keys    chan byte
	stopCh  chan struct{}
	done    chan struct{}
	stopped sync.Once
}

func newKeyHost() *keyHost {
	return &keyHost{
		keys:   make(chan byte),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (h *keyHost) Start() {
	h.fd = int(os.Stdin.Fd())
	old, err := term.MakeRaw(h.fd)
	if err != nil {
		// Not an interactive terminal (e.g. piped input in a test harness):
		// fall back to plain blocking reads without raw mode.
		go h.readLoopPlain()
		return
	}
	h.old = old
	go h.readLoopRaw()
}

func (h *keyHost) readLoopRaw() {
	defer close(h.done)
	buf := make([]byte, 1)
	for {
		select {
		case <-h.stopCh:
			return
		default:
		}
		n, err := syscall.Read(h.fd, buf)
		if n > 0 {
			select {
			case h.keys <- buf[0]:
			case <-h.stopCh:
				return
			}
		}
		if err != nil {
			return
		}
		if n == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func (h *keyHost) readLoopPlain() {
	defer close(h.done)
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			select {
			case h.keys <- buf[0]:
			case <-h.stopCh:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// ReadKey blocks for the next keystroke, returning ok=false once the host
// has stopped and no more keys will arrive.
func (h *keyHost) ReadKey() (byte, bool) {
	select {
	case k, ok := <-h.keys:
		return k, ok
	case <-h.done:
		return 0, false
	}
}

func (h *keyHost) Stop() {
	h.stopped.Do(func() {
		close(h.stopCh)
	})
	if h.old != nil {
		_ = term.Restore(h.fd, h.old)
	}
}
