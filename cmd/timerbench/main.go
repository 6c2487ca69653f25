// Command timerbench compares the cost of reading countdown state from the
// host goroutine while the dispatcher is ticking.
//
// Usage:
//
//	go run ./cmd/timerbench -n 10000000
package main

import (
	"flag"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/randomizedcoder/intervaltimer/internal/clock"
	"github.com/randomizedcoder/intervaltimer/internal/timer"
)

type readerInfo struct {
	name string
	read func() uint16
}

type lockedMillis struct {
	mu sync.RWMutex
	v  uint16
}

func (l *lockedMillis) get() uint16 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.v
}

func main() {
	iterations := flag.Int("n", 10_000_000, "number of iterations")
	interval := flag.Duration("interval", time.Millisecond, "dispatcher tick interval")
	flag.Parse()

	fmt.Printf("Benchmarking countdown reads (%d iterations)\n", *iterations)
	fmt.Printf("Architecture: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Println("─────────────────────────────────────────────────")

	// Long enough that the countdown is still running when the reads finish
	tm, err := timer.New(
		timer.WithDuration(clock.MaxMillis),
		timer.WithInterval(*interval),
		timer.WithAutoStart(true),
	)
	if err != nil {
		fmt.Printf("failed to create timer: %v\n", err)
		return
	}
	defer tm.Close()

	millis := clock.NewMillis(15000)
	locked := &lockedMillis{v: 15000}

	readers := []readerInfo{
		{"LockedMillis", locked.get},
		{"Millis.Get", millis.Get},
		{"Controller.Elapsed", tm.Elapsed},
		{"Controller.Progress", func() uint16 {
			return uint16(tm.Progress() * 1000)
		}},
		{"Controller.InProgress", func() uint16 {
			if tm.InProgress() {
				return 1
			}
			return 0
		}},
	}

	results := make([]time.Duration, len(readers))
	var sink uint16

	for i, info := range readers {
		start := time.Now()
		for j := 0; j < *iterations; j++ {
			sink += info.read()
		}
		results[i] = time.Since(start)
	}

	// Print results
	fmt.Printf("\nResults:\n")
	baseline := float64(results[0].Nanoseconds()) / float64(*iterations)

	for i, info := range readers {
		perOp := float64(results[i].Nanoseconds()) / float64(*iterations)
		speedup := baseline / perOp
		throughput := 1000 / perOp // M ops/sec

		fmt.Printf("  %-22s %12v  %8.2f ns/op  %6.2fx  %8.2f M/s\n",
			info.name, results[i], perOp, speedup, throughput)
	}

	fmt.Printf("\nElapsed after run: %.1fs (running=%v, sink=%d)\n",
		clock.Seconds(tm.Elapsed()), tm.Running(), sink)
	fmt.Printf("Note: Controller reads race with a dispatcher ticking every %v.\n", *interval)
}
