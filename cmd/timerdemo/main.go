// Command timerdemo drives a countdown from a headless frame loop.
//
// The loop redraws the elapsed and duration labels while the countdown is in
// progress, and applies commands read from stdin between frames:
//
//	start | stop | restart | reset | duration <seconds> | status | quit
//
// Usage:
//
//	go run ./cmd/timerdemo -config intervaltimer.toml -duration 5
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/joeycumines/logiface"
	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/intervaltimer/internal/clock"
	"github.com/randomizedcoder/intervaltimer/internal/config"
	"github.com/randomizedcoder/intervaltimer/internal/feed"
	"github.com/randomizedcoder/intervaltimer/internal/timer"
)

var errQuit = errors.New("quit")

const gaugeWidth = 30

type host struct {
	cfg    config.Config
	timer  *timer.Controller
	logger *logiface.Logger[logiface.Event]
	out    io.Writer
	lines  <-chan string
	label  string
	active bool
}

func main() {
	path := flag.String("config", config.DefaultPath, "path to TOML config")
	seconds := flag.Float64("duration", -1, "initial duration in seconds (overrides config)")
	level := flag.String("level", "", "log level (overrides config)")
	flag.Parse()

	if err := run(*path, *seconds, *level); err != nil {
		fmt.Fprintf(os.Stderr, "timerdemo: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, seconds float64, level string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if level != "" {
		cfg.Log.Level = level
	}
	if seconds >= 0 {
		cfg.Timer.DurationMs = cfg.Timer.SliderDuration(seconds)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		return err
	}

	opts, err := cfg.TimerOptions(logger)
	if err != nil {
		return err
	}
	tm, err := timer.New(opts...)
	if err != nil {
		return err
	}

	h := &host{
		cfg:    cfg,
		timer:  tm,
		logger: logger,
		out:    os.Stdout,
		lines:  readLines(os.Stdin),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.frames(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		return tm.Close()
	})

	err = g.Wait()
	if errors.Is(err, errQuit) {
		err = nil
	}
	logger.Info().
		Uint64(`dropped`, tm.Dropped()).
		Log(`timerdemo exiting`)
	return err
}

// readLines forwards stdin lines until EOF. The goroutine is not joined:
// a blocked read cannot be interrupted.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			ch <- scanner.Text()
		}
	}()
	return ch
}

func (h *host) frames(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.Host.FrameInterval())
	defer ticker.Stop()

	h.draw(true)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-h.lines:
			if !ok {
				return errQuit
			}
			if err := h.command(line); err != nil {
				return err
			}
		case <-ticker.C:
		}

		feed.Drain(h.timer, h.event)
		if err := h.timer.Err(); err != nil {
			h.logger.Crit().Err(err).Log(`countdown failed`)
			return err
		}
		h.draw(false)
	}
}

// draw prints the labels when they change. Frames are skipped once the
// countdown stops being in progress, after one final redraw.
func (h *host) draw(force bool) {
	active := h.timer.InProgress()
	if !force && !active && !h.active {
		return
	}
	h.active = active
	label := render(h.timer.Elapsed(), h.timer.Duration(), h.timer.Progress())
	if !force && label == h.label {
		return
	}
	h.label = label
	fmt.Fprintln(h.out, label)
}

func render(elapsed, duration uint16, progress float64) string {
	filled := int(progress * gaugeWidth)
	return fmt.Sprintf("Elapsed Time: %.1fs [%s%s] Duration: %gs",
		clock.Seconds(elapsed),
		strings.Repeat("#", filled),
		strings.Repeat(".", gaugeWidth-filled),
		clock.Seconds(duration),
	)
}

func (h *host) command(line string) error {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return nil
	}

	var ok bool
	switch fields[0] {
	case "start":
		ok = h.timer.Start()
	case "stop":
		ok = h.timer.Stop()
	case "restart":
		ok = h.timer.Restart()
	case "reset":
		ok = h.timer.Reset()
	case "duration":
		if len(fields) != 2 {
			fmt.Fprintln(h.out, "usage: duration <seconds>")
			return nil
		}
		seconds, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			fmt.Fprintf(h.out, "invalid duration %q\n", fields[1])
			return nil
		}
		ok = h.timer.SetDuration(h.cfg.Timer.SliderDuration(seconds))
	case "status":
		h.draw(true)
		return nil
	case "quit", "exit":
		return errQuit
	default:
		fmt.Fprintf(h.out, "unknown command %q\n", fields[0])
		return nil
	}

	h.logger.Debug().
		Str(`command`, fields[0]).
		Bool(`applied`, ok).
		Log(`host command`)
	h.draw(true)
	return nil
}

func (h *host) event(ev feed.Event) {
	h.logger.Info().
		Str(`event`, ev.Kind.String()).
		Float64(`elapsed_s`, clock.Seconds(ev.Elapsed)).
		Float64(`duration_s`, clock.Seconds(ev.Duration)).
		Time(`at`, ev.At).
		Log(`countdown event`)
}
