package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/dbferry/dbferry/internal/orchestrator"
)

// tracker renders migration progress to the terminal. On a non-TTY (piped
// output, CI logs) it falls back to plain phase-prefixed log lines instead
// of an animated bar, since a redrawn bar is unreadable in a log file.
type tracker struct {
	interactive bool
	start       time.Time

	mu           sync.Mutex
	bar          *progressbar.ProgressBar
	active       map[string]bool
	doneByTable  map[string]int64
	totalByTable map[string]int64
}

func newTracker() *tracker {
	return &tracker{
		interactive:  isatty.IsTerminal(1),
		start:        time.Now(),
		active:       make(map[string]bool),
		doneByTable:  make(map[string]int64),
		totalByTable: make(map[string]int64),
	}
}

// onEvent is the callback passed to Migrator.SetProgressCallback. The
// orchestrator calls it serially, never concurrently, on whichever
// goroutine raised the event, so a slow callback holds up that worker.
func (t *tracker) onEvent(ev orchestrator.Event) {
	switch ev.Phase {
	case orchestrator.PhaseConnect, orchestrator.PhasePlan:
		fmt.Printf("[%s] %s\n", ev.Phase, ev.Message)
	case orchestrator.PhaseDDL:
		fmt.Printf("[ddl] %s: %s\n", ev.Table, ev.Message)
	case orchestrator.PhaseData:
		t.onData(ev)
	case orchestrator.PhasePost:
		fmt.Printf("[post] %s\n", ev.Message)
	case orchestrator.PhaseDone:
		t.finish()
		fmt.Printf("[done] %s\n", ev.Message)
	case orchestrator.PhaseError:
		t.finish()
		fmt.Printf("[error] %s: %s\n", ev.Table, ev.Message)
	}
}

func (t *tracker) onData(ev orchestrator.Event) {
	if !t.interactive {
		if ev.RowsTotal > 0 {
			fmt.Printf("[data] %s: %d/%d rows\n", ev.Table, ev.RowsDone, ev.RowsTotal)
		} else {
			fmt.Printf("[data] %s: %s\n", ev.Table, ev.Message)
		}
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.RowsTotal > 0 {
		t.totalByTable[ev.Table] = ev.RowsTotal
	}
	t.doneByTable[ev.Table] = ev.RowsDone

	if t.bar == nil {
		t.bar = progressbar.NewOptions64(-1,
			progressbar.OptionSetDescription("migrating"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("rows"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionFullWidth(),
		)
	}
	if !t.active[ev.Table] {
		t.active[ev.Table] = true
	}

	var total, done int64
	for name, tot := range t.totalByTable {
		total += tot
		done += t.doneByTable[name]
	}
	if total > 0 {
		t.bar.ChangeMax64(total)
	}
	t.bar.Describe("migrating " + describeActive(t.active))
	t.bar.Set64(done)
}

func describeActive(active map[string]bool) string {
	if len(active) == 1 {
		for name := range active {
			return name
		}
	}
	return fmt.Sprintf("%d tables", len(active))
}

func (t *tracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bar != nil {
		t.bar.Finish()
		fmt.Println()
	}
}
