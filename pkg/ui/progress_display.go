package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"postscraper/pkg/models"
)

// ProgressDisplay is a one-line progress display for scrape runs
type ProgressDisplay struct {
	mu        sync.Mutex
	out       io.Writer
	planned   int
	finished  int
	partial   int
	records   int
	units     int
	active    map[int]string
	startTime time.Time
	isDebug   bool
}

// NewProgressDisplay creates a display for planned targets. In debug mode
// each target is printed on its own line instead of redrawing one line.
func NewProgressDisplay(out io.Writer, planned int, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		planned:   planned,
		active:    make(map[int]string),
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// SetPlanned updates the number of planned targets once the plan is known
func (p *ProgressDisplay) SetPlanned(n int) {
	p.mu.Lock()
	p.planned = n
	p.mu.Unlock()
}

// TargetStarted marks a target as picked up by a worker
func (p *ProgressDisplay) TargetStarted(workerID int, target models.Target) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active[workerID] = target.ID
	if p.isDebug {
		fmt.Fprintf(p.out, "%s worker %d → %s\n", Magenta("→"), workerID, target.URL)
		return
	}
	p.printProgress()
}

// TargetFinished records a target's outcome
func (p *ProgressDisplay) TargetFinished(res models.TargetResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.finished++
	p.records += res.Records
	p.units += res.Units
	if res.Partial {
		p.partial++
	}
	delete(p.active, res.WorkerID)

	if p.isDebug {
		p.printDebugFinished(res)
		return
	}
	p.printProgress()
}

// printProgress prints the minimal progress line
func (p *ProgressDisplay) printProgress() {
	progress := 0.0
	if p.planned > 0 {
		progress = float64(p.finished) / float64(p.planned)
	}
	barWidth := 20
	filled := min(int(progress*float64(barWidth)), barWidth)
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d targets • %d records • %d units • %s",
		Cyan("scraping"),
		bar,
		p.finished,
		p.planned,
		p.records,
		p.units,
		p.calculateETA(),
	)
	if len(p.active) > 0 {
		line += fmt.Sprintf(" • %d active", len(p.active))
	}
	if p.partial > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d partial", p.partial)))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

func (p *ProgressDisplay) printDebugFinished(res models.TargetResult) {
	mark := Green("✓")
	if res.Partial {
		mark = Yellow("◐")
	}
	fmt.Fprintf(p.out, "%s %s • %s • %d units • %d records • %s",
		mark,
		res.Target.ID,
		res.State,
		res.Units,
		res.Records,
		formatDuration(res.Duration),
	)
	if res.Error != "" {
		fmt.Fprintf(p.out, " • %s", Dim(res.Error))
	}
	fmt.Fprintln(p.out)
}

// Complete prints the closing line
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)
	fmt.Fprintf(p.out, "\n\n%s Scraped %d of %d targets in %s\n",
		Green("✓"),
		p.finished,
		p.planned,
		formatDuration(elapsed),
	)
	if p.partial > 0 {
		fmt.Fprintf(p.out, "  %s %d targets were partial\n", Dim("•"), p.partial)
	}
}

// calculateETA estimates time remaining
func (p *ProgressDisplay) calculateETA() string {
	if p.finished == 0 {
		return "calculating..."
	}
	if p.finished >= p.planned {
		return "done"
	}
	perTarget := time.Since(p.startTime) / time.Duration(p.finished)
	return formatDuration(perTarget * time.Duration(p.planned-p.finished))
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
