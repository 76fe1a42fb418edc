// Package console formats the log lines and progress bar schemadoc prints
// while it runs.
package console

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/schemadoc/internal/theme"
)

// Level is the severity of a console line.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

func (l Level) style(th *theme.Theme) lipgloss.Style {
	switch l {
	case LevelDebug:
		return th.LevelDebug
	case LevelWarning:
		return th.LevelWarning
	case LevelError:
		return th.LevelError
	case LevelCritical:
		return th.LevelCritical
	}
	return th.LevelInfo
}

// Format renders msg as "[LEVEL] msg" with the default theme.
func Format(level Level, msg string) string {
	return FormatWith(theme.Default(), level, msg)
}

// FormatWith renders msg as "[LEVEL] msg" with the level tag styled from th.
func FormatWith(th *theme.Theme, level Level, msg string) string {
	if th == nil {
		th = theme.Default()
	}
	return level.style(th).Render("["+level.String()+"]") + " " + msg
}

// ---------------------------------------------------------------------------
// Printer
// ---------------------------------------------------------------------------

// Printer writes formatted lines to w. Debug lines are dropped unless
// verbose is set.
type Printer struct {
	w       io.Writer
	th      *theme.Theme
	verbose bool
}

// NewPrinter returns a Printer using th, or the default theme when th is nil.
func NewPrinter(w io.Writer, th *theme.Theme, verbose bool) *Printer {
	if th == nil {
		th = theme.Default()
	}
	return &Printer{w: w, th: th, verbose: verbose}
}

// Theme returns the printer's theme.
func (p *Printer) Theme() *theme.Theme { return p.th }

// Writer returns the destination of the printer.
func (p *Printer) Writer() io.Writer { return p.w }

// Log writes one line at level.
func (p *Printer) Log(level Level, format string, args ...any) {
	if level == LevelDebug && !p.verbose {
		return
	}
	fmt.Fprintln(p.w, FormatWith(p.th, level, fmt.Sprintf(format, args...)))
}

func (p *Printer) Debug(format string, args ...any)    { p.Log(LevelDebug, format, args...) }
func (p *Printer) Info(format string, args ...any)     { p.Log(LevelInfo, format, args...) }
func (p *Printer) Warning(format string, args ...any)  { p.Log(LevelWarning, format, args...) }
func (p *Printer) Error(format string, args ...any)    { p.Log(LevelError, format, args...) }
func (p *Printer) Critical(format string, args ...any) { p.Log(LevelCritical, format, args...) }

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

// ErrProgressOverflow is returned by Tick once every step has been counted.
var ErrProgressOverflow = errors.New("progress: more steps than total")

const barWidth = 40

// Progress counts completed steps out of a fixed total and prints one bar
// line per step.
type Progress struct {
	p     *Printer
	bar   progress.Model
	total int
	done  int
}

// NewProgress returns a counter for total steps that prints through p.
func NewProgress(p *Printer, total int) *Progress {
	bar := progress.New(
		progress.WithSolidFill(p.th.ProgressFull),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = p.th.ProgressEmpty
	return &Progress{p: p, bar: bar, total: total}
}

// Done returns the number of steps counted so far.
func (g *Progress) Done() int { return g.done }

// Total returns the number of expected steps.
func (g *Progress) Total() int { return g.total }

// Tick counts one step and prints the bar.
func (g *Progress) Tick() error {
	if g.done >= g.total {
		return ErrProgressOverflow
	}
	g.done++
	fmt.Fprintln(g.p.w, g.Render())
	return nil
}

// Render returns "Progress: <bar> NN% - done/total".
func (g *Progress) Render() string {
	percent := 0.0
	if g.total > 0 {
		percent = float64(g.done) / float64(g.total)
	}
	return fmt.Sprintf("Progress: %s %d%% - %d/%d", g.bar.ViewAs(percent), int(percent*100), g.done, g.total)
}
