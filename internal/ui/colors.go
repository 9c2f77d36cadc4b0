package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/yms/internal/models"
)

// Default is the palette used by the CLI.
var Default = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) OK(s string) string    { return p.ok.Render(s) }
func (p *Palette) Err(s string) string   { return p.err.Render(s) }
func (p *Palette) Warn(s string) string  { return p.warn.Render(s) }
func (p *Palette) Help(s string) string  { return p.help.Render(s) }

// Outcome colours a journal line by its outcome: linked and uploaded tracks are green,
// upload problems orange, everything else red.
//
// Its signature matches tasks.Styler.
func (p *Palette) Outcome(outcome models.Outcome, line string) string {
	switch outcome {
	case models.OutcomeInserted, models.OutcomeUploaded:
		return p.OK(line)
	case models.OutcomeUploadFailed, models.OutcomeUploadUnlinked:
		return p.Warn(line)
	default:
		return p.Err(line)
	}
}

// Mark renders the check or cross shown next to a finished track.
func (p *Palette) Mark(outcome models.Outcome) string {
	if outcome.Failed() {
		return p.Err("✗")
	}
	return p.OK("✓")
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
