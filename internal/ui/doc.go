// Package ui holds the lipgloss palette used to colour console output.
//
// [Palette.Outcome] decorates the journal's console mirror; the journal file itself stays plain text.
package ui
