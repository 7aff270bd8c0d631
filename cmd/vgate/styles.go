// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vgate/vgate/internal/gate"
	"github.com/vgate/vgate/internal/launch"
)

// Color palette shared by all CLI output.
const (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorSuccess   = lipgloss.Color("#10B981")
	ColorError     = lipgloss.Color("#EF4444")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorHighlight = lipgloss.Color("#3B82F6")
)

var (
	// TitleStyle is for primary headers and section titles.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	// SubtitleStyle is for secondary headers and descriptions.
	SubtitleStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	// SuccessStyle is for passed tasks.
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	// ErrorStyle is for failed tasks and errors.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorError)
	// WarningStyle is for warnings.
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	// CmdStyle is for command lines and paths.
	CmdStyle = lipgloss.NewStyle().Foreground(ColorHighlight)
)

// statusStyle picks the style of a task status cell.
func statusStyle(s gate.Status) lipgloss.Style {
	switch s {
	case gate.Passed:
		return SuccessStyle
	case gate.Failed:
		return ErrorStyle
	default:
		return SubtitleStyle
	}
}

// renderReport renders the selected tasks of the gate report as a table
// followed by a summary line. Unselected tasks are only counted.
func renderReport(rep *gate.Report) string {
	selected := rep.Selected()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtitleStyle).
		Headers("TASK", "STATUS", "REASON", "DURATION")
	for _, r := range selected {
		duration := ""
		if r.Status == gate.Passed || r.Status == gate.Failed {
			duration = r.Duration.Round(time.Millisecond).String()
		}
		t.Row(r.Name, r.Status.String(), r.Reason, duration)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		base := lipgloss.NewStyle().Padding(0, 1)
		if row == table.HeaderRow {
			return base.Bold(true)
		}
		if col == 1 && row >= 0 && row < len(selected) {
			return statusStyle(selected[row].Status).Padding(0, 1)
		}
		return base
	})

	var skipped int
	for _, r := range selected {
		if r.Status == gate.Skipped {
			skipped++
		}
	}
	var sb strings.Builder
	sb.WriteString(TitleStyle.Render("gate "+rep.Gate) + "\n")
	sb.WriteString(t.Render() + "\n")
	summary := fmt.Sprintf("%d passed, %d failed, %d skipped", rep.Count(gate.Passed), rep.Count(gate.Failed), skipped)
	if n := len(rep.Results) - len(selected); n > 0 {
		summary += fmt.Sprintf(", %d not selected", n)
	}
	summary += " in " + rep.Duration.Round(time.Millisecond).String()
	sb.WriteString(statusStyle(rep.Verdict()).Render(rep.Verdict().String()+": ") + summary + "\n")
	for _, w := range rep.Warnings {
		sb.WriteString(WarningStyle.Render("warning: ") + w + "\n")
	}
	return sb.String()
}

// renderEntries lists class and module path entries with their provenance.
func renderEntries(entries []launch.PathEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		style := SubtitleStyle
		if e.Provenance == launch.ProvenancePrivileged {
			style = CmdStyle
		}
		fmt.Fprintf(&sb, "  %s %s\n", style.Render(fmt.Sprintf("%-10s", e.Provenance)), e.Path)
	}
	return sb.String()
}
