package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/tally/internal/analytics"
	"github.com/julianstephens/tally/internal/models"
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true)
	DoneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	OpenStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

const barWidth = 20

// Bar renders progress in [0,1] as a fixed-width bar.
func Bar(progress float64) string {
	filled := int(progress*barWidth + 0.5)
	filled = min(max(filled, 0), barWidth)
	return DoneStyle.Render(strings.Repeat("█", filled)) + MutedStyle.Render(strings.Repeat("░", barWidth-filled))
}

// Status renders "value/target" colored by completion.
func Status(value, target int, completed bool) string {
	s := fmt.Sprintf("%d/%d", value, target)
	if completed {
		return DoneStyle.Render(s)
	}
	return OpenStyle.Render(s)
}

// HabitLine renders one habit with its current-period summary.
func HabitLine(h models.Habit, s analytics.Summary) string {
	mark := OpenStyle.Render("○")
	if s.Completed {
		mark = DoneStyle.Render("●")
	}
	line := fmt.Sprintf("%s %s  %s  %s", mark, TitleStyle.Render(h.Title),
		MutedStyle.Render(string(h.Cadence)), Status(s.Value, h.TargetCount, s.Completed))
	if s.Overachieved {
		line += DoneStyle.Render(" +")
	}
	if h.Cadence == models.CadenceDaily && s.Streak > 0 {
		line += fmt.Sprintf("  🔥 %d", s.Streak)
	}
	return line
}

// Celebrate returns a milestone message for streak, or "" when it is not one.
func Celebrate(title string, streak int) string {
	if !analytics.Milestone(streak) {
		return ""
	}
	return DoneStyle.Render(fmt.Sprintf("🎉 %s: %d-day streak!", title, streak))
}
