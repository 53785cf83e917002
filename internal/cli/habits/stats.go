package habits

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/models"
)

type StatsCmd struct{}

var cell = lipgloss.NewStyle().PaddingRight(2)

func (c *StatsCmd) Run(ctx *cli.Context) error {
	repo, err := ctx.Repository()
	if err != nil {
		return err
	}
	habits, err := repo.ListHabits(ctx.Ctx)
	if err != nil {
		return err
	}
	if len(habits) == 0 {
		ctx.Println("No habits yet.")
		return nil
	}

	columns := [][]string{
		{cli.TitleStyle.Render("Habit")},
		{cli.TitleStyle.Render("Period")},
		{cli.TitleStyle.Render("Streak")},
		{cli.TitleStyle.Render("Total")},
		{cli.TitleStyle.Render("Next")},
	}
	done := 0
	for _, h := range habits {
		s := ctx.Analyzer.Summarize(h)
		if s.Completed {
			done++
		}
		streak, next := "-", "-"
		if h.Cadence == models.CadenceDaily {
			streak = fmt.Sprint(s.Streak)
			if s.Next > 0 {
				next = fmt.Sprint(s.Next)
			}
		}
		row := []string{h.Title, cli.Status(s.Value, h.TargetCount, s.Completed), streak, fmt.Sprint(s.Total), next}
		for i, v := range row {
			columns[i] = append(columns[i], v)
		}
	}

	rendered := make([]string, len(columns))
	for i, col := range columns {
		rendered[i] = cell.Render(lipgloss.JoinVertical(lipgloss.Left, col...))
	}
	ctx.Println(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	ctx.Printf("\n%d of %d done this period\n", done, len(habits))
	return nil
}
