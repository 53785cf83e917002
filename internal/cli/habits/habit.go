package habits

import (
	"fmt"
	"strings"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/models"
)

type HabitCmd struct {
	Add     HabitAddCmd     `cmd:"" help:"Add a new habit."`
	List    HabitListCmd    `cmd:"" help:"List habits with today's progress." default:"1"`
	Show    HabitShowCmd    `cmd:"" help:"Show a habit's stats and recent history."`
	Edit    HabitEditCmd    `cmd:"" help:"Edit a habit."`
	Archive HabitArchiveCmd `cmd:"" help:"Archive a habit (its logs are kept)."`
}

type HabitAddCmd struct {
	Title      string `arg:"" help:"Habit title."`
	Type       string `help:"Cadence: daily, weekly or monthly." default:"daily" enum:"daily,weekly,monthly"`
	Target     int    `help:"Target count per period (1 means done/not done)." default:"1"`
	Increments []int  `help:"Quick-add step sizes, comma separated." sep:","`
	Frequency  string `help:"Free-form frequency label." default:""`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	repo, err := ctx.Repository()
	if err != nil {
		return err
	}

	cadence, err := models.ParseCadence(c.Type)
	if err != nil {
		return err
	}
	id, err := repo.CreateHabit(ctx.Ctx, models.NewHabit{
		Title:       c.Title,
		Cadence:     cadence,
		TargetCount: c.Target,
		Increments:  c.Increments,
		Frequency:   c.Frequency,
	})
	if err != nil {
		return err
	}

	ctx.Printf("✓ Added habit: %s (%s)\n", strings.TrimSpace(c.Title), id)
	return nil
}

type HabitListCmd struct{}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	repo, err := ctx.Repository()
	if err != nil {
		return err
	}
	habits, err := repo.ListHabits(ctx.Ctx)
	if err != nil {
		return err
	}

	if len(habits) == 0 {
		ctx.Println("No habits yet. Add one with 'tally habit add'.")
		return nil
	}
	for _, h := range habits {
		ctx.Println(cli.HabitLine(h, ctx.Analyzer.Summarize(h)))
	}
	return nil
}

type HabitShowCmd struct {
	Habit string `arg:"" help:"Habit id or title."`
	Days  int    `help:"History range in days (7 or 30)." default:"7"`
}

func (c *HabitShowCmd) Run(ctx *cli.Context) error {
	if c.Days != 7 && c.Days != 30 {
		return fmt.Errorf("--days must be 7 or 30")
	}
	repo, err := ctx.Repository()
	if err != nil {
		return err
	}
	h, err := ctx.FindHabit(repo, c.Habit)
	if err != nil {
		return err
	}

	s := ctx.Analyzer.Summarize(h)
	ctx.Println(cli.TitleStyle.Render(h.Title) + cli.MutedStyle.Render("  "+h.ID))
	ctx.Printf("  Cadence:     %s (%s)\n", h.Cadence, h.Frequency)
	ctx.Printf("  This period: %s %s\n", cli.Bar(s.Progress), cli.Status(s.Value, h.TargetCount, s.Completed))
	ctx.Printf("  Completions: %d\n", s.Total)
	if h.Cadence == models.CadenceDaily {
		ctx.Printf("  Streak:      %d\n", s.Streak)
		if s.Next > 0 {
			ctx.Printf("  Next goal:   %d days\n", s.Next)
		}
	}
	if !h.IsBinary() {
		ctx.Printf("  Increments:  %v\n", h.EffectiveIncrements())
	}

	ctx.Printf("\nLast %d days:\n", c.Days)
	for _, d := range ctx.Analyzer.History(h, c.Days) {
		progress := 0.0
		if h.TargetCount > 0 {
			progress = min(float64(d.Value)/float64(h.TargetCount), 1)
		}
		ctx.Printf("  %s  %s %d\n", d.Date.Format("Mon 01-02"), cli.Bar(progress), d.Value)
	}
	return nil
}

type HabitEditCmd struct {
	Habit      string `arg:"" help:"Habit id or title."`
	Title      string `help:"New title."`
	Target     int    `help:"New target count."`
	Increments []int  `help:"New quick-add step sizes, comma separated." sep:","`
	Frequency  string `help:"New frequency label."`
}

func (c *HabitEditCmd) Run(ctx *cli.Context) error {
	var p models.HabitPatch
	if c.Title != "" {
		p.Title = &c.Title
	}
	if c.Target != 0 {
		p.TargetCount = &c.Target
	}
	if c.Increments != nil {
		p.Increments = &c.Increments
	}
	if c.Frequency != "" {
		p.Frequency = &c.Frequency
	}
	if p.IsEmpty() {
		return fmt.Errorf("nothing to change (use --title, --target, --increments or --frequency)")
	}

	repo, err := ctx.Repository()
	if err != nil {
		return err
	}
	h, err := ctx.FindHabit(repo, c.Habit)
	if err != nil {
		return err
	}
	if err := repo.UpdateHabit(ctx.Ctx, h.ID, p); err != nil {
		return err
	}

	ctx.Printf("✓ Updated habit: %s\n", h.Title)
	return nil
}

type HabitArchiveCmd struct {
	Habit string `arg:"" help:"Habit id or title."`
}

func (c *HabitArchiveCmd) Run(ctx *cli.Context) error {
	repo, err := ctx.Repository()
	if err != nil {
		return err
	}
	h, err := ctx.FindHabit(repo, c.Habit)
	if err != nil {
		return err
	}
	if err := repo.DeleteHabit(ctx.Ctx, h.ID); err != nil {
		return err
	}

	ctx.Printf("✓ Archived habit: %s\n", h.Title)
	return nil
}
