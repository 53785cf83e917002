package habits

import (
	"fmt"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/period"
	"github.com/julianstephens/tally/internal/storage"
)

type LogCmd struct {
	Set LogSetCmd `cmd:"" help:"Set the logged value for a period."`
	Add LogAddCmd `cmd:"" help:"Add to the logged value for a period." default:"withargs"`
}

// PeriodFlags select the period a log command writes to.
type PeriodFlags struct {
	Date   string `help:"Date inside the period (YYYY-MM-DD, default today)." xor:"period"`
	Period string `help:"Explicit period key (YYYY-MM-DD or YYYY-MM)." xor:"period"`
}

func (t PeriodFlags) ref(ctx *cli.Context) (period.Ref, error) {
	if t.Period != "" {
		return period.Key(t.Period), nil
	}
	date, err := ctx.Date(t.Date)
	if err != nil {
		return period.Ref{}, err
	}
	return period.On(date), nil
}

type LogSetCmd struct {
	Habit string `arg:"" help:"Habit id or title."`
	Value int    `arg:"" help:"Value to store (negative values store 0)."`

	PeriodFlags `embed:""`
}

func (c *LogSetCmd) Run(ctx *cli.Context) error {
	ref, err := c.ref(ctx)
	if err != nil {
		return err
	}
	return writeLog(ctx, c.Habit, ref, func(models.Habit, int) int { return c.Value })
}

type LogAddCmd struct {
	Habit  string `arg:"" help:"Habit id or title."`
	Amount int    `arg:"" optional:"" help:"Amount to add (default: the habit's first increment)."`

	PeriodFlags `embed:""`
}

func (c *LogAddCmd) Run(ctx *cli.Context) error {
	ref, err := c.ref(ctx)
	if err != nil {
		return err
	}
	return writeLog(ctx, c.Habit, ref, func(h models.Habit, current int) int {
		if c.Amount == 0 {
			return current + h.EffectiveIncrements()[0]
		}
		return current + c.Amount
	})
}

// writeLog reads the current value, applies next and stores the result.
func writeLog(ctx *cli.Context, ref string, r period.Ref, next func(h models.Habit, current int) int) error {
	repo, err := ctx.Repository()
	if err != nil {
		return err
	}
	h, err := ctx.FindHabit(repo, ref)
	if err != nil {
		return err
	}

	key := ctx.Keyer.Resolve(r, h.Cadence)
	if !ctx.Keyer.ValidKey(key, h.Cadence) {
		return fmt.Errorf("%q is not a %s period key", key, h.Cadence)
	}
	streak := ctx.Analyzer.CurrentStreak(h)
	value := max(next(h, h.Logs.Value(key)), 0)

	if err := repo.UpdateLog(ctx.Ctx, h.ID, period.Key(key), value, h.TargetCount, h.Cadence); err != nil {
		return err
	}

	completed := value >= h.TargetCount
	ctx.Printf("%s  %s  %s\n", cli.TitleStyle.Render(h.Title), key, cli.Status(value, h.TargetCount, completed))
	celebrate(ctx, repo, h, streak)
	return nil
}

// celebrate prints a message when a write moved a daily streak onto a
// milestone.
func celebrate(ctx *cli.Context, repo storage.Repository, h models.Habit, before int) {
	if h.Cadence != models.CadenceDaily {
		return
	}
	fresh, err := repo.GetHabit(ctx.Ctx, h.ID)
	if err != nil {
		return
	}
	after := ctx.Analyzer.CurrentStreak(fresh)
	if after == before {
		return
	}
	if msg := cli.Celebrate(fresh.Title, after); msg != "" {
		ctx.Println(msg)
	}
}
