package habits

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/debounce"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/period"
)

// TapCmd adjusts today's value interactively. Bursts of taps are written
// once per debounce window.
type TapCmd struct {
	Habit string `arg:"" help:"Habit id or title."`
}

func (c *TapCmd) Run(ctx *cli.Context) error {
	repo, err := ctx.Repository()
	if err != nil {
		return err
	}
	h, err := ctx.FindHabit(repo, c.Habit)
	if err != nil {
		return err
	}

	writer := debounce.NewLogWriter(repo, ctx.Keyer, ctx.Config.Sync.Debounce)
	ref := period.On(ctx.Now())
	key := ctx.Keyer.Resolve(ref, h.Cadence)
	value := h.Logs.Value(key)
	step := h.EffectiveIncrements()[0]
	streak := ctx.Analyzer.CurrentStreak(h)

	ctx.Printf("%s  %s  %s\n", cli.TitleStyle.Render(h.Title), key, cli.Status(value, h.TargetCount, value >= h.TargetCount))
	ctx.Println(cli.MutedStyle.Render("enter: +" + strconv.Itoa(step) + "   -: undo   +N/-N: adjust   N: set   q: quit"))

	scanner := bufio.NewScanner(ctx.In)
	for {
		ctx.Printf("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "q" || line == "quit" {
			break
		}
		next, err := applyTap(line, value, step)
		if err != nil {
			ctx.Println(cli.WarningStyle.Render(err.Error()))
			continue
		}
		value = next
		if err := writer.Set(h, ref, value); err != nil {
			return err
		}
		ctx.Printf("%s\n", cli.Status(value, h.TargetCount, value >= h.TargetCount))
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("failed to read input", "error", err)
	}

	if err := writer.Close(ctx.Ctx); err != nil {
		return fmt.Errorf("failed to save %s: %w", h.Title, err)
	}
	celebrate(ctx, repo, h, streak)
	return nil
}

// applyTap interprets one line of tap input against the current value.
// Results never go below zero.
func applyTap(line string, value, step int) (int, error) {
	switch {
	case line == "" || line == "+":
		return value + step, nil
	case line == "-":
		return max(value-step, 0), nil
	case strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-"):
		n, err := strconv.Atoi(line)
		if err != nil {
			return value, fmt.Errorf("not a number: %q", line)
		}
		return max(value+n, 0), nil
	default:
		n, err := strconv.Atoi(line)
		if err != nil {
			return value, fmt.Errorf("not a number: %q", line)
		}
		return max(n, 0), nil
	}
}
