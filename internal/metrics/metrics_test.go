package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/period"
	"github.com/julianstephens/tally/internal/storage/sqlite"
)

func openRepo(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "tally.db"), sqlite.Options{
		Keyer: period.New(time.Monday, time.UTC),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInstrument_CountsOperations(t *testing.T) {
	ctx := context.Background()
	m := New()
	repo := Instrument(openRepo(t), m)

	id, err := repo.CreateHabit(ctx, models.NewHabit{Title: "Read", Cadence: models.CadenceDaily, TargetCount: 1})
	require.NoError(t, err)
	_, err = repo.CreateHabit(ctx, models.NewHabit{Title: "", Cadence: models.CadenceDaily, TargetCount: 1})
	require.Error(t, err)
	_, err = repo.GetHabit(ctx, "local_missing")
	require.Error(t, err)
	_, err = repo.ListHabits(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateLog(ctx, id, period.Key("2026-10-16"), 1, 1, models.CadenceDaily))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("CreateHabit", "local", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("CreateHabit", "local", "validation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("GetHabit", "local", "not found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("UpdateLog", "local", "ok")))
	assert.Equal(t, 5, testutil.CollectAndCount(m.operations))
}

func TestInstrument_TracksSubscribers(t *testing.T) {
	ctx := context.Background()
	m := New()
	repo := Instrument(openRepo(t), m)

	unsub, err := repo.Subscribe(ctx, func([]models.Habit) {})
	require.NoError(t, err)

	gauge := m.subscribers.WithLabelValues("local")
	assert.Equal(t, 1.0, testutil.ToFloat64(gauge))

	unsub()
	unsub()
	assert.Equal(t, 0.0, testutil.ToFloat64(gauge))
}

func TestInstrument_NilMetrics(t *testing.T) {
	repo := openRepo(t)
	assert.Same(t, repo, Instrument(repo, nil))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.SyncOutcome("uploaded")

	path := filepath.Join(t.TempDir(), "tally.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `tally_sync_outcomes_total{outcome="uploaded"} 1`))
}
