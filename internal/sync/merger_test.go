package sync

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/period"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/storage/sqlite"
)

var created = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "tally.db"), sqlite.Options{
		Keyer: period.New(time.Monday, time.UTC),
		Now:   func() time.Time { return created },
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *sqlite.Store, titles ...string) []string {
	t.Helper()
	ctx := context.Background()
	ids := make([]string, 0, len(titles))
	for _, title := range titles {
		id, err := s.CreateHabit(ctx, models.NewHabit{Title: title, Cadence: models.CadenceDaily, TargetCount: 2})
		require.NoError(t, err)
		require.NoError(t, s.UpdateLog(ctx, id, period.Key("2026-10-15"), 2, 2, models.CadenceDaily))
		ids = append(ids, id)
	}
	return ids
}

func TestMerge_UploadsIntoEmptyScope(t *testing.T) {
	ctx := context.Background()
	local, remote := openStore(t), openStore(t)
	localIDs := seed(t, local, "Read", "Write", "Run")
	require.NoError(t, local.SetGuestMode(ctx, true))

	res := (&Merger{}).Merge(ctx, local, remote)
	require.NoError(t, res.Err)
	assert.Equal(t, Uploaded, res.Outcome)
	assert.Equal(t, 3, res.Copied)

	got, err := remote.ListHabits(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, h := range got {
		assert.NotContains(t, localIDs, h.ID, "local ids must not be reused")
		assert.True(t, h.CreatedAt.Equal(created))
		assert.Equal(t, 2, h.TargetCount)
		assert.True(t, h.Logs.Completed("2026-10-15"))
	}

	left, err := local.ListHabits(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
	guest, err := local.GuestMode(ctx)
	require.NoError(t, err)
	assert.False(t, guest)
}

func TestMerge_NothingToSync(t *testing.T) {
	ctx := context.Background()
	local, remote := openStore(t), openStore(t)
	require.NoError(t, local.SetGuestMode(ctx, true))

	res := (&Merger{}).Merge(ctx, local, remote)
	assert.Equal(t, NothingToSync, res.Outcome)
	assert.NoError(t, res.Err)

	guest, _ := local.GuestMode(ctx)
	assert.False(t, guest)
}

func TestMerge_ConflictConfirmed(t *testing.T) {
	ctx := context.Background()
	local, remote := openStore(t), openStore(t)
	seed(t, local, "Read", "Write")
	seed(t, remote, "Existing")

	var asked [2]int
	m := &Merger{Confirm: func(_ context.Context, localCount, remoteCount int) (bool, error) {
		asked = [2]int{localCount, remoteCount}
		return true, nil
	}}

	res := m.Merge(ctx, local, remote)
	require.NoError(t, res.Err)
	assert.Equal(t, Merged, res.Outcome)
	assert.Equal(t, [2]int{2, 1}, asked)

	got, _ := remote.ListHabits(ctx)
	assert.Len(t, got, 3)
	left, _ := local.ListHabits(ctx)
	assert.Empty(t, left)
}

func TestMerge_ConflictDeclined(t *testing.T) {
	ctx := context.Background()
	local, remote := openStore(t), openStore(t)
	seed(t, local, "Read", "Write")
	seed(t, remote, "Existing")

	res := (&Merger{}).Merge(ctx, local, remote)
	assert.Equal(t, Discarded, res.Outcome)
	assert.Zero(t, res.Copied)

	got, _ := remote.ListHabits(ctx)
	assert.Len(t, got, 1, "declined merge must not write remotely")
	has, _ := local.HasLocalData(ctx)
	assert.False(t, has, "declined merge still discards local data")
}

func TestMerge_ConfirmError(t *testing.T) {
	ctx := context.Background()
	local, remote := openStore(t), openStore(t)
	seed(t, local, "Read")
	seed(t, remote, "Existing")

	m := &Merger{Confirm: func(context.Context, int, int) (bool, error) {
		return false, stderrors.New("prompt closed")
	}}
	res := m.Merge(ctx, local, remote)
	assert.Equal(t, Failed, res.Outcome)
	has, _ := local.HasLocalData(ctx)
	assert.True(t, has)
}

type failingRemote struct {
	storage.Repository
	failOn string
}

func (f failingRemote) AdoptHabit(ctx context.Context, h models.Habit) (string, error) {
	if h.Title == f.failOn {
		return "", stderrors.New("write rejected")
	}
	return f.Repository.AdoptHabit(ctx, h)
}

func TestMerge_PartialFailureKeepsLocalData(t *testing.T) {
	ctx := context.Background()
	local, remote := openStore(t), openStore(t)
	seed(t, local, "Read", "Write", "Run")
	require.NoError(t, local.SetGuestMode(ctx, true))

	res := (&Merger{}).Merge(ctx, local, failingRemote{Repository: remote, failOn: "Write"})
	assert.Equal(t, Failed, res.Outcome)
	assert.Equal(t, 2, res.Copied)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "write rejected")

	left, _ := local.ListHabits(ctx)
	assert.Len(t, left, 3)
	guest, _ := local.GuestMode(ctx)
	assert.True(t, guest)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "uploaded", Uploaded.String())
	assert.Equal(t, "discarded", Discarded.String())
	assert.Equal(t, "outcome(42)", Outcome(42).String())
}
