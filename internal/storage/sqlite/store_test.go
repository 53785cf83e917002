package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/period"
)

var fixedNow = time.Date(2026, 10, 16, 18, 30, 0, 0, time.UTC)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "tally.db")
	}
	s, err := Open(context.Background(), path, Options{
		Keyer:        period.New(time.Monday, time.UTC),
		Now:          func() time.Time { return fixedNow },
		PollInterval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreate(t *testing.T, s *Store, title string, target int) string {
	t.Helper()
	id, err := s.CreateHabit(context.Background(), models.NewHabit{
		Title: title, Cadence: models.CadenceDaily, TargetCount: target,
	})
	if err != nil {
		t.Fatalf("CreateHabit(%q) failed: %v", title, err)
	}
	return id
}

func TestCreateHabit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")

	id, err := s.CreateHabit(ctx, models.NewHabit{
		Title: "  Drink water ", Cadence: models.CadenceDaily, TargetCount: 8, Increments: []int{1, 2},
	})
	if err != nil {
		t.Fatalf("CreateHabit failed: %v", err)
	}
	if len(id) <= len("local_") || id[:6] != "local_" {
		t.Errorf("id = %q, want a local_ prefix", id)
	}

	h, err := s.GetHabit(ctx, id)
	if err != nil {
		t.Fatalf("GetHabit failed: %v", err)
	}
	if h.Title != "Drink water" || h.TargetCount != 8 || h.Archived {
		t.Errorf("unexpected habit: %+v", h)
	}
	if len(h.Increments) != 2 || h.Increments[1] != 2 {
		t.Errorf("Increments = %v, want [1 2]", h.Increments)
	}
	if !h.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v, want %v", h.CreatedAt, fixedNow)
	}
	if h.Logs == nil || len(h.Logs) != 0 {
		t.Errorf("Logs = %v, want an empty map", h.Logs)
	}
	if h.Frequency != "everyday" {
		t.Errorf("Frequency = %q, want everyday", h.Frequency)
	}
}

func TestCreateHabit_Invalid(t *testing.T) {
	s := openTestStore(t, "")
	_, err := s.CreateHabit(context.Background(), models.NewHabit{Title: "", Cadence: models.CadenceDaily, TargetCount: 1})
	if !errors.IsValidation(err) {
		t.Errorf("CreateHabit with empty title error = %v, want validation", err)
	}
}

func TestCreateHabit_Limit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")

	for i := 0; i < 10; i++ {
		mustCreate(t, s, "habit", 1)
	}
	if _, err := s.CreateHabit(ctx, models.NewHabit{Title: "one more", Cadence: models.CadenceDaily, TargetCount: 1}); !errors.IsValidation(err) {
		t.Fatalf("eleventh habit error = %v, want validation", err)
	}

	habits, _ := s.ListHabits(ctx)
	if err := s.DeleteHabit(ctx, habits[0].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateHabit(ctx, models.NewHabit{Title: "fits now", Cadence: models.CadenceDaily, TargetCount: 1}); err != nil {
		t.Errorf("archiving should free a slot: %v", err)
	}
}

func TestUpdateLog_BinaryHabit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")
	id := mustCreate(t, s, "Meditate", 1)

	if err := s.UpdateLog(ctx, id, period.On(fixedNow), 1, 1, models.CadenceDaily); err != nil {
		t.Fatalf("UpdateLog failed: %v", err)
	}

	h, _ := s.GetHabit(ctx, id)
	e, ok := h.Logs.Get("2026-10-16")
	if !ok {
		t.Fatalf("no entry for today, logs = %v", h.Logs)
	}
	if e.Value != 1 || !e.Completed {
		t.Errorf("entry = %+v, want value 1 completed", e)
	}
	if !e.UpdatedAt.Equal(fixedNow) {
		t.Errorf("UpdatedAt = %v, want %v", e.UpdatedAt, fixedNow)
	}
}

func TestUpdateLog_Overachievement(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")
	id := mustCreate(t, s, "Pushups", 10)

	if err := s.UpdateLog(ctx, id, period.On(fixedNow), 12, 10, models.CadenceDaily); err != nil {
		t.Fatal(err)
	}
	h, _ := s.GetHabit(ctx, id)
	if e := h.Logs["2026-10-16"]; e.Value != 12 || !e.Completed {
		t.Errorf("entry = %+v, want value 12 completed", e)
	}
}

func TestUpdateLog_OverwritesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")
	id := mustCreate(t, s, "Water", 8)

	for _, v := range []int{3, 5, 5} {
		if err := s.UpdateLog(ctx, id, period.Key("2026-10-15"), v, 8, models.CadenceDaily); err != nil {
			t.Fatal(err)
		}
	}
	h, _ := s.GetHabit(ctx, id)
	if len(h.Logs) != 1 {
		t.Fatalf("len(Logs) = %d, want 1", len(h.Logs))
	}
	if e := h.Logs["2026-10-15"]; e.Value != 5 || e.Completed {
		t.Errorf("entry = %+v, want value 5 not completed", e)
	}
}

func TestUpdateLog_ClampsNegative(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")
	id := mustCreate(t, s, "Water", 8)

	if err := s.UpdateLog(ctx, id, period.On(fixedNow), -4, 8, models.CadenceDaily); err != nil {
		t.Fatal(err)
	}
	h, _ := s.GetHabit(ctx, id)
	if v := h.Logs.Value("2026-10-16"); v != 0 {
		t.Errorf("value = %d, want 0", v)
	}
}

func TestUpdateLog_MissingHabit(t *testing.T) {
	s := openTestStore(t, "")
	err := s.UpdateLog(context.Background(), "local_missing", period.On(fixedNow), 1, 1, models.CadenceDaily)
	if !errors.IsNotFound(err) {
		t.Errorf("UpdateLog on a missing habit error = %v, want not found", err)
	}
}

func TestUpdateLog_ArchivedHabit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")
	id := mustCreate(t, s, "Water", 8)
	if err := s.DeleteHabit(ctx, id); err != nil {
		t.Fatal(err)
	}

	err := s.UpdateLog(ctx, id, period.On(fixedNow), 3, 8, models.CadenceDaily)
	if !errors.IsNotFound(err) {
		t.Errorf("UpdateLog on an archived habit error = %v, want not found", err)
	}
	var n int
	_ = s.DB().QueryRow("SELECT count(*) FROM habit_logs WHERE habit_id = ?", id).Scan(&n)
	if n != 0 {
		t.Errorf("archived habit gained %d log rows", n)
	}
}

func TestUpdateLog_RejectsMismatchedKey(t *testing.T) {
	s := openTestStore(t, "")
	id := mustCreate(t, s, "Water", 8)
	err := s.UpdateLog(context.Background(), id, period.Key("2026-10"), 1, 8, models.CadenceDaily)
	if !errors.IsValidation(err) {
		t.Errorf("UpdateLog with a monthly key on a daily habit error = %v, want validation", err)
	}
}

func TestUpdateHabit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")
	id := mustCreate(t, s, "Water", 8)
	_ = s.UpdateLog(ctx, id, period.Key("2026-10-15"), 6, 8, models.CadenceDaily)

	title := "Hydrate"
	target := 6
	if err := s.UpdateHabit(ctx, id, models.HabitPatch{Title: &title, TargetCount: &target}); err != nil {
		t.Fatalf("UpdateHabit failed: %v", err)
	}

	h, _ := s.GetHabit(ctx, id)
	if h.Title != "Hydrate" || h.TargetCount != 6 {
		t.Errorf("habit = %+v", h)
	}
	if e := h.Logs["2026-10-15"]; e.Value != 6 || !e.Completed {
		t.Errorf("entry = %+v, want completion recomputed against the new target", e)
	}
}

func TestUpdateAndDelete_MissingIDIsNoop(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")
	title := "x"

	if err := s.UpdateHabit(ctx, "local_nope", models.HabitPatch{Title: &title}); err != nil {
		t.Errorf("UpdateHabit on a missing id = %v, want nil", err)
	}
	if err := s.DeleteHabit(ctx, "local_nope"); err != nil {
		t.Errorf("DeleteHabit on a missing id = %v, want nil", err)
	}
}

func TestDeleteHabit_Archives(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")
	keep := mustCreate(t, s, "Keep", 1)
	gone := mustCreate(t, s, "Gone", 1)

	if err := s.DeleteHabit(ctx, gone); err != nil {
		t.Fatal(err)
	}

	habits, err := s.ListHabits(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(habits) != 1 || habits[0].ID != keep {
		t.Errorf("ListHabits = %v, want only %s", habits, keep)
	}
	if _, err := s.GetHabit(ctx, gone); !errors.IsNotFound(err) {
		t.Errorf("GetHabit on archived habit error = %v, want not found", err)
	}

	var n int
	_ = s.DB().QueryRow("SELECT count(*) FROM habits WHERE id = ?", gone).Scan(&n)
	if n != 1 {
		t.Error("archived habit was physically removed")
	}
}

func TestListHabits_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")
	id := mustCreate(t, s, "Read", 1)
	_ = s.UpdateLog(ctx, id, period.On(fixedNow), 1, 1, models.CadenceDaily)

	first, _ := s.ListHabits(ctx)
	first[0].Logs["2026-10-16"] = models.LogEntry{Value: 42}

	second, _ := s.ListHabits(ctx)
	if second[0].Logs.Value("2026-10-16") != 1 {
		t.Error("mutating a listed habit changed stored data")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := openTestStore(t, "")
	a := mustCreate(t, src, "Read", 1)
	b := mustCreate(t, src, "Water", 8)
	_ = src.UpdateLog(ctx, a, period.Key("2026-10-15"), 1, 1, models.CadenceDaily)
	_ = src.UpdateLog(ctx, b, period.Key("2026-10-16"), 9, 8, models.CadenceDaily)

	snap, err := src.ExportData(ctx)
	if err != nil {
		t.Fatalf("ExportData failed: %v", err)
	}
	if snap.Version != 1 || len(snap.Habits) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}

	dst := openTestStore(t, "")
	if err := dst.ImportData(ctx, snap); err != nil {
		t.Fatalf("ImportData failed: %v", err)
	}
	got, _ := dst.ListHabits(ctx)
	if len(got) != 2 {
		t.Fatalf("imported %d habits, want 2", len(got))
	}
	for i, h := range got {
		want := snap.Habits[i]
		if h.ID != want.ID || h.Title != want.Title || h.TargetCount != want.TargetCount {
			t.Errorf("habit %d = %+v, want %+v", i, h, want)
		}
		if len(h.Logs) != len(want.Logs) {
			t.Errorf("habit %s has %d logs, want %d", h.ID, len(h.Logs), len(want.Logs))
		}
		for key, e := range want.Logs {
			if g := h.Logs[key]; g.Value != e.Value || g.Completed != e.Completed {
				t.Errorf("habit %s log %s = %+v, want %+v", h.ID, key, g, e)
			}
		}
	}
}

func TestImportData_OverwritesSameID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")
	id := mustCreate(t, s, "Old title", 1)
	_ = s.UpdateLog(ctx, id, period.Key("2026-10-01"), 1, 1, models.CadenceDaily)

	snap := models.NewSnapshot([]models.Habit{{
		ID: id, Title: "New title", Cadence: models.CadenceDaily, TargetCount: 1,
		Logs: models.Logs{"2026-10-02": {Value: 1, Completed: true}},
	}}, models.At(fixedNow))
	if err := s.ImportData(ctx, snap); err != nil {
		t.Fatal(err)
	}

	h, _ := s.GetHabit(ctx, id)
	if h.Title != "New title" {
		t.Errorf("Title = %q, want the imported one", h.Title)
	}
	if _, ok := h.Logs["2026-10-01"]; ok || len(h.Logs) != 1 {
		t.Errorf("logs = %v, want only the imported map", h.Logs)
	}
}

func TestImportData_RejectsMissingHabits(t *testing.T) {
	s := openTestStore(t, "")
	err := s.ImportData(context.Background(), models.Snapshot{Version: 1})
	if !errors.IsValidation(err) {
		t.Errorf("ImportData without habits error = %v, want validation", err)
	}
}

func TestImportData_RejectsInvalidPeriodKeys(t *testing.T) {
	tests := []struct {
		name    string
		cadence models.Cadence
		key     string
	}{
		{"garbage", models.CadenceDaily, "garbage"},
		{"weekly key on a wednesday", models.CadenceWeekly, "2026-10-14"},
		{"daily key on a monthly habit", models.CadenceMonthly, "2026-10-16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := openTestStore(t, "")
			snap := models.NewSnapshot([]models.Habit{{
				ID: "h1", Title: "Gym", Cadence: tt.cadence, TargetCount: 1,
				Logs: models.Logs{tt.key: {Value: 1, Completed: true}},
			}}, models.At(fixedNow))

			if err := s.ImportData(ctx, snap); !errors.IsValidation(err) {
				t.Errorf("ImportData error = %v, want validation", err)
			}
			if habits, _ := s.ListHabits(ctx); len(habits) != 0 {
				t.Errorf("rejected import stored %d habits", len(habits))
			}
		})
	}
}

func TestDeleteAllData(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")
	id := mustCreate(t, s, "Read", 1)
	_ = s.UpdateLog(ctx, id, period.On(fixedNow), 1, 1, models.CadenceDaily)
	_ = s.DeleteHabit(ctx, mustCreate(t, s, "Archived", 1))

	if err := s.DeleteAllData(ctx); err != nil {
		t.Fatal(err)
	}
	if has, _ := s.HasLocalData(ctx); has {
		t.Error("HasLocalData() = true after DeleteAllData")
	}
	var logs int
	_ = s.DB().QueryRow("SELECT count(*) FROM habit_logs").Scan(&logs)
	if logs != 0 {
		t.Errorf("%d log rows survived DeleteAllData", logs)
	}
}

func TestGuestModeAndSession(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")

	if on, _ := s.GuestMode(ctx); on {
		t.Error("fresh store should not be in guest mode")
	}
	if err := s.SetGuestMode(ctx, true); err != nil {
		t.Fatal(err)
	}
	if on, _ := s.GuestMode(ctx); !on {
		t.Error("GuestMode() = false after SetGuestMode(true)")
	}

	_ = s.SetGuestMode(ctx, false)
	mustCreate(t, s, "Read", 1)
	if on, _ := s.GuestMode(ctx); !on {
		t.Error("local data should imply guest mode")
	}

	if err := s.SetSession(ctx, "user-42"); err != nil {
		t.Fatal(err)
	}
	if scope, _ := s.Session(ctx); scope != "user-42" {
		t.Errorf("Session() = %q, want user-42", scope)
	}
	_ = s.ClearSession(ctx)
	if scope, _ := s.Session(ctx); scope != "" {
		t.Errorf("Session() = %q after ClearSession", scope)
	}
}

func TestClientStatePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tally.db")

	s, err := Open(ctx, path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	_ = s.SetGuestMode(ctx, true)
	_ = s.SetSession(ctx, "scope-1")
	s.Close()

	s = openTestStore(t, path)
	state, err := s.ClientState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !state.GuestMode || state.SessionScope != "scope-1" {
		t.Errorf("ClientState() = %+v after reopen", state)
	}
}
