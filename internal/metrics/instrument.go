package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/period"
	"github.com/julianstephens/tally/internal/storage"
)

type instrumented struct {
	repo storage.Repository
	m    *Metrics
}

// Instrument wraps repo so every operation is counted and timed. A nil m
// returns repo unchanged.
func Instrument(repo storage.Repository, m *Metrics) storage.Repository {
	if m == nil {
		return repo
	}
	return &instrumented{repo: repo, m: m}
}

func (r *instrumented) observe(op string, start time.Time, err error) {
	r.m.Observe(op, r.repo.Backend(), start, err)
}

func (r *instrumented) Backend() storage.Backend {
	return r.repo.Backend()
}

func (r *instrumented) CreateHabit(ctx context.Context, in models.NewHabit) (string, error) {
	start := time.Now()
	id, err := r.repo.CreateHabit(ctx, in)
	r.observe("CreateHabit", start, err)
	return id, err
}

func (r *instrumented) AdoptHabit(ctx context.Context, h models.Habit) (string, error) {
	start := time.Now()
	id, err := r.repo.AdoptHabit(ctx, h)
	r.observe("AdoptHabit", start, err)
	return id, err
}

func (r *instrumented) GetHabit(ctx context.Context, id string) (models.Habit, error) {
	start := time.Now()
	h, err := r.repo.GetHabit(ctx, id)
	r.observe("GetHabit", start, err)
	return h, err
}

func (r *instrumented) ListHabits(ctx context.Context) ([]models.Habit, error) {
	start := time.Now()
	habits, err := r.repo.ListHabits(ctx)
	r.observe("ListHabits", start, err)
	return habits, err
}

func (r *instrumented) Subscribe(ctx context.Context, fn storage.Listener) (storage.Unsubscribe, error) {
	start := time.Now()
	unsub, err := r.repo.Subscribe(ctx, fn)
	r.observe("Subscribe", start, err)
	if err != nil {
		return nil, err
	}

	gauge := r.m.subscribers.WithLabelValues(string(r.repo.Backend()))
	gauge.Inc()
	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			gauge.Dec()
		})
	}, nil
}

func (r *instrumented) UpdateHabit(ctx context.Context, id string, p models.HabitPatch) error {
	start := time.Now()
	err := r.repo.UpdateHabit(ctx, id, p)
	r.observe("UpdateHabit", start, err)
	return err
}

func (r *instrumented) DeleteHabit(ctx context.Context, id string) error {
	start := time.Now()
	err := r.repo.DeleteHabit(ctx, id)
	r.observe("DeleteHabit", start, err)
	return err
}

func (r *instrumented) UpdateLog(ctx context.Context, habitID string, ref period.Ref, value, targetCount int, cadence models.Cadence) error {
	start := time.Now()
	err := r.repo.UpdateLog(ctx, habitID, ref, value, targetCount, cadence)
	r.observe("UpdateLog", start, err)
	return err
}

func (r *instrumented) ExportData(ctx context.Context) (models.Snapshot, error) {
	start := time.Now()
	snap, err := r.repo.ExportData(ctx)
	r.observe("ExportData", start, err)
	return snap, err
}

func (r *instrumented) ImportData(ctx context.Context, snap models.Snapshot) error {
	start := time.Now()
	err := r.repo.ImportData(ctx, snap)
	r.observe("ImportData", start, err)
	return err
}

func (r *instrumented) DeleteAllData(ctx context.Context) error {
	start := time.Now()
	err := r.repo.DeleteAllData(ctx)
	r.observe("DeleteAllData", start, err)
	return err
}

func (r *instrumented) Close() error {
	return r.repo.Close()
}
