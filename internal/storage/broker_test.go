package storage

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/julianstephens/tally/internal/models"
)

type countingFeed struct {
	starts atomic.Int32
	stops  atomic.Int32
}

func (f *countingFeed) Start() { f.starts.Add(1) }
func (f *countingFeed) Stop()  { f.stops.Add(1) }

func habitsNamed(titles ...string) []models.Habit {
	out := make([]models.Habit, len(titles))
	for i, t := range titles {
		out[i] = models.Habit{ID: t, Title: t, Logs: models.Logs{}}
	}
	return out
}

func staticLoad(b *Broker, habits []models.Habit) func() (uint64, []models.Habit, error) {
	return func() (uint64, []models.Habit, error) {
		return b.Mark(), habits, nil
	}
}

// recorder collects deliveries and lets tests wait for a count.
type recorder struct {
	mu    sync.Mutex
	got   [][]models.Habit
	calls chan struct{}
}

func newRecorder() *recorder {
	return &recorder{calls: make(chan struct{}, 64)}
}

func (r *recorder) listener(h []models.Habit) {
	r.mu.Lock()
	r.got = append(r.got, h)
	r.mu.Unlock()
	r.calls <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d of %d", i+1, n)
		}
	}
}

func (r *recorder) last() []models.Habit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.got[len(r.got)-1]
}

func TestBroker_InitialDeliveryIsSynchronous(t *testing.T) {
	b := NewBroker(nil)
	var got []models.Habit

	unsub, err := b.Subscribe(func(h []models.Habit) { got = h }, staticLoad(b, habitsNamed("a", "b")))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer unsub()

	if len(got) != 2 {
		t.Fatalf("initial delivery had %d habits before Subscribe returned, want 2", len(got))
	}
}

func TestBroker_PublishReachesEveryListener(t *testing.T) {
	b := NewBroker(nil)
	r1, r2 := newRecorder(), newRecorder()

	u1, _ := b.Subscribe(r1.listener, staticLoad(b, nil))
	u2, _ := b.Subscribe(r2.listener, staticLoad(b, nil))
	defer u1()
	defer u2()
	r1.wait(t, 1)
	r2.wait(t, 1)

	b.Publish(b.Mark(), habitsNamed("x"))
	r1.wait(t, 1)
	r2.wait(t, 1)

	if len(r1.last()) != 1 || len(r2.last()) != 1 {
		t.Error("published list did not reach both listeners")
	}
}

func TestBroker_DeliveriesAreCopies(t *testing.T) {
	b := NewBroker(nil)
	source := habitsNamed("a")
	source[0].Logs["2026-10-16"] = models.LogEntry{Value: 1}

	var got []models.Habit
	unsub, _ := b.Subscribe(func(h []models.Habit) { got = h }, staticLoad(b, source))
	defer unsub()

	got[0].Logs["2026-10-16"] = models.LogEntry{Value: 99}
	got[0].Title = "changed"

	if source[0].Logs["2026-10-16"].Value != 1 || source[0].Title != "a" {
		t.Error("listener mutation leaked into the published list")
	}
}

func TestBroker_DropsStaleGenerations(t *testing.T) {
	b := NewBroker(nil)
	r := newRecorder()

	stale := b.Mark()
	unsub, _ := b.Subscribe(r.listener, staticLoad(b, habitsNamed("fresh")))
	defer unsub()
	r.wait(t, 1)

	b.Publish(stale, habitsNamed("stale", "list"))
	b.Publish(b.Mark(), habitsNamed("newest"))
	r.wait(t, 1)

	if got := r.last(); len(got) != 1 || got[0].Title != "newest" {
		t.Errorf("last delivery = %v, want the newest list", got)
	}
	select {
	case <-r.calls:
		t.Error("a stale list was delivered after a newer one")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_UnsubscribeIsIdempotentAndStopsFeed(t *testing.T) {
	feed := &countingFeed{}
	b := NewBroker(feed)

	u1, _ := b.Subscribe(func([]models.Habit) {}, staticLoad(b, nil))
	u2, _ := b.Subscribe(func([]models.Habit) {}, staticLoad(b, nil))

	if feed.starts.Load() != 1 {
		t.Fatalf("feed started %d times, want 1", feed.starts.Load())
	}

	u1()
	u1()
	if b.Len() != 1 {
		t.Fatalf("Len() = %d after one unsubscribe, want 1", b.Len())
	}
	if feed.stops.Load() != 0 {
		t.Fatal("feed stopped while a listener remained")
	}

	u2()
	if feed.stops.Load() != 1 {
		t.Errorf("feed stopped %d times, want 1", feed.stops.Load())
	}

	u3, _ := b.Subscribe(func([]models.Habit) {}, staticLoad(b, nil))
	defer u3()
	if feed.starts.Load() != 2 {
		t.Errorf("feed should restart for a new listener, starts = %d", feed.starts.Load())
	}
}

func TestBroker_NoDeliveryAfterUnsubscribe(t *testing.T) {
	b := NewBroker(nil)
	r := newRecorder()

	unsub, _ := b.Subscribe(r.listener, staticLoad(b, nil))
	r.wait(t, 1)
	unsub()

	b.Publish(b.Mark(), habitsNamed("late"))
	select {
	case <-r.calls:
		t.Error("listener called after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_LoadErrorUnregisters(t *testing.T) {
	feed := &countingFeed{}
	b := NewBroker(feed)

	_, err := b.Subscribe(func([]models.Habit) {}, func() (uint64, []models.Habit, error) {
		return 0, nil, errors.New("disk gone")
	})
	if err == nil {
		t.Fatal("Subscribe should return the load error")
	}
	if b.Len() != 0 || feed.stops.Load() != 1 {
		t.Error("failed subscription left a listener or a running feed behind")
	}
}

func TestBroker_Close(t *testing.T) {
	feed := &countingFeed{}
	b := NewBroker(feed)
	unsub, _ := b.Subscribe(func([]models.Habit) {}, staticLoad(b, nil))

	b.Close()
	if b.Len() != 0 || feed.stops.Load() != 1 {
		t.Error("Close should drop listeners and stop the feed")
	}
	unsub()
	if feed.stops.Load() != 1 {
		t.Error("unsubscribe after Close must not stop the feed again")
	}
}
