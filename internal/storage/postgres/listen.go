package postgres

import (
	"context"
	"sync"
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

func (s *Store) Subscribe(ctx context.Context, fn storage.Listener) (storage.Unsubscribe, error) {
	return s.broker.Subscribe(fn, func() (uint64, []models.Habit, error) {
		gen := s.broker.Mark()
		habits, err := s.listHabits(ctx, s.db)
		return gen, habits, classify("Subscribe", err)
	})
}

// notifier relays NOTIFY events for the store's scope to the broker. Every
// notification and every reconnect triggers a fresh listing, since
// notifications sent while disconnected are lost.
type notifier struct {
	store *Store

	mu       sync.Mutex
	listener *pq.Listener
	cancel   context.CancelFunc
	done     chan struct{}
}

func newNotifier(s *Store) *notifier {
	return &notifier{store: s}
}

func (n *notifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		return
	}

	listener := pq.NewListener(n.store.connStr, minReconnectInterval, maxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("remote change feed error", "event", ev, "error", err)
			}
		})

	ctx, cancel := context.WithCancel(context.Background())
	n.listener = listener
	n.cancel = cancel
	n.done = make(chan struct{})
	go n.run(ctx, listener, n.done)
}

func (n *notifier) Stop() {
	n.mu.Lock()
	listener, cancel, done := n.listener, n.cancel, n.done
	n.listener, n.cancel, n.done = nil, nil, nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
		// Closing unblocks a Listen still waiting for the server.
		listener.Close()
		<-done
	}
}

func (n *notifier) run(ctx context.Context, listener *pq.Listener, done chan struct{}) {
	defer close(done)

	if err := listener.Listen(constants.NotifyChannel); err != nil {
		if ctx.Err() == nil {
			logger.Error("failed to listen for remote changes", "error", err)
		}
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-listener.Notify:
			// A nil notification means the connection was re-established.
			if ev != nil && ev.Extra != n.store.scope {
				continue
			}
			n.publish(ctx)
		case <-ticker.C:
			if err := listener.Ping(); err != nil {
				logger.Debug("remote change feed ping failed", "error", err)
			}
		}
	}
}

func (n *notifier) publish(ctx context.Context) {
	gen := n.store.broker.Mark()
	habits, err := n.store.listHabits(ctx, n.store.db)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("failed to reload remote habits for subscribers", "error", classify("Subscribe", err))
		}
		return
	}
	n.store.broker.Publish(gen, habits)
}
