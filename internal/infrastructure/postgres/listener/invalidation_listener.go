package listener

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lib/pq"

	"todoapp/internal/domain/todo"
)

const (
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// InvalidationListener forwards keys received on a PostgreSQL NOTIFY channel
// to a local invalidator, so views served by this process go stale when
// another process mutates the table.
type InvalidationListener struct {
	connStr    string
	channel    string
	target     todo.Invalidator
	shutdownCh chan struct{}
	done       chan struct{}
}

// NewInvalidationListener creates a listener for the given channel.
func NewInvalidationListener(connStr, channel string, target todo.Invalidator) *InvalidationListener {
	return &InvalidationListener{
		connStr:    connStr,
		channel:    channel,
		target:     target,
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening for notifications in a background goroutine
func (l *InvalidationListener) Start(ctx context.Context) {
	go l.listen(ctx)
	log.Info("invalidation listener started", "channel", l.channel)
}

// Stop gracefully shuts down the listener
func (l *InvalidationListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	log.Info("invalidation listener stopped", "channel", l.channel)
}

func (l *InvalidationListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			log.Info("reconnecting to PostgreSQL for notifications", "channel", l.channel)
		}
	}
}

func (l *InvalidationListener) connectAndListen(ctx context.Context) {
	listener := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			log.Info("connected to notification channel", "channel", l.channel)
		case pq.ListenerEventDisconnected:
			log.Warn("disconnected from notification channel", "channel", l.channel, "err", err)
		case pq.ListenerEventReconnected:
			log.Info("reconnected to notification channel", "channel", l.channel)
		case pq.ListenerEventConnectionAttemptFailed:
			log.Error("notification connection attempt failed", "channel", l.channel, "err", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		log.Error("failed to listen", "channel", l.channel, "err", err)
		return
	}
	l.resync(ctx)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n := <-listener.Notify:
			if n == nil {
				// pq re-established the connection; anything sent in between is gone
				l.resync(ctx)
				continue
			}
			l.forward(ctx, n.Extra)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					log.Warn("listener ping failed", "channel", l.channel, "err", err)
				}
			}()
		}
	}
}

// resync marks the list stale. Notifications sent while we were not
// listening are lost, so every (re)connect counts as a change.
func (l *InvalidationListener) resync(ctx context.Context) {
	l.forward(ctx, todo.ListKey)
}

func (l *InvalidationListener) forward(ctx context.Context, key string) {
	if key == "" {
		key = todo.ListKey
	}
	if err := l.target.Invalidate(ctx, key); err != nil {
		log.Warn("failed to forward invalidation", "key", key, "err", err)
	}
}
