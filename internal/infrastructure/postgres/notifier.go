package postgres

import (
	"context"
	"fmt"
)

// DefaultInvalidationChannel is the NOTIFY channel carrying invalidated view keys.
const DefaultInvalidationChannel = "todo_invalidated"

// Notifier publishes invalidation keys with pg_notify so that every process
// listening on the channel learns about a mutation, not just the one that made it.
type Notifier struct {
	db      *DB
	channel string
}

func NewNotifier(db *DB, channel string) *Notifier {
	if channel == "" {
		channel = DefaultInvalidationChannel
	}
	return &Notifier{db: db, channel: channel}
}

func (n *Notifier) Invalidate(ctx context.Context, key string) error {
	if _, err := n.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.channel, key); err != nil {
		return fmt.Errorf("failed to notify %s: %w", n.channel, err)
	}
	return nil
}
