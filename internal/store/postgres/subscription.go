package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stacklok/record-sync/database"
	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/store"
)

// notification is the JSON document the schema trigger publishes.
type notification struct {
	Type    store.ChangeType `json:"type"`
	Table   string           `json:"table"`
	OwnerID string           `json:"owner_id"`
	Origin  string           `json:"origin"`
	New     *record.Record   `json:"new"`
	Old     *record.Record   `json:"old"`
}

func decodeNotification(payload string) (*notification, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return nil, fmt.Errorf("failed to decode change notification: %w", err)
	}
	switch n.Type {
	case store.ChangeInsert, store.ChangeUpdate, store.ChangeDelete:
	default:
		return nil, fmt.Errorf("unknown change type %q", n.Type)
	}
	return &n, nil
}

func (n *notification) change() store.RemoteChange {
	return store.RemoteChange{Type: n.Type, New: n.New, Old: n.Old, Origin: n.Origin}
}

// subscription holds a dedicated connection taken out of the pool for the
// lifetime of the LISTEN.
type subscription struct {
	conn    *pgx.Conn
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	closing chan struct{}
	// delivering is set while onChange runs on the listener goroutine.
	delivering atomic.Bool
}

// Subscribe listens for changes to rows of table owned by ownerID. Change
// notifications omit record payloads. onStatus receives StatusConnected once
// listening and StatusError if the connection later fails; a failed
// subscription is finished and must be replaced by a new Subscribe call.
func (s *Store) Subscribe(
	ctx context.Context,
	ownerID, table string,
	onChange func(store.RemoteChange),
	onStatus func(store.SubscriptionStatus, error),
) (store.Subscription, error) {
	pooled, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	conn := pooled.Hijack()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{database.ChangesChannel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("failed to listen on %s: %w", database.ChangesChannel, err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		conn:    conn,
		cancel:  cancel,
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	onStatus(store.StatusConnected, nil)

	go sub.run(listenCtx, ownerID, table, onChange, onStatus)
	return sub, nil
}

func (sub *subscription) run(
	ctx context.Context,
	ownerID, table string,
	onChange func(store.RemoteChange),
	onStatus func(store.SubscriptionStatus, error),
) {
	err := sub.listen(ctx, ownerID, table, onChange)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = sub.conn.Close(closeCtx)
	cancel()
	close(sub.done)

	// Reported after done is closed so the callback may call Close.
	if err != nil {
		onStatus(store.StatusError, err)
	}
}

// listen delivers matching notifications until the connection fails or the
// subscription is closed. It returns nil after Close.
func (sub *subscription) listen(
	ctx context.Context,
	ownerID, table string,
	onChange func(store.RemoteChange),
) error {
	for {
		n, err := sub.conn.WaitForNotification(ctx)
		if err != nil {
			select {
			case <-sub.closing:
				return nil
			default:
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if n.Channel != database.ChangesChannel {
			continue
		}

		decoded, err := decodeNotification(n.Payload)
		if err != nil {
			slog.Warn("Ignoring malformed change notification", "error", err)
			continue
		}
		if decoded.Table != table || decoded.OwnerID != ownerID {
			continue
		}
		sub.delivering.Store(true)
		onChange(decoded.change())
		sub.delivering.Store(false)
	}
}

// Close stops listening and releases the connection. It waits for the
// listener goroutine to finish, except when called from onChange, where the
// goroutine exits after the callback returns.
func (sub *subscription) Close() error {
	sub.once.Do(func() {
		close(sub.closing)
		sub.cancel()
	})
	if sub.delivering.Load() {
		return nil
	}
	<-sub.done
	return nil
}
