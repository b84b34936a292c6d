package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lib/pq"

	"scorecard-insights-go/internal/logger"
)

// PostgresSource listens on a NOTIFY channel populated by the change trigger.
type PostgresSource struct {
	dsn     string
	channel string
	log     *logger.Logger
}

func NewPostgresSource(dsn, channel string, log *logger.Logger) *PostgresSource {
	return &PostgresSource{dsn: dsn, channel: channel, log: log.Component("pg-listener")}
}

type connResult struct {
	conn *pq.ListenerConn
	err  error
}

// Subscribe opens a dedicated connection and issues LISTEN. ctx bounds the
// whole handshake.
func (s *PostgresSource) Subscribe(ctx context.Context) (Stream, error) {
	notifications := make(chan *pq.Notification, 32)

	resCh := make(chan connResult, 1)
	go func() {
		conn, err := pq.NewListenerConn(s.dsn, notifications)
		if err != nil {
			resCh <- connResult{err: err}
			return
		}
		if _, err := conn.Listen(s.channel); err != nil {
			conn.Close()
			resCh <- connResult{err: err}
			return
		}
		resCh <- connResult{conn: conn}
	}()

	select {
	case <-ctx.Done():
		// the handshake may still finish; close whatever it produces
		go func() {
			if res := <-resCh; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case res := <-resCh:
		if res.err != nil {
			return nil, fmt.Errorf("listen on %s: %w", s.channel, res.err)
		}
		st := &pgStream{conn: res.conn, events: make(chan Event, 32), done: make(chan struct{})}
		go st.pump(notifications, s.log)
		return st, nil
	}
}

type pgStream struct {
	conn   *pq.ListenerConn
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (st *pgStream) Events() <-chan Event { return st.events }

func (st *pgStream) Err() error { return st.conn.Err() }

func (st *pgStream) Close() error {
	var err error
	st.once.Do(func() {
		close(st.done)
		err = st.conn.Close()
	})
	return err
}

// pump translates notifications until the connection drops, which closes the
// notification channel.
func (st *pgStream) pump(notifications <-chan *pq.Notification, log *logger.Logger) {
	defer close(st.events)
	for n := range notifications {
		ev, err := ParseNotification(n.Extra)
		if err != nil {
			log.WithError(err).WithField("payload", n.Extra).Warn("ignoring malformed notification")
			continue
		}
		select {
		case st.events <- ev:
		case <-st.done:
			// keep draining until the closed connection closes the channel
		}
	}
}

// ParseNotification decodes a trigger payload. The id is kept as text whatever
// its column type.
func ParseNotification(payload string) (Event, error) {
	var raw struct {
		Table string          `json:"table"`
		Op    string          `json:"op"`
		ID    json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Event{}, fmt.Errorf("decode notification: %w", err)
	}
	if raw.Table == "" || raw.Op == "" {
		return Event{}, fmt.Errorf("notification missing table or op")
	}
	ev := Event{Table: raw.Table, Op: raw.Op}
	if len(raw.ID) > 0 && string(raw.ID) != "null" {
		var s string
		if err := json.Unmarshal(raw.ID, &s); err == nil {
			ev.ID = s
		} else {
			ev.ID = string(raw.ID)
		}
	}
	return ev, nil
}
