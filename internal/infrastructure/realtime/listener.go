package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// NotifyChannel is the Postgres channel the schema triggers publish to.
const NotifyChannel = "chat_api_conversation_events"

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// Listener consumes pg_notify payloads from the conversations change feed
// and forwards them into the hub. Reconnection is handled by lib/pq; a nil
// notification marks a reconnect, after which clients resync via the query
// layer.
type Listener struct {
	dsn string
	hub *Hub
	log zerolog.Logger

	pqListener *pq.Listener
	done       chan struct{}
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
}

func NewListener(dsn string, hub *Hub, log zerolog.Logger) *Listener {
	return &Listener{
		dsn:  dsn,
		hub:  hub,
		log:  log.With().Str("component", "realtime-listener").Logger(),
		done: make(chan struct{}),
	}
}

// Start opens the LISTEN connection and begins forwarding notifications.
// Safe to call multiple times - only the first call starts the listener.
func (l *Listener) Start(ctx context.Context) error {
	var startErr error
	l.startOnce.Do(func() {
		l.pqListener = pq.NewListener(l.dsn, minReconnectInterval, maxReconnectInterval, l.onConnEvent)
		if err := l.pqListener.Listen(NotifyChannel); err != nil {
			startErr = err
			return
		}
		l.wg.Add(1)
		go l.run(ctx)
		l.log.Info().Str("channel", NotifyChannel).Msg("realtime listener started")
	})
	return startErr
}

// Stop gracefully shuts down the listener.
// Safe to call multiple times - only the first call stops the listener.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
		l.wg.Wait()
		if l.pqListener != nil {
			if err := l.pqListener.Close(); err != nil {
				l.log.Warn().Err(err).Msg("failed to close pq listener")
			}
		}
		l.log.Info().Msg("realtime listener stopped")
	})
}

func (l *Listener) onConnEvent(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventConnected:
		l.log.Info().Msg("change feed connected")
	case pq.ListenerEventReconnected:
		l.log.Info().Msg("change feed reconnected")
	case pq.ListenerEventDisconnected:
		l.log.Warn().Err(err).Msg("change feed disconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		l.log.Warn().Err(err).Msg("change feed connection attempt failed")
	}
}

func (l *Listener) run(ctx context.Context) {
	defer l.wg.Done()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			l.log.Debug().Msg("context cancelled, shutting down listener")
			return
		case <-l.done:
			return
		case notification := <-l.pqListener.Notify:
			// nil signals a reconnect; notifications may have been missed
			if notification == nil {
				l.log.Debug().Msg("change feed resumed after reconnect")
				continue
			}
			l.handle(notification.Extra)
		case <-ping.C:
			if err := l.pqListener.Ping(); err != nil {
				l.log.Warn().Err(err).Msg("change feed ping failed")
			}
		}
	}
}

func (l *Listener) handle(payload string) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		l.log.Warn().Err(err).Str("payload", payload).Msg("malformed change feed payload")
		return
	}
	if event.Type == "" || event.OwnerID == "" {
		l.log.Warn().Str("payload", payload).Msg("change feed payload missing event or owner")
		return
	}
	l.hub.Publish(event)
}
