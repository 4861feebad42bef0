// Package events mirrors room broadcasts onto a NATS subject tree so other
// services (monitoring, analytics) can observe sessions without touching
// the websocket path.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/taiszocche92-glitch/backend/internal/models"
)

// Publisher fans a session event out to interested consumers. Publishing is
// fire-and-forget: a failed publish never blocks or fails the broadcast
// that triggered it.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, ev models.Event)
	Close()
}

// envelope is the wire shape on the subject tree.
type envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NATSPublisher publishes to <prefix>.<EVENT_TYPE>, e.g.
// session.events.TIMER_UPDATE.
type NATSPublisher struct {
	nc            *nats.Conn
	subjectPrefix string
}

// NewNATSPublisher connects to NATS with infinite reconnects, matching how
// the rest of the infrastructure treats the broker as eventually available.
func NewNATSPublisher(url, subjectPrefix string) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, subjectPrefix: subjectPrefix}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, sessionID string, ev models.Event) {
	env := envelope{
		EventID:   uuid.NewString(),
		EventType: string(ev.Type),
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Payload:   ev.Payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(ev.Type)).Msg("failed to marshal event envelope")
		return
	}

	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, ev.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("failed to publish session event")
	}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}

// Noop is the publisher used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, models.Event) {}
func (Noop) Close()                                        {}
