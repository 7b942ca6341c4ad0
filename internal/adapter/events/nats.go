package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
)

// subjectPrefix namespaces session events on the NATS subject space.
const subjectPrefix = "charging.session"

// NATSPublisher publishes session lifecycle events to NATS, best-effort:
// publish failures are logged, never fatal, since sessions are
// authoritative in the document store regardless of whether the event
// landed.
type NATSPublisher struct {
	conn *nats.Conn
	log  *zap.Logger
}

func NewNATSPublisher(url string, log *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info("connected to NATS for session event publishing", zap.String("url", url))
	return &NATSPublisher{conn: nc, log: log}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event ports.SessionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", subjectPrefix, event.State)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn("failed to publish session event",
			zap.String("session_id", event.SessionID),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

var _ ports.SessionEventPublisher = (*NATSPublisher)(nil)
