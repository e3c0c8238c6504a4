package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSPublisher implements Publisher using NATS
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher creates a new NATS-backed publisher
func NewNATSPublisher(natsURL, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(natsURL, nats.Name("forager"))
	if err != nil {
		return nil, err
	}

	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}, nil
}

// Close flushes pending messages and closes the NATS connection
func (n *NATSPublisher) Close() {
	if n.conn != nil {
		if err := n.conn.Drain(); err != nil {
			n.conn.Close()
		}
	}
}

// PublishTick publishes a step to <subject>.tick, and additionally to
// <subject>.food when the step consumed food.
func (n *NATSPublisher) PublishTick(ctx context.Context, event TickEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	for _, subject := range TickSubjects(n.subject, event) {
		if err := n.conn.Publish(subject, data); err != nil {
			n.logger.Error().Err(err).Str("subject", subject).Msg("Failed to publish tick")
			return err
		}
	}
	return nil
}

// PublishRunStatus publishes run status events to NATS
func (n *NATSPublisher) PublishRunStatus(ctx context.Context, event RunStatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	for _, subject := range StatusSubjects(n.subject, event) {
		if err := n.conn.Publish(subject, data); err != nil {
			n.logger.Error().Err(err).Str("subject", subject).Msg("Failed to publish run status")
			return err
		}
	}

	n.logger.Debug().
		Str("run_id", event.RunID).
		Str("state", event.State).
		Str("subject", n.subject).
		Msg("Published run status event")

	return nil
}

// TickSubjects lists the subjects a tick event is routed to.
func TickSubjects(base string, event TickEvent) []string {
	subjects := []string{base + ".tick"}
	if event.FoodRelocated {
		subjects = append(subjects, base+".food")
	}
	return subjects
}

// StatusSubjects lists the subjects a status event is routed to.
// Failures also go to <base>.error for alerting.
func StatusSubjects(base string, event RunStatusEvent) []string {
	subjects := []string{base + ".status"}
	if event.State == StateFailed {
		subjects = append(subjects, base+".error")
	}
	return subjects
}
