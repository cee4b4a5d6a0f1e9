// Package events publishes dbflux lifecycle events over NATS so other
// services can react to the engine coming up, shutting down, or failing
// commands. The notifier is optional throughout
package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fluxorio/dbflux/pkg/logging"
)

// Subjects published by the notifier
const (
	SubjectReady         = "dbflux.ready"
	SubjectClosed        = "dbflux.closed"
	SubjectCommandFailed = "dbflux.command.failed"
)

// Event is the wire payload for every published subject
type Event struct {
	Subject   string                 `json:"subject"`
	Timestamp time.Time              `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Notifier publishes lifecycle events to a NATS connection it does not own.
// Publishing is best-effort: failures are logged, never propagated
type Notifier struct {
	conn   *nats.Conn
	logger logging.Logger
}

// NewNotifier creates a notifier over an established NATS connection.
// logger may be nil
func NewNotifier(conn *nats.Conn, logger logging.Logger) *Notifier {
	return &Notifier{
		conn:   conn,
		logger: logging.OrNop(logger),
	}
}

// Publish sends an event on subject. Nil-safe so callers can hold an
// optional *Notifier without guards
func (n *Notifier) Publish(subject string, fields map[string]interface{}) {
	if n == nil || n.conn == nil {
		return
	}

	payload, err := json.Marshal(Event{
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Fields:    fields,
	})
	if err != nil {
		n.logger.Warnf("encode event %s: %v", subject, err)
		return
	}
	if err := n.conn.Publish(subject, payload); err != nil {
		n.logger.Warnf("publish event %s: %v", subject, err)
	}
}
