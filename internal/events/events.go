package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATS subjects for domain events.
const (
	SubjectSubmissionAccepted = "codeclash.submissions.accepted"
	SubjectSessionCompleted   = "codeclash.sessions.completed"
)

// SubmissionAccepted is emitted when a grading attempt passes every official
// case in the freeform or contest context.
type SubmissionAccepted struct {
	SubmissionID uint      `json:"submission_id"`
	UserID       uint      `json:"user_id"`
	ProblemID    uint      `json:"problem_id"`
	Origin       string    `json:"origin"`
	AcceptedAt   time.Time `json:"accepted_at"`
}

// SessionCompleted is emitted when a timed session transitions to completed.
type SessionCompleted struct {
	SessionKind string    `json:"session_kind"`
	SessionID   uint      `json:"session_id"`
	UserID      uint      `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// Publisher emits domain events. Services depend on this interface so tests
// can observe emissions without a broker.
type Publisher interface {
	SubmissionAccepted(event SubmissionAccepted)
	SessionCompleted(event SessionCompleted)
}

type natsPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewNATSPublisher builds a Publisher backed by a NATS connection. Event
// delivery is best effort: failures are logged, not surfaced to the request.
func NewNATSPublisher(conn *nats.Conn, logger zerolog.Logger) Publisher {
	return &natsPublisher{
		conn:   conn,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *natsPublisher) SubmissionAccepted(event SubmissionAccepted) {
	p.publish(SubjectSubmissionAccepted, event)
}

func (p *natsPublisher) SessionCompleted(event SessionCompleted) {
	p.publish(SubjectSessionCompleted, event)
}

func (p *natsPublisher) publish(subject string, event interface{}) {
	if p.conn == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("subject", subject).Msg("failed to encode event")
		return
	}

	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}

// NopPublisher discards all events.
type NopPublisher struct{}

// SubmissionAccepted implements Publisher.
func (NopPublisher) SubmissionAccepted(SubmissionAccepted) {}

// SessionCompleted implements Publisher.
func (NopPublisher) SessionCompleted(SessionCompleted) {}
