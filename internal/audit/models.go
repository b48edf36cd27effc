package audit

import "time"

// Event is an immutable, append-only audit log record of a staff action.
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block critical flows on audit failures.
type Event struct {
	ID string `json:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type"`

	// ActorUserID is the authenticated staff member causing the event.
	ActorUserID string `json:"actor_user_id,omitempty"`
	ActorRole   string `json:"actor_role,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`

	// Target identifiers, depending on the event type.
	CallID     string `json:"call_id,omitempty"`
	AgentID    string `json:"agent_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`

	Message  string         `json:"message,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeCallStarted          EventType = "call_started"
	EventTypeCallEnded            EventType = "call_ended"
	EventTypeAgentCreated         EventType = "agent_created"
	EventTypeAgentUpdated         EventType = "agent_updated"
	EventTypeAgentDeleted         EventType = "agent_deleted"
	EventTypeTranscriptionEnabled EventType = "transcription_enabled"
	EventTypeCustomerDeleted      EventType = "customer_deleted"
	EventTypeIngestTriggered      EventType = "ingest_triggered"
)
