package customers

import (
	"time"

	"callcenter/internal/enrichment"
)

// Customer is one caller, keyed by normalized phone number.
//
// Invariants:
// - At most one Customer per normalized phone.
// - Name, email and company are filled only while empty; later extractions never overwrite them.
type Customer struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phone_number"`

	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`

	TotalCalls   int        `json:"total_calls"`
	LastCallDate *time.Time `json:"last_call_date,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type CallStatus string

const (
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
	CallStatusNoAnswer  CallStatus = "no-answer"
)

// Call is a processed platform call. Append-only.
type Call struct {
	ID             string     `json:"id"`
	CustomerID     string     `json:"customer_id"`
	PhoneNumber    string     `json:"phone_number"`
	ExternalCallID string     `json:"external_call_id"`
	Date           time.Time  `json:"date"`
	Duration       int        `json:"duration"` // seconds
	Transcript     string     `json:"transcript"`
	Status         CallStatus `json:"status"`

	ExtractedData enrichment.ExtractedCallData `json:"extracted_data"`
}

type EventStatus string

const (
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

const DefaultEventType = "appointment"

// Event is a persisted ScheduledEvent linked to the call it came from.
type Event struct {
	ID          string `json:"id"`
	CustomerID  string `json:"customer_id"`
	CallID      string `json:"call_id"`
	PhoneNumber string `json:"phone_number"`

	Date            string      `json:"date,omitempty"`
	Time            string      `json:"time,omitempty"`
	Timezone        string      `json:"timezone,omitempty"`
	DurationMinutes int         `json:"duration,omitempty"`
	Type            string      `json:"type"`
	Description     string      `json:"description"`
	Location        string      `json:"location,omitempty"`
	Status          EventStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
}

// EventFromExtraction maps an extracted event onto its persisted form.
func EventFromExtraction(e enrichment.ScheduledEvent) Event {
	typ := e.Type
	if typ == "" {
		typ = DefaultEventType
	}
	return Event{
		Date:            e.Date,
		Time:            e.Time,
		Timezone:        e.Timezone,
		DurationMinutes: int(e.DurationMinutes),
		Type:            typ,
		Description:     e.Description,
		Location:        e.Location,
		Status:          EventStatusScheduled,
	}
}
