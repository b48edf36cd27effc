package voiceagent

import (
	"math"
	"strings"
	"time"
)

// CallStatus is the platform-side lifecycle of a call.
type CallStatus string

const (
	CallStatusRegistered CallStatus = "registered"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusOngoing    CallStatus = "ongoing"
	CallStatusEnded      CallStatus = "ended"
	CallStatusError      CallStatus = "error"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// CallRecord is a call as reported by the voice-agent platform.
// It is read-only from this system's point of view.
//
// Transcript is only populated by GetCall; list responses omit it.
type CallRecord struct {
	CallID    string     `json:"call_id"`
	AgentID   string     `json:"agent_id,omitempty"`
	AgentName string     `json:"agent_name,omitempty"`
	CallType  string     `json:"call_type,omitempty"`
	Direction Direction  `json:"direction,omitempty"`
	Status    CallStatus `json:"call_status,omitempty"`

	FromNumber string `json:"from_number,omitempty"`
	ToNumber   string `json:"to_number,omitempty"`

	// Epoch milliseconds.
	StartTimestamp int64 `json:"start_timestamp,omitempty"`
	EndTimestamp   int64 `json:"end_timestamp,omitempty"`
	DurationMS     int64 `json:"duration_ms,omitempty"`

	Transcript *string `json:"transcript,omitempty"`

	RecordingURL                     string `json:"recording_url,omitempty"`
	RecordingMultiChannelURL         string `json:"recording_multi_channel_url,omitempty"`
	ScrubbedRecordingURL             string `json:"scrubbed_recording_url,omitempty"`
	ScrubbedRecordingMultiChannelURL string `json:"scrubbed_recording_multi_channel_url,omitempty"`

	Metadata            map[string]any `json:"metadata,omitempty"`
	Cost                *CallCost      `json:"call_cost,omitempty"`
	DisconnectionReason string         `json:"disconnection_reason,omitempty"`
	Analysis            *CallAnalysis  `json:"call_analysis,omitempty"`
}

type CallCost struct {
	TotalCost    float64       `json:"total_cost,omitempty"`
	ProductCosts []ProductCost `json:"product_costs,omitempty"`
}

type ProductCost struct {
	Product string  `json:"product"`
	Cost    float64 `json:"cost"`
}

type CallAnalysis struct {
	CallSummary    string `json:"call_summary,omitempty"`
	UserSentiment  string `json:"user_sentiment,omitempty"`
	CallSuccessful *bool  `json:"call_successful,omitempty"`
}

// Normalize fixes up fields the platform reports inconsistently:
// status casing and a missing duration when both timestamps are present.
func (c CallRecord) Normalize() CallRecord {
	c.Status = CallStatus(strings.ToLower(strings.TrimSpace(string(c.Status))))
	c.Direction = Direction(strings.ToLower(strings.TrimSpace(string(c.Direction))))
	c.FromNumber = strings.TrimSpace(c.FromNumber)
	c.ToNumber = strings.TrimSpace(c.ToNumber)
	if c.DurationMS <= 0 && c.StartTimestamp > 0 && c.EndTimestamp > c.StartTimestamp {
		c.DurationMS = c.EndTimestamp - c.StartTimestamp
	}
	return c
}

func (c CallRecord) StartedAt() time.Time {
	if c.StartTimestamp <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.StartTimestamp).UTC()
}

func (c CallRecord) EndedAt() time.Time {
	if c.EndTimestamp <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.EndTimestamp).UTC()
}

// DurationSeconds rounds the millisecond duration to whole seconds.
func (c CallRecord) DurationSeconds() int {
	if c.DurationMS <= 0 {
		return 0
	}
	return int(math.Round(float64(c.DurationMS) / 1000))
}

// PhoneNumber is the customer-facing number: to_number, else from_number.
func (c CallRecord) PhoneNumber() string {
	if c.ToNumber != "" {
		return c.ToNumber
	}
	return c.FromNumber
}

// TranscriptText returns the trimmed transcript, "" when absent.
func (c CallRecord) TranscriptText() string {
	if c.Transcript == nil {
		return ""
	}
	return strings.TrimSpace(*c.Transcript)
}

// BestRecordingURL prefers the plain recording, then multi-channel, then the
// scrubbed variants.
func (c CallRecord) BestRecordingURL() string {
	for _, u := range []string{
		c.RecordingURL,
		c.RecordingMultiChannelURL,
		c.ScrubbedRecordingURL,
		c.ScrubbedRecordingMultiChannelURL,
	} {
		if u != "" {
			return u
		}
	}
	return ""
}

func (c CallRecord) TotalCost() float64 {
	if c.Cost == nil {
		return 0
	}
	return c.Cost.TotalCost
}

// ListCallsFilter maps onto the list-calls filter_criteria body.
type ListCallsFilter struct {
	AgentIDs []string
	Statuses []CallStatus
	Limit    int
	Offset   int
}

// Agent is a voice assistant configured on the platform.
type Agent struct {
	AgentID                 string         `json:"agent_id"`
	AgentName               string         `json:"agent_name,omitempty"`
	VoiceID                 string         `json:"voice_id,omitempty"`
	Language                string         `json:"language,omitempty"`
	LLMWebsocketURL         string         `json:"llm_websocket_url,omitempty"`
	ResponseEngine          map[string]any `json:"response_engine,omitempty"`
	Responsiveness          *float64       `json:"responsiveness,omitempty"`
	InterruptionSensitivity *float64       `json:"interruption_sensitivity,omitempty"`
	EnableTranscription     *bool          `json:"enable_transcription,omitempty"`
	EnableRecording         *bool          `json:"enable_recording,omitempty"`
	WebhookURL              string         `json:"webhook_url,omitempty"`
	Metadata                map[string]any `json:"metadata,omitempty"`
	LastModification        int64          `json:"last_modification_timestamp,omitempty"`
}

// AgentUpdate is a partial agent body; only set keys are sent.
type AgentUpdate map[string]any

type PhoneNumber struct {
	PhoneNumberID   string `json:"phone_number_id,omitempty"`
	PhoneNumber     string `json:"phone_number"`
	PrettyNumber    string `json:"phone_number_pretty,omitempty"`
	Nickname        string `json:"nickname,omitempty"`
	InboundAgentID  string `json:"inbound_agent_id,omitempty"`
	OutboundAgentID string `json:"outbound_agent_id,omitempty"`
	AreaCode        int    `json:"area_code,omitempty"`
	LastModified    int64  `json:"last_modification_timestamp,omitempty"`
}

type KnowledgeBase struct {
	KnowledgeBaseID   string                `json:"knowledge_base_id"`
	KnowledgeBaseName string                `json:"knowledge_base_name,omitempty"`
	Status            string                `json:"status,omitempty"`
	Sources           []KnowledgeBaseSource `json:"knowledge_base_sources,omitempty"`
	EnableAutoRefresh bool                  `json:"enable_auto_refresh,omitempty"`
	LastRefreshed     int64                 `json:"last_refreshed_timestamp,omitempty"`
}

type KnowledgeBaseSource struct {
	Type     string `json:"type"`
	SourceID string `json:"source_id,omitempty"`
	Filename string `json:"filename,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
	URL      string `json:"url,omitempty"`
	Title    string `json:"title,omitempty"`
}

// CreatePhoneCallRequest starts an outbound call.
type CreatePhoneCallRequest struct {
	FromNumber       string            `json:"from_number"`
	ToNumber         string            `json:"to_number"`
	AgentID          string            `json:"agent_id,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
	DynamicVariables map[string]string `json:"retell_llm_dynamic_variables,omitempty"`
}
