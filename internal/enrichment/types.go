package enrichment

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// IntentGeneral is used when the model gives no intent and for degraded records.
const IntentGeneral = "general"

// ExtractedCallData is the structured result of analysing one transcript.
type ExtractedCallData struct {
	CustomerName string `json:"customer_name,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Company      string `json:"company,omitempty"`

	Intent    string    `json:"intent"`
	Sentiment Sentiment `json:"sentiment"`
	Summary   string    `json:"summary"`

	KeyPoints       []string         `json:"key_points"`
	ActionItems     []string         `json:"action_items"`
	NextSteps       string           `json:"next_steps,omitempty"`
	ScheduledEvents []ScheduledEvent `json:"scheduled_events"`
	ImportantDates  []string         `json:"important_dates"`
	Deadlines       []string         `json:"deadlines"`

	Metadata map[string]any `json:"metadata"`
}

// Degraded reports whether the record came from the no-provider fallback.
func (d ExtractedCallData) Degraded() bool {
	v, _ := d.Metadata["degraded"].(bool)
	return v
}

// ScheduledEvent is an appointment or follow-up mentioned in a call.
type ScheduledEvent struct {
	Date            string  `json:"date,omitempty"` // YYYY-MM-DD
	Time            string  `json:"time,omitempty"`
	Timezone        string  `json:"timezone,omitempty"`
	DurationMinutes Minutes `json:"duration,omitempty"`
	Type            string  `json:"type,omitempty"`
	Description     string  `json:"description,omitempty"`
	Location        string  `json:"location,omitempty"`
}

// Minutes accepts a number, a numeric string or null; models send all three.
type Minutes int

func (m *Minutes) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "minutes"))
		n, err := strconv.Atoi(s)
		if err != nil {
			*m = 0
			return nil
		}
		*m = Minutes(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*m = Minutes(int(f))
	return nil
}

// Transcript is one call transcript submitted for question classification.
type Transcript struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionStat is how often one catalog question was asked across a batch.
type QuestionStat struct {
	Question   string  `json:"question"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CustomerHistory is the input for generating a greeting context.
type CustomerHistory struct {
	Name          string
	Company       string
	PreviousCalls []PriorCall
}

type PriorCall struct {
	Date    time.Time
	Intent  string
	Summary string
}
