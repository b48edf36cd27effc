package calls

import "callcenter/internal/voiceagent"

// StartCallRequest is an outbound call placed from the dashboard.
type StartCallRequest struct {
	FromNumber   string `json:"from_number"`
	ToNumber     string `json:"to_number"`
	AgentID      string `json:"agent_id,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
}

// ListRequest filters the platform call list. Zero values mean no filter
// beyond the configured target agents.
type ListRequest struct {
	AgentIDs []string                `json:"agent_ids,omitempty"`
	Statuses []voiceagent.CallStatus `json:"statuses,omitempty"`
	Limit    int                     `json:"limit,omitempty"`
	Offset   int                     `json:"offset,omitempty"`
}

// Call is a platform call as shown on the dashboard.
type Call struct {
	voiceagent.CallRecord
	DurationSeconds    int     `json:"duration_seconds"`
	PreferredRecording string  `json:"best_recording_url,omitempty"`
	TotalCost          float64 `json:"total_cost"`
}

func view(c voiceagent.CallRecord) Call {
	return Call{
		CallRecord:         c,
		DurationSeconds:    c.DurationSeconds(),
		PreferredRecording: c.BestRecordingURL(),
		TotalCost:          c.TotalCost(),
	}
}

func views(in []voiceagent.CallRecord) []Call {
	out := make([]Call, 0, len(in))
	for _, c := range in {
		out = append(out, view(c))
	}
	return out
}
