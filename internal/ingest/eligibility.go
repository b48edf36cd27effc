// Package ingest discovers completed platform calls, enriches their
// transcripts and reconciles customers, calls and events in the store.
package ingest

import "callcenter/internal/voiceagent"

// FilterEligible keeps ended calls that have a phone number on either side.
//
// List responses carry no transcript, so this is only the coarse pass; the
// driver re-fetches each survivor before deciding on transcript content.
func FilterEligible(calls []voiceagent.CallRecord) []voiceagent.CallRecord {
	out := make([]voiceagent.CallRecord, 0, len(calls))
	for _, c := range calls {
		if c.Status != voiceagent.CallStatusEnded {
			continue
		}
		if c.PhoneNumber() == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}
