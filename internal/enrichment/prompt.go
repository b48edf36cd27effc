package enrichment

import (
	"encoding/json"
	"fmt"
	"strings"
)

const extractionSystem = "You are an expert at analyzing customer service call transcripts and extracting structured data. Always return valid JSON."

const extractionTemplate = `Analyze this customer service call transcript and extract key information, especially scheduling and appointment details.

TRANSCRIPT:
"""
%s
"""

Return a single JSON object with exactly these keys:
{
  "customer_name": "name if mentioned, otherwise null",
  "email": "email if mentioned, otherwise null",
  "phone": "phone number if mentioned, otherwise null",
  "company": "company name if mentioned, otherwise null",
  "intent": "primary reason for the call (support/sales/inquiry/appointment/complaint/scheduling/follow-up/other)",
  "sentiment": "positive, neutral or negative",
  "summary": "2-3 sentence summary of the call",
  "key_points": ["important point", ...],
  "action_items": ["action item", ...],
  "next_steps": "what should happen next",
  "scheduled_events": [
    {
      "date": "YYYY-MM-DD or null",
      "time": "time as mentioned, e.g. 10:30 AM, or null",
      "timezone": "timezone if mentioned, otherwise null",
      "duration": "duration in minutes as a number, otherwise null",
      "type": "appointment/meeting/call/follow-up/other",
      "description": "what the event is about",
      "location": "phone/video/in-person address if mentioned, otherwise null"
    }
  ],
  "important_dates": ["date mentioned", ...],
  "deadlines": ["deadline mentioned", ...],
  "metadata": {
    "products_mentioned": [],
    "issues_raised": [],
    "questions_asked": [],
    "pricing_mentioned": [],
    "promises_made": [],
    "provider_name": "doctor or provider name if mentioned",
    "appointment_type": "type of appointment if mentioned"
  }
}

RULES:
- Dates must be YYYY-MM-DD (e.g. "November 8, 2024" becomes "2024-11-08").
- Keep times in the form mentioned (e.g. "10:30 AM" or "14:00").
- If several time options are mentioned (e.g. "Wednesday at 10:30 AM or Thursday at 2 PM"), create a separate scheduled_events entry for EACH option, each with its own date and time.
- Always include scheduled_events, important_dates and deadlines, even when empty.
- The summary must be 2-3 sentences in your own words. Never copy the transcript.
- Extract only what is explicitly mentioned.`

func extractionPrompt(transcript string) string {
	return fmt.Sprintf(extractionTemplate, transcript)
}

const questionsSystem = "You are an expert at analyzing customer service transcripts and identifying specific questions. Always return valid JSON with the exact format requested."

const batchTemplate = `Analyze ALL the customer service call transcripts below and identify which questions from the provided list are asked or mentioned in EACH transcript.

TRANSCRIPTS:
"""
%s
"""

QUESTIONS LIST:
%s

Rules:
1. For EACH transcript, identify which questions from the list are asked, mentioned or discussed.
2. Match paraphrases and different wording by meaning, not exact text.
3. Return ONLY questions from the list, using their exact text.
4. Count a question at most once per transcript.
5. Include every transcript, with an empty array when nothing matches.

Return a JSON object in this format:
{
  "results": [
    {"transcript_id": "call_123", "questions": ["exact question from the list"]},
    {"transcript_id": "call_456", "questions": []}
  ]
}`

func batchPrompt(transcripts []Transcript, catalog []string) string {
	var b strings.Builder
	for i, t := range transcripts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- TRANSCRIPT %d (ID: %s) ---\n%s\n", i+1, t.ID, t.Text)
	}
	return fmt.Sprintf(batchTemplate, b.String(), catalogJSON(catalog))
}

const matchTemplate = `Analyze this customer service call transcript and identify which questions from the provided list are asked or mentioned.

TRANSCRIPT:
"""
%s
"""

QUESTIONS LIST:
%s

Match questions by meaning, including paraphrases. Return ONLY the exact text of matching questions from the list, each at most once.

Return a JSON object in this format:
{"questions": ["exact question from the list"]}

If nothing matches, return {"questions": []}`

func matchPrompt(transcript string, catalog []string) string {
	return fmt.Sprintf(matchTemplate, transcript, catalogJSON(catalog))
}

const contextSystem = "You are helping an AI assistant prepare for a customer call by providing relevant context from previous interactions."

func contextPrompt(h CustomerHistory) string {
	var b strings.Builder
	b.WriteString("Generate a brief context summary for an AI assistant about this repeat customer:\n\n")
	fmt.Fprintf(&b, "Customer: %s\n", orUnknown(h.Name))
	fmt.Fprintf(&b, "Company: %s\n\n", orUnknown(h.Company))
	b.WriteString("Previous Call History:\n")
	for i, c := range h.PreviousCalls {
		fmt.Fprintf(&b, "\nCall %d (%s):\n- Intent: %s\n- Summary: %s\n", i+1, c.Date.Format("Jan 2, 2006"), c.Intent, c.Summary)
	}
	b.WriteString(`
Generate a concise 2-3 sentence context the assistant should know when greeting this customer. Focus on:
1. What they needed before
2. Any outstanding issues or promises
3. How to personalize the greeting

Keep it conversational and actionable.`)
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

func catalogJSON(catalog []string) string {
	b, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}
