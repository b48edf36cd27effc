package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callcenter/internal/enrichment"
)

// ContextGenerator writes a short greeting context from a customer's history.
// Implementations never fail; they fall back to a fixed sentence.
type ContextGenerator interface {
	CustomerContext(ctx context.Context, h enrichment.CustomerHistory) string
}

// KnowledgeBase is everything the agent should know about a caller.
// Customer is nil for an unknown phone number.
type KnowledgeBase struct {
	Customer        *Customer `json:"customer"`
	ScheduledEvents []Event   `json:"scheduled_events"`
	CallHistory     []Call    `json:"call_history"`
	Context         string    `json:"context,omitempty"`
}

// KnowledgeBase looks the caller up by phone and assembles their events,
// recent calls and a plain-text context block.
func (s *Service) KnowledgeBase(ctx context.Context, phone string) (KnowledgeBase, error) {
	kb := KnowledgeBase{ScheduledEvents: []Event{}, CallHistory: []Call{}}
	c, err := s.FindByPhone(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		return kb, nil
	}
	if err != nil {
		return kb, err
	}
	kb.Customer = &c

	if kb.ScheduledEvents, err = s.CustomerEvents(ctx, c.ID); err != nil {
		return kb, err
	}
	if kb.CallHistory, err = s.CallHistory(ctx, c.ID, DefaultHistoryLimit); err != nil {
		return kb, err
	}
	if len(kb.ScheduledEvents) > 0 || len(kb.CallHistory) > 0 {
		kb.Context = buildContext(c, kb.ScheduledEvents, kb.CallHistory)
	}
	return kb, nil
}

// ContextForNextCall returns the knowledge-base context, extended with a
// generated greeting for repeat callers. Empty when nothing is known.
func (s *Service) ContextForNextCall(ctx context.Context, phone string) (string, error) {
	kb, err := s.KnowledgeBase(ctx, phone)
	if err != nil || kb.Context == "" {
		return "", err
	}
	if len(kb.CallHistory) == 0 || s.gen == nil {
		return kb.Context, nil
	}

	h := enrichment.CustomerHistory{Name: kb.Customer.Name, Company: kb.Customer.Company}
	for _, call := range kb.CallHistory {
		h.PreviousCalls = append(h.PreviousCalls, enrichment.PriorCall{
			Date:    call.Date,
			Intent:  call.ExtractedData.Intent,
			Summary: call.ExtractedData.Summary,
		})
	}
	return kb.Context + "\n\nAI-GENERATED CONTEXT:\n" + s.gen.CustomerContext(ctx, h), nil
}

const contextCallLimit = 5

func buildContext(c Customer, events []Event, calls []Call) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("CUSTOMER INFORMATION:")
	if c.Name != "" {
		line("- Name: %s", c.Name)
	}
	if c.Email != "" {
		line("- Email: %s", c.Email)
	}
	if c.Company != "" {
		line("- Company: %s", c.Company)
	}
	line("- Phone: %s", c.PhoneNumber)
	line("- Total Previous Calls: %d", c.TotalCalls)

	if len(events) == 0 {
		line("\n=== UPCOMING APPOINTMENTS ===")
		line("NONE - This customer has NO scheduled appointments on record.")
	} else {
		line("\n=== UPCOMING APPOINTMENTS (USE THESE EXACT DETAILS) ===")
		for i, e := range events {
			line("APPOINTMENT %d: %s", i+1, describeEvent(e))
			if d, ok := longDate(e.Date); ok {
				line("  - Full date: %s", d)
			}
			if e.Time != "" {
				line("  - Time: %s", e.Time)
			}
			if e.Description != "" {
				line("  - What: %s", e.Description)
			}
		}
		line("=== END OF APPOINTMENTS ===")
	}

	if len(calls) > 0 {
		line("\nPREVIOUS CALL HISTORY:")
		for i, call := range calls {
			if i == contextCallLimit {
				break
			}
			x := call.ExtractedData
			line("%d. Call on %s", i+1, call.Date.Format("Jan 2, 2006"))
			line("   Intent: %s", x.Intent)
			line("   Summary: %s", x.Summary)
			for _, e := range x.ScheduledEvents {
				if e.Date != "" && e.Time != "" {
					line("   - Scheduled: %s at %s", e.Date, e.Time)
				}
			}
			if len(x.ActionItems) > 0 {
				line("   Action Items: %s", strings.Join(x.ActionItems, ", "))
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeEvent(e Event) string {
	parts := make([]string, 0, 3)
	switch {
	case e.Description != "":
		parts = append(parts, e.Description)
	case e.Type != "":
		parts = append(parts, e.Type)
	default:
		parts = append(parts, DefaultEventType)
	}

	d, hasDate := longDate(e.Date)
	switch {
	case hasDate && e.Time != "":
		parts = append(parts, fmt.Sprintf("on %s at %s", d, e.Time))
	case hasDate:
		parts = append(parts, "on "+d)
	case e.Time != "":
		parts = append(parts, "at "+e.Time)
	}
	if e.Location != "" {
		parts = append(parts, "("+e.Location+")")
	}
	return strings.Join(parts, " ")
}

func longDate(date string) (string, bool) {
	if date == "" {
		return "", false
	}
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date, true
	}
	return t.Format("Monday, January 2, 2006"), true
}
