// Package calls is the dashboard's view of platform calls: listing, starting
// and ending them on behalf of staff.
package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"callcenter/internal/auth"
	"callcenter/internal/voiceagent"
	"callcenter/pkg/logger"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 1000

	metadataSource = "dashboard"
)

var ErrInvalidArgument = errors.New("calls: invalid argument")

// Platform is the slice of voiceagent.Platform used here.
type Platform interface {
	ListCalls(ctx context.Context, f voiceagent.ListCallsFilter) ([]voiceagent.CallRecord, error)
	GetCall(ctx context.Context, callID string) (voiceagent.CallRecord, error)
	EndCall(ctx context.Context, callID string) error
	CreatePhoneCall(ctx context.Context, req voiceagent.CreatePhoneCallRequest) (voiceagent.CallRecord, error)
}

// CallerContext supplies what is known about a number before dialing it.
// *customers.Service implements it.
type CallerContext interface {
	ContextForNextCall(ctx context.Context, phone string) (string, error)
}

type Service struct {
	platform Platform
	contexts CallerContext
	agentIDs []string
}

// NewService scopes active-call listings to agentIDs; empty means all agents.
func NewService(p Platform, contexts CallerContext, agentIDs []string) *Service {
	return &Service{platform: p, contexts: contexts, agentIDs: agentIDs}
}

func (s *Service) List(ctx context.Context, req ListRequest) ([]Call, error) {
	f := voiceagent.ListCallsFilter{
		AgentIDs: req.AgentIDs,
		Statuses: req.Statuses,
		Limit:    clampLimit(req.Limit),
		Offset:   req.Offset,
	}
	if f.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrInvalidArgument)
	}
	out, err := s.platform.ListCalls(ctx, f)
	if err != nil {
		return nil, err
	}
	return views(out), nil
}

// ActiveCalls lists ongoing calls of the target agents across all pages.
func (s *Service) ActiveCalls(ctx context.Context) ([]Call, error) {
	var out []voiceagent.CallRecord
	err := voiceagent.Paginate(ctx, s.platform, voiceagent.ListCallsFilter{
		AgentIDs: s.agentIDs,
		Statuses: []voiceagent.CallStatus{voiceagent.CallStatusOngoing},
		Limit:    100,
	}, func(batch []voiceagent.CallRecord) error {
		out = append(out, batch...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views(out), nil
}

// CompletedCalls returns the most recent ended calls of the target agents.
func (s *Service) CompletedCalls(ctx context.Context, limit int) ([]Call, error) {
	return s.List(ctx, ListRequest{
		AgentIDs: s.agentIDs,
		Statuses: []voiceagent.CallStatus{voiceagent.CallStatusEnded},
		Limit:    limit,
	})
}

func (s *Service) Get(ctx context.Context, callID string) (Call, error) {
	if strings.TrimSpace(callID) == "" {
		return Call{}, fmt.Errorf("%w: call id is required", ErrInvalidArgument)
	}
	c, err := s.platform.GetCall(ctx, callID)
	if err != nil {
		return Call{}, err
	}
	return view(c), nil
}

func (s *Service) End(ctx context.Context, callID string) error {
	if strings.TrimSpace(callID) == "" {
		return fmt.Errorf("%w: call id is required", ErrInvalidArgument)
	}
	return s.platform.EndCall(ctx, callID)
}

// Start places an outbound call. The destination's known history is passed
// to the agent as the customer_context dynamic variable; failing to build it
// does not block the call.
func (s *Service) Start(ctx context.Context, req StartCallRequest) (Call, error) {
	from := voiceagent.DialNumber(req.FromNumber)
	to := voiceagent.DialNumber(req.ToNumber)
	if from == "" || to == "" {
		return Call{}, fmt.Errorf("%w: from_number and to_number are required", ErrInvalidArgument)
	}
	initiatedBy, _ := auth.UserID(ctx)

	body := voiceagent.CreatePhoneCallRequest{
		FromNumber: from,
		ToNumber:   to,
		AgentID:    req.AgentID,
		Metadata: map[string]any{
			"source":       metadataSource,
			"initiated_by": initiatedBy,
			"country_code": voiceagent.CountryCode(to),
		},
	}
	vars := map[string]string{}
	if name := strings.TrimSpace(req.CustomerName); name != "" {
		body.Metadata["customer_name"] = name
		vars["customer_name"] = name
	}
	if s.contexts != nil {
		text, err := s.contexts.ContextForNextCall(ctx, to)
		if err != nil {
			logger.From(ctx).Warn("caller context unavailable", slog.Any("err", err))
		} else if text != "" {
			vars["customer_context"] = text
		}
	}
	if len(vars) > 0 {
		body.DynamicVariables = vars
	}

	c, err := s.platform.CreatePhoneCall(ctx, body)
	if err != nil {
		return Call{}, err
	}
	return view(c), nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > MaxListLimit:
		return MaxListLimit
	default:
		return n
	}
}
