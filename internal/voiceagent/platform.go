// Package voiceagent is the adapter for the hosted voice-agent platform:
// calls, agents, phone numbers and knowledge bases over its REST API.
package voiceagent

import (
	"context"
	"errors"
)

// Platform is the provider-agnostic surface used by business logic.
//
// Rules:
//   - No raw HTTP calls to the platform outside this package.
//   - ListCalls never returns transcripts; use GetCall for full fidelity.
type Platform interface {
	ListCalls(ctx context.Context, f ListCallsFilter) ([]CallRecord, error)
	GetCall(ctx context.Context, callID string) (CallRecord, error)
	EndCall(ctx context.Context, callID string) error
	CreatePhoneCall(ctx context.Context, req CreatePhoneCallRequest) (CallRecord, error)

	ListAgents(ctx context.Context) ([]Agent, error)
	GetAgent(ctx context.Context, agentID string) (Agent, error)
	CreateAgent(ctx context.Context, body AgentUpdate) (Agent, error)
	UpdateAgent(ctx context.Context, agentID string, body AgentUpdate) (Agent, error)
	DeleteAgent(ctx context.Context, agentID string) error

	ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error)
	GetPhoneNumber(ctx context.Context, phoneNumberID string) (PhoneNumber, error)

	GetKnowledgeBase(ctx context.Context, knowledgeBaseID string) (KnowledgeBase, error)
}

var ErrInvalidArgument = errors.New("voiceagent: invalid argument")

// CallLister is the narrow read side used by pagination.
type CallLister interface {
	ListCalls(ctx context.Context, f ListCallsFilter) ([]CallRecord, error)
}

// Paginate walks the call list with offset/limit, advancing the offset by the
// size of each batch and stopping on a short or empty batch. visit is called
// once per batch; returning an error stops the walk.
func Paginate(ctx context.Context, src CallLister, f ListCallsFilter, visit func(batch []CallRecord) error) error {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := src.ListCalls(ctx, f)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := visit(batch); err != nil {
			return err
		}
		if len(batch) < f.Limit {
			return nil
		}
		f.Offset += len(batch)
	}
}

// EnableTranscription turns on transcript generation for an agent. Calls
// made before this have no transcript and are skipped by ingestion.
func EnableTranscription(ctx context.Context, p Platform, agentID string) (Agent, error) {
	if agentID == "" {
		return Agent{}, ErrInvalidArgument
	}
	return p.UpdateAgent(ctx, agentID, AgentUpdate{"enable_transcription": true})
}
