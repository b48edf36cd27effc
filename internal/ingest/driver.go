package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"callcenter/internal/voiceagent"
	"callcenter/pkg/logger"
)

var (
	ErrBatchInProgress = errors.New("ingest: batch run already in progress")
	ErrNoTranscript    = errors.New("ingest: call has no transcript")
	ErrNoPhoneNumber   = errors.New("ingest: call has no phone number")
)

const (
	DefaultPageSize = 100
	DefaultInterval = 30 * time.Second
)

// CallSource is the platform read side the driver needs.
type CallSource interface {
	ListCalls(ctx context.Context, f voiceagent.ListCallsFilter) ([]voiceagent.CallRecord, error)
	GetCall(ctx context.Context, callID string) (voiceagent.CallRecord, error)
}

// ProcessedIndex answers whether a platform call was already reconciled.
type ProcessedIndex interface {
	IsCallProcessed(ctx context.Context, externalCallID string) (bool, error)
}

// CallReconciler is implemented by *Reconciler.
type CallReconciler interface {
	ProcessAndSaveCall(ctx context.Context, in ProcessInput) (Result, error)
}

type BatchResult struct {
	Listed    int       `json:"listed"`
	Eligible  int       `json:"eligible"`
	Processed int       `json:"processed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Stats are cumulative since process start.
type Stats struct {
	Running   bool         `json:"running"`
	Runs      int          `json:"runs"`
	Processed int          `json:"processed"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	LastRun   *BatchResult `json:"last_run,omitempty"`
}

type DriverConfig struct {
	AgentIDs []string
	PageSize int
}

// Driver runs the eligibility filter and reconciler over the platform's
// call list. Batch runs are single-flight per Driver; calls are reconciled
// one at a time and a failing call never stops the batch.
//
// Every reconciliation, batch or manual, holds reconcileMu so the
// processed check and the call write of one run never interleave with
// another.
type Driver struct {
	source    CallSource
	processed ProcessedIndex
	rec       CallReconciler
	cfg       DriverConfig
	clock     func() time.Time

	running     atomic.Bool
	reconcileMu sync.Mutex

	mu    sync.Mutex
	stats Stats
}

func NewDriver(source CallSource, processed ProcessedIndex, rec CallReconciler, cfg DriverConfig) *Driver {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Driver{source: source, processed: processed, rec: rec, cfg: cfg, clock: time.Now}
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeFailed
)

// RunOnce walks every page of ended calls and reconciles the new ones.
// Cancelling ctx stops the walk between calls; a call already being
// reconciled runs to completion.
func (d *Driver) RunOnce(ctx context.Context) (BatchResult, error) {
	if !d.running.CompareAndSwap(false, true) {
		return BatchResult{}, ErrBatchInProgress
	}
	defer d.running.Store(false)

	log := logger.From(ctx)
	res := BatchResult{StartedAt: d.clock().UTC()}
	work := context.WithoutCancel(ctx)

	filter := voiceagent.ListCallsFilter{
		AgentIDs: d.cfg.AgentIDs,
		Statuses: []voiceagent.CallStatus{voiceagent.CallStatusEnded},
		Limit:    d.cfg.PageSize,
	}
	err := voiceagent.Paginate(ctx, d.source, filter, func(batch []voiceagent.CallRecord) error {
		res.Listed += len(batch)
		eligible := FilterEligible(batch)
		res.Eligible += len(eligible)
		for _, c := range eligible {
			if err := ctx.Err(); err != nil {
				return err
			}
			switch d.processOne(work, c) {
			case outcomeProcessed:
				res.Processed++
			case outcomeSkipped:
				res.Skipped++
			case outcomeFailed:
				res.Failed++
			}
		}
		return nil
	})
	res.EndedAt = d.clock().UTC()
	d.record(res)

	log.Info("ingest batch finished",
		slog.Int("listed", res.Listed),
		slog.Int("eligible", res.Eligible),
		slog.Int("processed", res.Processed),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed))
	if err != nil {
		return res, fmt.Errorf("ingest: batch: %w", err)
	}
	return res, nil
}

func (d *Driver) processOne(ctx context.Context, listed voiceagent.CallRecord) outcome {
	log := logger.From(ctx).With(slog.String("call_id", listed.CallID))

	done, err := d.processed.IsCallProcessed(ctx, listed.CallID)
	if err != nil {
		log.Error("processed check failed", slog.Any("err", err))
		return outcomeFailed
	}
	if done {
		return outcomeSkipped
	}

	full, err := d.source.GetCall(ctx, listed.CallID)
	if err != nil {
		log.Error("call fetch failed", slog.Any("err", err))
		return outcomeFailed
	}
	transcript := full.TranscriptText()
	if transcript == "" {
		log.Debug("call has no transcript yet")
		return outcomeSkipped
	}
	phone := full.PhoneNumber()
	if phone == "" {
		phone = listed.PhoneNumber()
	}

	_, err = d.reconcile(ctx, ProcessInput{
		PhoneNumber:     phone,
		ExternalCallID:  listed.CallID,
		Transcript:      transcript,
		DurationSeconds: full.DurationSeconds(),
	})
	switch {
	case errors.Is(err, ErrCallAlreadyProcessed):
		return outcomeSkipped
	case err != nil:
		log.Error("call reconciliation failed", slog.Any("err", err))
		return outcomeFailed
	}
	return outcomeProcessed
}

// ProcessCall reconciles one call on demand and reports why it could not.
func (d *Driver) ProcessCall(ctx context.Context, callID string) (Result, error) {
	if callID == "" {
		return Result{}, fmt.Errorf("%w: call id is required", ErrInvalidInput)
	}
	full, err := d.source.GetCall(ctx, callID)
	if err != nil {
		return Result{}, err
	}
	transcript := full.TranscriptText()
	if transcript == "" {
		return Result{}, ErrNoTranscript
	}
	phone := full.PhoneNumber()
	if phone == "" {
		return Result{}, ErrNoPhoneNumber
	}

	res, err := d.reconcile(context.WithoutCancel(ctx), ProcessInput{
		PhoneNumber:     phone,
		ExternalCallID:  full.CallID,
		Transcript:      transcript,
		DurationSeconds: full.DurationSeconds(),
	})
	d.mu.Lock()
	switch {
	case err == nil:
		d.stats.Processed++
	case errors.Is(err, ErrCallAlreadyProcessed):
		d.stats.Skipped++
	default:
		d.stats.Failed++
	}
	d.mu.Unlock()
	return res, err
}

func (d *Driver) reconcile(ctx context.Context, in ProcessInput) (Result, error) {
	d.reconcileMu.Lock()
	defer d.reconcileMu.Unlock()
	return d.rec.ProcessAndSaveCall(ctx, in)
}

// Run calls RunOnce immediately and then on every interval tick until ctx
// is done. Overlapping ticks are dropped.
func (d *Driver) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	log := logger.From(ctx)
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		if _, err := d.RunOnce(ctx); err != nil {
			switch {
			case errors.Is(err, ErrBatchInProgress):
				log.Debug("ingest batch skipped, previous run still active")
			case ctx.Err() != nil:
				// shutting down
			default:
				log.Error("ingest batch failed", slog.Any("err", err))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

func (d *Driver) record(res BatchResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Runs++
	d.stats.Processed += res.Processed
	d.stats.Skipped += res.Skipped
	d.stats.Failed += res.Failed
	last := res
	d.stats.LastRun = &last
}

func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	if s.LastRun != nil {
		last := *s.LastRun
		s.LastRun = &last
	}
	s.Running = d.running.Load()
	return s
}
