package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"callcenter/internal/customers"
	"callcenter/internal/enrichment"
	"callcenter/pkg/logger"
)

var (
	ErrInvalidInput         = errors.New("ingest: invalid input")
	ErrCallAlreadyProcessed = errors.New("ingest: call already processed")
)

// Extractor never fails; on provider failure it returns a degraded record.
type Extractor interface {
	Extract(ctx context.Context, transcript string) enrichment.ExtractedCallData
}

// Directory is the customer/call persistence used by reconciliation.
// *customers.Service implements it.
type Directory interface {
	IsCallProcessed(ctx context.Context, externalCallID string) (bool, error)
	FindByPhone(ctx context.Context, phone string) (customers.Customer, error)
	Create(ctx context.Context, in customers.NewCustomer) (customers.Customer, error)
	FillEmpty(ctx context.Context, c customers.Customer, name, email, company string) (customers.Customer, bool, error)
	SaveCall(ctx context.Context, call customers.Call) (customers.Call, error)
	SaveEvent(ctx context.Context, e customers.Event) (customers.Event, error)
	RecordCall(ctx context.Context, c customers.Customer) (customers.Customer, error)
}

type ProcessInput struct {
	PhoneNumber     string
	ExternalCallID  string
	Transcript      string
	DurationSeconds int
}

// Result always carries the saved customer and call. Warnings lists the
// non-fatal steps that failed, so a nil error does not mean full success.
type Result struct {
	Customer        customers.Customer `json:"customer"`
	Call            customers.Call     `json:"call"`
	Events          []customers.Event  `json:"events"`
	CustomerCreated bool               `json:"customer_created"`
	Warnings        []string           `json:"warnings,omitempty"`
}

// Reconciler writes one enriched call as a sequence of independent steps.
// Customer resolution and the call write are fatal; customer patching,
// event writes and counter updates are logged and skipped on failure.
// Nothing is rolled back.
type Reconciler struct {
	dir       Directory
	extractor Extractor
}

func NewReconciler(dir Directory, extractor Extractor) *Reconciler {
	return &Reconciler{dir: dir, extractor: extractor}
}

func (r *Reconciler) ProcessAndSaveCall(ctx context.Context, in ProcessInput) (Result, error) {
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.ExternalCallID = strings.TrimSpace(in.ExternalCallID)
	switch {
	case in.PhoneNumber == "":
		return Result{}, fmt.Errorf("%w: phone number is required", ErrInvalidInput)
	case in.ExternalCallID == "":
		return Result{}, fmt.Errorf("%w: call id is required", ErrInvalidInput)
	case strings.TrimSpace(in.Transcript) == "":
		return Result{}, fmt.Errorf("%w: transcript is required", ErrInvalidInput)
	}
	log := logger.From(ctx).With(slog.String("call_id", in.ExternalCallID))

	// Checked before extraction so a duplicate costs no LLM call.
	done, err := r.dir.IsCallProcessed(ctx, in.ExternalCallID)
	if err != nil {
		return Result{}, err
	}
	if done {
		return Result{}, ErrCallAlreadyProcessed
	}

	data := r.extractor.Extract(ctx, in.Transcript)
	log.Info("transcript analysed",
		slog.String("intent", data.Intent),
		slog.String("sentiment", string(data.Sentiment)),
		slog.Int("scheduled_events", len(data.ScheduledEvents)),
		slog.Bool("degraded", data.Degraded()))

	var res Result
	res.Customer, res.CustomerCreated, err = r.resolveCustomer(ctx, in.PhoneNumber, data, &res)
	if err != nil {
		return Result{}, err
	}

	res.Call, err = r.dir.SaveCall(ctx, customers.Call{
		CustomerID:     res.Customer.ID,
		PhoneNumber:    in.PhoneNumber,
		ExternalCallID: in.ExternalCallID,
		Duration:       in.DurationSeconds,
		Transcript:     in.Transcript,
		Status:         customers.CallStatusCompleted,
		ExtractedData:  data,
	})
	if err != nil {
		return Result{}, fmt.Errorf("ingest: save call: %w", err)
	}

	res.Events = make([]customers.Event, 0, len(data.ScheduledEvents))
	for i, se := range data.ScheduledEvents {
		e := customers.EventFromExtraction(se)
		e.CustomerID = res.Customer.ID
		e.CallID = res.Call.ID
		e.PhoneNumber = in.PhoneNumber
		saved, err := r.dir.SaveEvent(ctx, e)
		if err != nil {
			log.Warn("scheduled event not saved", slog.Int("index", i), slog.Any("err", err))
			res.Warnings = append(res.Warnings, fmt.Sprintf("scheduled event %d: %v", i, err))
			continue
		}
		res.Events = append(res.Events, saved)
	}

	if c, err := r.dir.RecordCall(ctx, res.Customer); err != nil {
		log.Warn("customer counters not updated", slog.String("customer_id", res.Customer.ID), slog.Any("err", err))
		res.Warnings = append(res.Warnings, fmt.Sprintf("customer counters: %v", err))
	} else {
		res.Customer = c
	}

	log.Info("call reconciled",
		slog.String("customer_id", res.Customer.ID),
		slog.Bool("customer_created", res.CustomerCreated),
		slog.Int("events", len(res.Events)),
		slog.Int("warnings", len(res.Warnings)))
	return res, nil
}

func (r *Reconciler) resolveCustomer(ctx context.Context, phone string, data enrichment.ExtractedCallData, res *Result) (customers.Customer, bool, error) {
	c, err := r.dir.FindByPhone(ctx, phone)
	switch {
	case errors.Is(err, customers.ErrNotFound):
		created, err := r.dir.Create(ctx, customers.NewCustomer{
			PhoneNumber: phone,
			Name:        data.CustomerName,
			Email:       data.Email,
			Company:     data.Company,
		})
		if err != nil {
			return customers.Customer{}, false, fmt.Errorf("ingest: create customer: %w", err)
		}
		return created, true, nil
	case err != nil:
		return customers.Customer{}, false, fmt.Errorf("ingest: find customer: %w", err)
	}

	patched, _, err := r.dir.FillEmpty(ctx, c, data.CustomerName, data.Email, data.Company)
	if err != nil {
		logger.From(ctx).Warn("customer details not updated", slog.String("customer_id", c.ID), slog.Any("err", err))
		res.Warnings = append(res.Warnings, fmt.Sprintf("customer details: %v", err))
		return c, false, nil
	}
	return patched, false, nil
}
