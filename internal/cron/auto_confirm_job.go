package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/batahq/bata-backend/pkg/db/models"
	"github.com/batahq/bata-backend/pkg/logger"
)

const autoConfirmBatchSize = 100

// deliveredOrderReader lists delivered orders whose confirmation is overdue.
type deliveredOrderReader interface {
	ListDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// autoConfirmer settles one delivered order if it is still settleable.
type autoConfirmer interface {
	AutoConfirm(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// AutoConfirmJobParams configure the delivery auto-confirm sweep.
type AutoConfirmJobParams struct {
	Logger     *logger.Logger
	Orders     deliveredOrderReader
	Settlement autoConfirmer
	After      time.Duration
}

// NewAutoConfirmJob builds the job that settles delivered orders the buyer
// never confirmed. Orders with an active dispute are skipped by the
// settlement engine and picked up again on a later sweep.
func NewAutoConfirmJob(params AutoConfirmJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement engine required")
	}
	if params.After <= 0 {
		return nil, fmt.Errorf("auto-confirm delay must be positive")
	}
	return &autoConfirmJob{
		logg:       params.Logger,
		orders:     params.Orders,
		settlement: params.Settlement,
		after:      params.After,
		now:        time.Now,
	}, nil
}

type autoConfirmJob struct {
	logg       *logger.Logger
	orders     deliveredOrderReader
	settlement autoConfirmer
	after      time.Duration
	now        func() time.Time
}

func (j *autoConfirmJob) Name() string { return "auto-confirm" }

func (j *autoConfirmJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	overdue, err := j.orders.ListDeliveredBefore(ctx, cutoff, autoConfirmBatchSize)
	if err != nil {
		return fmt.Errorf("query overdue deliveries: %w", err)
	}

	var errs []error
	settled := 0
	for _, order := range overdue {
		ok, err := j.settlement.AutoConfirm(ctx, order.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("auto-confirm order %s: %w", order.OrderNumber, err))
			continue
		}
		if ok {
			settled++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(overdue),
		"settled":    settled,
	})
	j.logg.Info(logCtx, "auto-confirm sweep complete")
	return multierr.Combine(errs...)
}
