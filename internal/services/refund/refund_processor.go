package refund

import (
	"context"

	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
	"github.com/kevin07696/amazonpay-service/pkg/observability"
)

// SweepResult summarizes one pass over the open refunds
type SweepResult struct {
	Checked      int
	Finalized    int
	StillPending int
	Failed       int
}

// Processor reconciles refunds the provider answered Pending for. It is the
// fallback for lost notifications: the webhook normally finalizes a refund
// first and the sweep then finds nothing left to do.
type Processor struct {
	refunds  ports.RefundRepository
	gateway  ports.AmazonGateway
	payments ports.PaymentService
	logger   ports.Logger
}

// NewProcessor creates a new refund processor
func NewProcessor(
	refunds ports.RefundRepository,
	gateway ports.AmazonGateway,
	payments ports.PaymentService,
	logger ports.Logger,
) *Processor {
	return &Processor{
		refunds:  refunds,
		gateway:  gateway,
		payments: payments,
		logger:   logger,
	}
}

// ProcessOpenRefunds polls the provider for every open refund and finalizes
// the ones that reached a terminal state. A failing refund never blocks the
// rest of the sweep.
func (p *Processor) ProcessOpenRefunds(ctx context.Context) (*SweepResult, error) {
	open, err := p.refunds.ListOpen(ctx, nil)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list open refunds", err)
	}

	result := &SweepResult{}
	for _, refund := range open {
		result.Checked++

		details, err := p.gateway.GetRefundDetails(ctx, refund.RefundID)
		if err != nil {
			result.Failed++
			p.logger.Error("fetching refund details failed",
				ports.String("refund_id", refund.RefundID),
				ports.Err(err))
			continue
		}

		if !details.State.IsTerminal() {
			result.StillPending++
			p.logger.Debug("refund still pending",
				ports.String("refund_id", refund.RefundID),
				ports.String("state", details.State.String()))
			continue
		}

		if err := p.payments.FinalizeRefund(ctx, details); err != nil {
			result.Failed++
			p.logger.Error("finalizing refund failed",
				ports.String("refund_id", refund.RefundID),
				ports.Err(err))
			continue
		}
		result.Finalized++
	}

	observability.SetOpenRefunds(result.StillPending + result.Failed)
	p.logger.Info("refund sweep finished",
		ports.Int("checked", result.Checked),
		ports.Int("finalized", result.Finalized),
		ports.Int("still_pending", result.StillPending),
		ports.Int("failed", result.Failed))
	return result, nil
}
