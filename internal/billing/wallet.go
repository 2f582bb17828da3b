// Package billing settles wallet charges against render outcomes. Every
// movement is one append-only ledger entry; the ledger's unique constraint is
// what makes charge and refund at-most-once, not call ordering.
package billing

import (
	"context"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"rendersync/internal/domain"
	"rendersync/internal/infra"
)

// MeterVideoSeconds is the usage meter consumed by downstream invoicing.
const MeterVideoSeconds = "video_render_seconds"

// Service reconciles wallet state with job outcomes.
type Service struct {
	wallet domain.WalletRepository
	usage  domain.UsageRepository
	logger infra.Logger
}

func NewService(wallet domain.WalletRepository, usage domain.UsageRepository, logger infra.Logger) *Service {
	return &Service{wallet: wallet, usage: usage, logger: logger}
}

// HoldEstimate debits the cost estimate when a job is created.
func (s *Service) HoldEstimate(ctx context.Context, job *domain.Job) error {
	applied, err := s.wallet.Append(ctx, &domain.WalletEntry{
		UserID:      job.UserID,
		JobID:       &job.ID,
		EntryType:   domain.WalletDebitEstimate,
		AmountCents: -job.CostEstimateCents,
	})
	if err != nil {
		return fmt.Errorf("hold estimate: %w", err)
	}
	if !applied {
		s.logger.Warn().Str("job_id", job.ID).Msg("billing: estimate already held")
	}
	return nil
}

// SettleCompleted adjusts the held estimate to the actual cost and meters
// usage. Safe to call any number of times for the same job.
func (s *Service) SettleCompleted(ctx context.Context, job *domain.Job) error {
	if job.CostActualCents == nil {
		return fmt.Errorf("settle job %s: no actual cost recorded", job.ID)
	}
	adjustment := job.CostEstimateCents - *job.CostActualCents
	applied, err := s.wallet.Append(ctx, &domain.WalletEntry{
		UserID:      job.UserID,
		JobID:       &job.ID,
		EntryType:   domain.WalletAdjustActual,
		AmountCents: adjustment,
	})
	if err != nil {
		return fmt.Errorf("settle job %s: %w", job.ID, err)
	}
	if !applied {
		return nil
	}

	quantity := job.DurationSeconds
	if job.DurationActualSeconds != nil {
		quantity = *job.DurationActualSeconds
	}
	if _, err := s.usage.Insert(ctx, &domain.UsageEvent{
		JobID:    &job.ID,
		UserID:   job.UserID,
		Meter:    MeterVideoSeconds,
		Quantity: quantity,
		Engine:   job.Engine,
		Provider: job.Provider,
	}); err != nil {
		return fmt.Errorf("meter job %s: %w", job.ID, err)
	}
	s.logger.Info().Str("job_id", job.ID).Int("actual_cents", *job.CostActualCents).Msg("billing: job settled")
	return nil
}

// RefundFailed returns the held estimate after a failed render. Safe to call
// any number of times for the same job.
func (s *Service) RefundFailed(ctx context.Context, job *domain.Job) error {
	applied, err := s.wallet.Append(ctx, &domain.WalletEntry{
		UserID:      job.UserID,
		JobID:       &job.ID,
		EntryType:   domain.WalletRefund,
		AmountCents: job.CostEstimateCents,
	})
	if err != nil {
		return fmt.Errorf("refund job %s: %w", job.ID, err)
	}
	if applied {
		s.logger.Info().Str("job_id", job.ID).Int("refund_cents", job.CostEstimateCents).Msg("billing: job refunded")
	}
	return nil
}

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatCents renders a cent amount for client display.
func FormatCents(cents int) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return printer.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
