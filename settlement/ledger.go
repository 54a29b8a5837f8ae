package settlement

import (
	"github.com/hunttickets/backoffice_backend/models"
	"github.com/hunttickets/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

const (
	LedgerStatusPending      = "pending"
	LedgerStatusPartial      = "partial"
	LedgerStatusSettled      = "settled"
	LedgerStatusOverAdvanced = "over_advanced"
)

type LedgerSummary struct {
	SettlementAmount  decimal.Decimal `json:"settlement_amount"`
	TotalPayments     decimal.Decimal `json:"total_payments"`
	TotalDebts        decimal.Decimal `json:"total_debts"`
	NetAdvances       decimal.Decimal `json:"net_advances"`
	RemainingBalance  decimal.Decimal `json:"remaining_balance"`
	AdvancePercentage decimal.Decimal `json:"advance_percentage"`
	OverAdvanced      bool            `json:"over_advanced"`
	Status            string          `json:"status"`
	Entries           int             `json:"entries"`
}

// FoldAdvances tallies advances against the settlement amount. Payments add to
// net advances, debts subtract. The remaining balance is never clamped; a
// negative balance is reported as over-advanced.
func FoldAdvances(settlementAmount decimal.Decimal, advances []*models.Advance) LedgerSummary {
	summary := LedgerSummary{
		SettlementAmount: settlementAmount,
		TotalPayments:    decimal.Zero,
		TotalDebts:       decimal.Zero,
		Entries:          len(advances),
	}
	for _, a := range advances {
		if a == nil {
			continue
		}
		if a.IsDebt {
			summary.TotalDebts = summary.TotalDebts.Add(a.Amount)
		} else {
			summary.TotalPayments = summary.TotalPayments.Add(a.Amount)
		}
	}
	summary.NetAdvances = summary.TotalPayments.Sub(summary.TotalDebts)
	summary.RemainingBalance = settlementAmount.Sub(summary.NetAdvances)
	summary.AdvancePercentage = utils.Percentage(summary.NetAdvances, settlementAmount).Round(2)
	summary.OverAdvanced = summary.RemainingBalance.IsNegative()

	switch {
	case summary.OverAdvanced:
		summary.Status = LedgerStatusOverAdvanced
	case summary.RemainingBalance.IsZero() && !settlementAmount.IsZero():
		summary.Status = LedgerStatusSettled
	case summary.NetAdvances.IsPositive():
		summary.Status = LedgerStatusPartial
	default:
		summary.Status = LedgerStatusPending
	}
	return summary
}
