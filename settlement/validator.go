package settlement

import (
	"github.com/hunttickets/backoffice_backend/models"
	"github.com/shopspring/decimal"
)

// Validate cross-checks the channel total against the per-ticket-type revenue of
// the catalogue. A non-zero result is flagged for manual review; it never fails the report.
//
// revenue_discrepancy = channelsTotal - ticketTypeRevenue
// mismatched_transactions counts transactions whose total is not price x quantity,
// including transactions that reference a ticket outside the catalogue.
// invalid_transactions counts rows with quantity <= 0 or total < 0; they are
// excluded from both totals and from the price check.
func Validate(channelsTotal, ticketTypeRevenue decimal.Decimal, tickets []models.Ticket, transactions []models.Transaction) Validation {
	prices := make(map[string]decimal.Decimal, len(tickets))
	for _, t := range tickets {
		prices[t.Id] = t.Price
	}

	mismatched, invalid := 0, 0
	for _, tx := range transactions {
		if !tx.IsValid() {
			invalid++
			continue
		}
		price, ok := prices[tx.TicketId]
		if !ok || !tx.Total.Equal(price.Mul(decimal.NewFromInt(int64(tx.Quantity)))) {
			mismatched++
		}
	}

	discrepancy := channelsTotal.Sub(ticketTypeRevenue)
	return Validation{
		RevenueDiscrepancy:     discrepancy,
		MismatchedTransactions: mismatched,
		InvalidTransactions:    invalid,
		Flagged:                !discrepancy.IsZero() || mismatched > 0 || invalid > 0,
	}
}
