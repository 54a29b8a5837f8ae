package sales

import (
	"sort"

	"github.com/hunttickets/backoffice_backend/models"
	"github.com/shopspring/decimal"
)

type ChannelTotals struct {
	QuantitySum      int             `json:"quantity_sum"`
	RevenueSum       decimal.Decimal `json:"revenue_sum"`
	TransactionCount int             `json:"transaction_count"`
}

func (t *ChannelTotals) add(tx models.Transaction) {
	t.QuantitySum += tx.Quantity
	t.RevenueSum = t.RevenueSum.Add(tx.Total)
	t.TransactionCount++
}

func (t ChannelTotals) plus(o ChannelTotals) ChannelTotals {
	return ChannelTotals{
		QuantitySum:      t.QuantitySum + o.QuantitySum,
		RevenueSum:       t.RevenueSum.Add(o.RevenueSum),
		TransactionCount: t.TransactionCount + o.TransactionCount,
	}
}

type TicketTypeTotals struct {
	TicketId  string                           `json:"ticket_id"`
	Name      string                           `json:"name"`
	Price     decimal.Decimal                  `json:"price"`
	Capacity  int                              `json:"capacity"`
	// Listed is false for a ticket id that is not in the event's catalogue.
	Listed    bool                             `json:"listed"`
	ByChannel map[models.Channel]ChannelTotals `json:"by_channel"`
	Total     ChannelTotals                    `json:"total"`
}

type Aggregates struct {
	ByChannel    map[models.Channel]ChannelTotals `json:"by_channel"`
	Total        ChannelTotals                    `json:"total"`
	ByTicketType []TicketTypeTotals               `json:"by_ticket_type"`
	// Datafono is the cash-channel share collected through the card terminal.
	Datafono ChannelTotals `json:"datafono"`
	// InvalidTransactions counts rows left out of every total (quantity <= 0 or total < 0).
	InvalidTransactions int `json:"invalid_transactions"`
}

func (a *Aggregates) Channel(c models.Channel) ChannelTotals {
	return a.ByChannel[c]
}

// Empty is the "no sales yet" state.
func (a *Aggregates) Empty() bool {
	return a.Total.TransactionCount == 0 && a.InvalidTransactions == 0
}

// Aggregate folds a snapshot into totals. A snapshot without transactions yields
// all-zero totals for every channel.
func Aggregate(s *Snapshot) *Aggregates {
	agg := &Aggregates{ByChannel: make(map[models.Channel]ChannelTotals, 3)}

	types := make(map[string]*TicketTypeTotals, len(s.Tickets))
	order := make([]string, 0, len(s.Tickets))
	newType := func(id string) *TicketTypeTotals {
		tt := &TicketTypeTotals{TicketId: id, ByChannel: make(map[models.Channel]ChannelTotals, 3)}
		for _, c := range models.Channels() {
			tt.ByChannel[c] = ChannelTotals{}
		}
		types[id] = tt
		order = append(order, id)
		return tt
	}
	for _, t := range s.Tickets {
		tt := newType(t.Id)
		tt.Name = t.Name
		tt.Price = t.Price
		tt.Capacity = t.Quantity
		tt.Listed = true
	}

	for _, c := range models.Channels() {
		var totals ChannelTotals
		for _, tx := range s.Transactions[c] {
			if !tx.IsValid() {
				agg.InvalidTransactions++
				continue
			}
			totals.add(tx)

			tt, ok := types[tx.TicketId]
			if !ok {
				tt = newType(tx.TicketId)
			}
			perChannel := tt.ByChannel[c]
			perChannel.add(tx)
			tt.ByChannel[c] = perChannel
			tt.Total.add(tx)

			if c == models.ChannelCash && tx.PaymentMethod == models.PaymentMethodDatafono {
				agg.Datafono.add(tx)
			}
		}
		agg.ByChannel[c] = totals
		agg.Total = agg.Total.plus(totals)
	}

	agg.ByTicketType = make([]TicketTypeTotals, 0, len(order))
	for _, id := range order {
		agg.ByTicketType = append(agg.ByTicketType, *types[id])
	}
	sort.SliceStable(agg.ByTicketType, func(i, j int) bool {
		return agg.ByTicketType[i].Name < agg.ByTicketType[j].Name
	})
	return agg
}

// TicketTypeRevenue is the revenue summed over the catalogue's ticket types,
// derived independently of the channel totals. Sales of unlisted tickets are
// not part of it.
func (a *Aggregates) TicketTypeRevenue() decimal.Decimal {
	sum := decimal.Zero
	for _, tt := range a.ByTicketType {
		if !tt.Listed {
			continue
		}
		for _, c := range models.Channels() {
			sum = sum.Add(tt.ByChannel[c].RevenueSum)
		}
	}
	return sum
}
