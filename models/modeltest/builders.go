package modeltest

import (
	"fmt"
	"time"

	"github.com/hunttickets/backoffice_backend/models"
	"github.com/shopspring/decimal"
)

var base = time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)

// PaidTx builds a paid transaction; total is in whole currency units.
func PaidTx(channel models.Channel, id, ticketId string, quantity int, total int64) models.Transaction {
	method := models.PaymentMethodCard
	if channel == models.ChannelCash {
		method = models.PaymentMethodCash
	}
	return models.Transaction{
		Id:            id,
		TicketId:      ticketId,
		UserId:        "user-" + id,
		Quantity:      quantity,
		Total:         decimal.NewFromInt(total),
		Status:        models.TransactionStatusPaidWithQR,
		Channel:       channel,
		PaymentMethod: method,
		CreatedAt:     base,
	}
}

// AddPaid appends n paid transactions of quantity qty at unitPrice each to the channel.
func (f *Fixture) AddPaid(channel models.Channel, ticketId string, n, qty int, unitPrice int64) []models.Transaction {
	src := f.Source(channel)
	var added []models.Transaction
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%s-%05d", channel, ticketId, len(src.Txs))
		tx := PaidTx(channel, id, ticketId, qty, int64(qty)*unitPrice)
		tx.CreatedAt = base.Add(time.Duration(len(src.Txs)) * time.Minute)
		src.Txs = append(src.Txs, tx)
		added = append(added, tx)
	}
	return added
}

func (f *Fixture) AddTicket(eventId, id, name string, price int64, capacity int) models.Ticket {
	t := models.Ticket{Id: id, EventId: eventId, Name: name, Price: decimal.NewFromInt(price), Quantity: capacity}
	f.Tickets.Rows = append(f.Tickets.Rows, t)
	return t
}

// IssueCredentials creates n credentials for tx, numbered from the current row count.
func (f *Fixture) IssueCredentials(eventId string, tx models.Transaction, n int) {
	for i := 0; i < n; i++ {
		f.Credentials.Rows = append(f.Credentials.Rows, models.Credential{
			Id:            fmt.Sprintf("qr-%06d", len(f.Credentials.Rows)),
			EventId:       eventId,
			TransactionId: tx.Id,
			UserId:        tx.UserId,
			CreatedAt:     tx.CreatedAt,
		})
	}
}

func Rate(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

// StandardFee is 10% variable fee, 19% tax, 4x1000, 3.5% processor deduction,
// 2.99% terminal fee and 5% terminal commission.
func StandardFee(eventId string) *models.EventFee {
	return &models.EventFee{
		EventId:                eventId,
		VariableFeeRate:        Rate("0.10"),
		TaxRate:                Rate("0.19"),
		BankTaxRate:            Rate("0.004"),
		BoldDeductionRate:      Rate("0.035"),
		DatafonoPosFeeRate:     Rate("0.0299"),
		DatafonoCommissionRate: Rate("0.05"),
		UpdatedAt:              base,
	}
}
