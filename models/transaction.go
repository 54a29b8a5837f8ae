package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the channel-independent view of a paid sale.
type Transaction struct {
	Id            string          `json:"id"`
	TicketId      string          `json:"ticket_id"`
	UserId        string          `json:"user_id"`
	Quantity      int             `json:"quantity"`
	Total         decimal.Decimal `json:"total"`
	Status        string          `json:"status"`
	Channel       Channel         `json:"channel"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	OrderId       *string         `json:"order_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (t Transaction) IsPaid() bool {
	return t.Status == TransactionStatusPaidWithQR
}

// IsValid reports whether the row has a positive quantity and a non-negative total.
// Rows that fail it are kept out of every sum.
func (t Transaction) IsValid() bool {
	return t.Quantity > 0 && !t.Total.IsNegative()
}

// channelRow is implemented by each channel's table model.
type channelRow interface {
	AppTransaction | WebTransaction | CashTransaction
	toTransaction() Transaction
}

type AppTransaction struct {
	Id        string          `gorm:"primaryKey;size:64" json:"id"`
	TicketId  string          `gorm:"index;size:64;not null" json:"ticket_id"`
	UserId    string          `gorm:"index;size:64" json:"user_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Total     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	Status    string          `gorm:"size:50;index" json:"status"`
	OrderId   *string         `gorm:"size:100" json:"order_id"`
	CreatedAt time.Time       `json:"created_at"`
}

func (AppTransaction) TableName() string { return "app_transactions" }

func (r AppTransaction) toTransaction() Transaction {
	return Transaction{
		Id:            r.Id,
		TicketId:      r.TicketId,
		UserId:        r.UserId,
		Quantity:      r.Quantity,
		Total:         r.Total,
		Status:        r.Status,
		Channel:       ChannelApp,
		PaymentMethod: PaymentMethodCard,
		OrderId:       r.OrderId,
		CreatedAt:     r.CreatedAt,
	}
}

// web checkout stores the amount as total_price and the buyer as buyer_id
type WebTransaction struct {
	Id         string          `gorm:"primaryKey;size:64" json:"id"`
	TicketId   string          `gorm:"index;size:64;not null" json:"ticket_id"`
	BuyerId    string          `gorm:"index;size:64" json:"buyer_id"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
	Status     string          `gorm:"size:50;index" json:"status"`
	OrderId    *string         `gorm:"size:100" json:"order_id"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (WebTransaction) TableName() string { return "web_transactions" }

func (r WebTransaction) toTransaction() Transaction {
	return Transaction{
		Id:            r.Id,
		TicketId:      r.TicketId,
		UserId:        r.BuyerId,
		Quantity:      r.Quantity,
		Total:         r.TotalPrice,
		Status:        r.Status,
		Channel:       ChannelWeb,
		PaymentMethod: PaymentMethodCard,
		OrderId:       r.OrderId,
		CreatedAt:     r.CreatedAt,
	}
}

type CashTransaction struct {
	Id            string          `gorm:"primaryKey;size:64" json:"id"`
	TicketId      string          `gorm:"index;size:64;not null" json:"ticket_id"`
	UserId        *string         `gorm:"index;size:64" json:"user_id"`
	SellerId      string          `gorm:"size:64" json:"seller_id"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	Total         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	Status        string          `gorm:"size:50;index" json:"status"`
	PaymentMethod PaymentMethod   `gorm:"size:20;default:cash" json:"payment_method"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (CashTransaction) TableName() string { return "cash_transactions" }

func (r CashTransaction) toTransaction() Transaction {
	method := r.PaymentMethod
	if method == "" {
		method = PaymentMethodCash
	}
	return Transaction{
		Id:            r.Id,
		TicketId:      r.TicketId,
		UserId:        derefString(r.UserId),
		Quantity:      r.Quantity,
		Total:         r.Total,
		Status:        r.Status,
		Channel:       ChannelCash,
		PaymentMethod: method,
		CreatedAt:     r.CreatedAt,
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type Ticket struct {
	Id        string          `gorm:"primaryKey;size:64" json:"id"`
	EventId   string          `gorm:"index;size:64;not null" json:"event_id"`
	Name      string          `gorm:"size:255" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Quantity  int             `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
}

type Profile struct {
	Id    string  `gorm:"primaryKey;size:64" json:"id"`
	Name  string  `gorm:"size:255" json:"name"`
	Email string  `gorm:"size:255" json:"email"`
	Phone *string `gorm:"size:50" json:"phone,omitempty"`
}

type Credential struct {
	Id            string     `gorm:"primaryKey;size:64" json:"id"`
	EventId       string     `gorm:"index;size:64;not null" json:"event_id"`
	TransactionId string     `gorm:"index;size:64;not null" json:"transaction_id"`
	UserId        string     `gorm:"index;size:64" json:"user_id"`
	Scanned       bool       `gorm:"not null;default:false" json:"scanned"`
	ScannerId     *string    `gorm:"size:64" json:"scanner_id,omitempty"`
	AppleWallet   bool       `gorm:"column:apple_wallet_added;not null;default:false" json:"apple_wallet"`
	GoogleWallet  bool       `gorm:"column:google_wallet_added;not null;default:false" json:"google_wallet"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

func (Credential) TableName() string { return "qr_codes" }

// EventFee holds the event's rates as fractions (0.19 for 19%).
// A null rate is "not configured", never zero.
type EventFee struct {
	EventId                string              `gorm:"primaryKey;size:64" json:"event_id"`
	VariableFeeRate        decimal.NullDecimal `gorm:"type:decimal(10,6)" json:"variable_fee_rate"`
	TaxRate                decimal.NullDecimal `gorm:"type:decimal(10,6)" json:"tax_rate"`
	BankTaxRate            decimal.NullDecimal `gorm:"type:decimal(10,6)" json:"bank_tax_rate"`
	BoldDeductionRate      decimal.NullDecimal `gorm:"type:decimal(10,6)" json:"bold_deduction_rate"`
	DatafonoPosFeeRate     decimal.NullDecimal `gorm:"type:decimal(10,6)" json:"datafono_pos_fee_rate"`
	DatafonoCommissionRate decimal.NullDecimal `gorm:"type:decimal(10,6)" json:"datafono_commission_rate"`
	CreatedAt              time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}
