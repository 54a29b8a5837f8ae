package models

import (
	"fmt"
	"strings"

	"github.com/hunttickets/backoffice_backend/utils"
)

type Channel string

const (
	ChannelApp  Channel = "app"
	ChannelWeb  Channel = "web"
	ChannelCash Channel = "cash"
)

// Channels in report order.
func Channels() []Channel {
	return []Channel{ChannelApp, ChannelWeb, ChannelCash}
}

func (c Channel) IsValid() bool {
	switch c {
	case ChannelApp, ChannelWeb, ChannelCash:
		return true
	}
	return false
}

// convert query input to enum type
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: invalid source %q", utils.ErrInvalidInput, s)
	}
	return c, nil
}

// Only transactions in this status carry issued credentials.
const TransactionStatusPaidWithQR = "PAID WITH QR"

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodDatafono PaymentMethod = "datafono"
	PaymentMethodCard     PaymentMethod = "card"
)

type AdvancePaymentMethod string

const (
	AdvancePaymentMethodTransfer AdvancePaymentMethod = "transfer"
	AdvancePaymentMethodCash     AdvancePaymentMethod = "cash"
	AdvancePaymentMethodCheck    AdvancePaymentMethod = "check"
	AdvancePaymentMethodOther    AdvancePaymentMethod = "other"
)
