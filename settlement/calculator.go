// Package settlement turns channel aggregates into the event's financial report,
// folds operator advances against the settlement amount, and serves both.
package settlement

import (
	"fmt"
	"time"

	"github.com/hunttickets/backoffice_backend/models"
	"github.com/hunttickets/backoffice_backend/sales"
	"github.com/hunttickets/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

type TicketsSold struct {
	App   int `json:"app"`
	Web   int `json:"web"`
	Cash  int `json:"cash"`
	Total int `json:"total"`
}

type SalesBreakdown struct {
	Price       decimal.Decimal `json:"price"`
	Tax         decimal.Decimal `json:"tax"`
	VariableFee decimal.Decimal `json:"variable_fee"`
	Total       decimal.Decimal `json:"total"`
}

type GlobalCalculations struct {
	GananciaBrutaHunt    decimal.Decimal `json:"ganancia_bruta_hunt"`
	DeduccionesBoldTotal decimal.Decimal `json:"deducciones_bold_total"`
	Impuesto4x1000       decimal.Decimal `json:"impuesto_4x1000"`
	GananciaNetaHunt     decimal.Decimal `json:"ganancia_neta_hunt"`
}

type DatafonoCalculations struct {
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PosFee            decimal.Decimal `json:"pos_fee"`
	HuntCommission    decimal.Decimal `json:"hunt_commission"`
	TaxOnCommission   decimal.Decimal `json:"tax_on_commission"`
	HuntNetBenefit    decimal.Decimal `json:"hunt_net_benefit"`
	ProducerNetAmount decimal.Decimal `json:"producer_net_amount"`
}

type Validation struct {
	RevenueDiscrepancy     decimal.Decimal `json:"revenue_discrepancy"`
	MismatchedTransactions int             `json:"mismatched_transactions"`
	InvalidTransactions    int             `json:"invalid_transactions"`
	Flagged                bool            `json:"flagged"`
}

type FinancialReport struct {
	TicketsSold        TicketsSold        `json:"tickets_sold"`
	AppTotal           decimal.Decimal    `json:"app_total"`
	WebTotal           decimal.Decimal    `json:"web_total"`
	CashTotal          decimal.Decimal    `json:"cash_total"`
	ChannelsTotal      decimal.Decimal    `json:"channels_total"`
	AverageTicketPrice decimal.Decimal    `json:"average_ticket_price"`
	HuntSales          SalesBreakdown     `json:"hunt_sales"`
	ProducerSales      SalesBreakdown     `json:"producer_sales"`
	GlobalCalculations GlobalCalculations `json:"global_calculations"`
	SettlementAmount   decimal.Decimal    `json:"settlement_amount"`
	TotalTax           decimal.Decimal    `json:"total_tax"`
	// nil when no sale went through the card terminal
	DatafonoCalculations *DatafonoCalculations `json:"datafono_calculations,omitempty"`
	Validation           Validation            `json:"validation"`
	Timestamp            time.Time             `json:"timestamp"`
}

// Rates are the fee record's values after the configured check.
type Rates struct {
	VariableFee        decimal.Decimal
	Tax                decimal.Decimal
	BankTax            decimal.Decimal
	BoldDeduction      decimal.Decimal
	DatafonoPosFee     decimal.Decimal
	DatafonoCommission decimal.Decimal
}

type namedRate struct {
	name string
	val  decimal.NullDecimal
}

// RatesFromFee fails closed: any unset required rate is ErrFeeConfigMissing.
// Terminal rates are only required when the event has terminal sales.
func RatesFromFee(fee *models.EventFee, withDatafono bool) (Rates, error) {
	if fee == nil {
		return Rates{}, fmt.Errorf("%w: no fee record", utils.ErrFeeConfigMissing)
	}
	required := []namedRate{
		{"variable_fee_rate", fee.VariableFeeRate},
		{"tax_rate", fee.TaxRate},
		{"bank_tax_rate", fee.BankTaxRate},
		{"bold_deduction_rate", fee.BoldDeductionRate},
	}
	if withDatafono {
		required = append(required,
			namedRate{"datafono_pos_fee_rate", fee.DatafonoPosFeeRate},
			namedRate{"datafono_commission_rate", fee.DatafonoCommissionRate},
		)
	}
	for _, r := range required {
		if !r.val.Valid {
			return Rates{}, fmt.Errorf("%w: %s is not set for event %s", utils.ErrFeeConfigMissing, r.name, fee.EventId)
		}
		if r.val.Decimal.IsNegative() {
			return Rates{}, utils.InvalidInput("%s must not be negative", r.name)
		}
	}
	return Rates{
		VariableFee:        fee.VariableFeeRate.Decimal,
		Tax:                fee.TaxRate.Decimal,
		BankTax:            fee.BankTaxRate.Decimal,
		BoldDeduction:      fee.BoldDeductionRate.Decimal,
		DatafonoPosFee:     fee.DatafonoPosFeeRate.Decimal,
		DatafonoCommission: fee.DatafonoCommissionRate.Decimal,
	}, nil
}

func breakdown(price decimal.Decimal, rates Rates) SalesBreakdown {
	tax := price.Mul(rates.Tax)
	variableFee := price.Mul(rates.VariableFee)
	return SalesBreakdown{
		Price:       price,
		Tax:         tax,
		VariableFee: variableFee,
		Total:       price.Add(tax).Add(variableFee),
	}
}

// Calculate derives the report from channel aggregates. App and web revenue belongs
// to the platform; the producer settles on cash revenue, plus the terminal net
// when terminal sales exist.
func Calculate(agg *sales.Aggregates, rates Rates, now time.Time) *FinancialReport {
	app := agg.Channel(models.ChannelApp)
	web := agg.Channel(models.ChannelWeb)
	cash := agg.Channel(models.ChannelCash)

	report := &FinancialReport{
		TicketsSold: TicketsSold{
			App:   app.QuantitySum,
			Web:   web.QuantitySum,
			Cash:  cash.QuantitySum,
			Total: app.QuantitySum + web.QuantitySum + cash.QuantitySum,
		},
		AppTotal:  app.RevenueSum,
		WebTotal:  web.RevenueSum,
		CashTotal: cash.RevenueSum,
		Timestamp: now,
	}
	report.ChannelsTotal = app.RevenueSum.Add(web.RevenueSum).Add(cash.RevenueSum)
	report.AverageTicketPrice = utils.SafeDiv(report.ChannelsTotal, decimal.NewFromInt(int64(report.TicketsSold.Total))).Round(2)

	platformRevenue := app.RevenueSum.Add(web.RevenueSum)
	producerRevenue := cash.RevenueSum.Sub(agg.Datafono.RevenueSum)

	report.HuntSales = breakdown(platformRevenue, rates)
	report.ProducerSales = breakdown(producerRevenue, rates)

	bruta := report.HuntSales.VariableFee
	bold := platformRevenue.Mul(rates.BoldDeduction)
	fourPerThousand := report.HuntSales.Total.Mul(rates.BankTax)
	report.GlobalCalculations = GlobalCalculations{
		GananciaBrutaHunt:    bruta,
		DeduccionesBoldTotal: bold,
		Impuesto4x1000:       fourPerThousand,
		GananciaNetaHunt:     bruta.Sub(bold).Sub(fourPerThousand),
	}

	report.SettlementAmount = report.ProducerSales.Price.
		Sub(report.ProducerSales.Tax).
		Sub(report.ProducerSales.VariableFee)
	report.TotalTax = report.HuntSales.Tax.Add(report.ProducerSales.Tax)

	if agg.Datafono.RevenueSum.IsPositive() {
		d := datafono(agg.Datafono.RevenueSum, rates)
		report.DatafonoCalculations = d
		report.SettlementAmount = report.SettlementAmount.Add(d.ProducerNetAmount)
		report.TotalTax = report.TotalTax.Add(d.TaxOnCommission)
	}
	return report
}

func datafono(total decimal.Decimal, rates Rates) *DatafonoCalculations {
	posFee := total.Mul(rates.DatafonoPosFee)
	commission := total.Mul(rates.DatafonoCommission)
	taxOnCommission := commission.Mul(rates.Tax)
	return &DatafonoCalculations{
		TotalAmount:       total,
		PosFee:            posFee,
		HuntCommission:    commission,
		TaxOnCommission:   taxOnCommission,
		HuntNetBenefit:    commission.Sub(posFee),
		ProducerNetAmount: total.Sub(posFee).Sub(commission).Sub(taxOnCommission),
	}
}

// Build resolves the event's rates and calculates the report.
func Build(agg *sales.Aggregates, fee *models.EventFee, now time.Time) (*FinancialReport, error) {
	rates, err := RatesFromFee(fee, agg.Datafono.RevenueSum.IsPositive())
	if err != nil {
		return nil, err
	}
	return Calculate(agg, rates, now), nil
}
