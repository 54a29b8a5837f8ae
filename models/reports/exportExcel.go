package reports

import (
	"fmt"

	"github.com/hunttickets/backoffice_backend/settlement"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Settlement"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type cellRow struct {
	label string
	value interface{}
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func reportRows(r *settlement.FinancialReport) []cellRow {
	rows := []cellRow{
		{"Generated at", r.Timestamp.UTC().Format("2006-01-02 15:04:05")},
		{"", nil},
		{"Tickets sold (app)", r.TicketsSold.App},
		{"Tickets sold (web)", r.TicketsSold.Web},
		{"Tickets sold (cash)", r.TicketsSold.Cash},
		{"Tickets sold (total)", r.TicketsSold.Total},
		{"App total", money(r.AppTotal)},
		{"Web total", money(r.WebTotal)},
		{"Cash total", money(r.CashTotal)},
		{"Channels total", money(r.ChannelsTotal)},
		{"Average ticket price", money(r.AverageTicketPrice)},
		{"", nil},
		{"Hunt sales price", money(r.HuntSales.Price)},
		{"Hunt sales tax", money(r.HuntSales.Tax)},
		{"Hunt sales variable fee", money(r.HuntSales.VariableFee)},
		{"Hunt sales total", money(r.HuntSales.Total)},
		{"Producer sales price", money(r.ProducerSales.Price)},
		{"Producer sales tax", money(r.ProducerSales.Tax)},
		{"Producer sales variable fee", money(r.ProducerSales.VariableFee)},
		{"Producer sales total", money(r.ProducerSales.Total)},
		{"", nil},
		{"Gross profit", money(r.GlobalCalculations.GananciaBrutaHunt)},
		{"Processor deductions", money(r.GlobalCalculations.DeduccionesBoldTotal)},
		{"4x1000 tax", money(r.GlobalCalculations.Impuesto4x1000)},
		{"Net profit", money(r.GlobalCalculations.GananciaNetaHunt)},
		{"Total tax", money(r.TotalTax)},
		{"Settlement amount", money(r.SettlementAmount)},
	}
	if d := r.DatafonoCalculations; d != nil {
		rows = append(rows,
			cellRow{"", nil},
			cellRow{"Terminal sales", money(d.TotalAmount)},
			cellRow{"Terminal POS fee", money(d.PosFee)},
			cellRow{"Terminal commission", money(d.HuntCommission)},
			cellRow{"Tax on commission", money(d.TaxOnCommission)},
			cellRow{"Terminal net benefit", money(d.HuntNetBenefit)},
			cellRow{"Producer net (terminal)", money(d.ProducerNetAmount)},
		)
	}
	rows = append(rows,
		cellRow{"", nil},
		cellRow{"Revenue discrepancy", money(r.Validation.RevenueDiscrepancy)},
		cellRow{"Mismatched transactions", r.Validation.MismatchedTransactions},
		cellRow{"Invalid transactions", r.Validation.InvalidTransactions},
	)
	return rows
}

func ledgerRows(l *settlement.LedgerSummary) []cellRow {
	return []cellRow{
		{"", nil},
		{"Advances paid", money(l.TotalPayments)},
		{"Debts", money(l.TotalDebts)},
		{"Net advances", money(l.NetAdvances)},
		{"Remaining balance", money(l.RemainingBalance)},
		{"Advance percentage", money(l.AdvancePercentage)},
		{"Ledger status", l.Status},
	}
}

// ExportFinancialReport writes the report, and the advance ledger when given,
// as label/value rows on a single sheet.
func ExportFinancialReport(report *settlement.FinancialReport, ledger *settlement.LedgerSummary) (*excelize.File, error) {
	if report == nil {
		return nil, fmt.Errorf("no financial report to export")
	}
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}

	rows := reportRows(report)
	if ledger != nil {
		rows = append(rows, ledgerRows(ledger)...)
	}

	if err := f.SetCellValue(SheetName, "A1", "Concept"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(SheetName, "B1", "Value"); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if row.label == "" {
			continue
		}
		rowNo := i + 2
		if err := f.SetCellValue(SheetName, "A"+fmt.Sprint(rowNo), row.label); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(SheetName, "B"+fmt.Sprint(rowNo), row.value); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(SheetName, "A", "A", 32); err != nil {
		return nil, err
	}
	return f, nil
}
