package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hunttickets/backoffice_backend/models"
	"github.com/hunttickets/backoffice_backend/models/modeltest"
	"github.com/hunttickets/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

func newTestService(f *modeltest.Fixture) *Service {
	s := NewService(f.Stores)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestFinancialReport_EmptyStateIsNotAnError(t *testing.T) {
	f := modeltest.New()
	f.AddTicket(eventId, "general", "General", 50000, 100)

	result, err := newTestService(f).FinancialReport(context.Background(), eventId)
	if err != nil {
		t.Fatalf("no sales and no fee record must still succeed: %v", err)
	}
	if result.Status != ReportStatusEmpty || result.Report != nil {
		t.Fatalf("expected empty state, got %+v", result)
	}

	raw, _ := json.Marshal(result)
	if string(raw) != `{"status":"empty","report":null}` {
		t.Fatalf("unexpected empty payload: %s", raw)
	}
}

func TestFinancialReport_MissingFeeFailsClosed(t *testing.T) {
	f := modeltest.New()
	f.AddTicket(eventId, "door", "Door", 40000, 100)
	f.AddPaid(models.ChannelCash, "door", 3, 1, 40000)

	_, err := newTestService(f).FinancialReport(context.Background(), eventId)
	if !errors.Is(err, utils.ErrFeeConfigMissing) {
		t.Fatalf("expected ErrFeeConfigMissing, got %v", err)
	}
}

func TestFinancialReport_ChannelFailureIsRetryable(t *testing.T) {
	f := modeltest.New()
	f.Fees.Rows[eventId] = modeltest.StandardFee(eventId)
	f.AddTicket(eventId, "door", "Door", 40000, 100)
	f.AddPaid(models.ChannelCash, "door", 3, 1, 40000)
	f.Cash.Err = errors.New("upstream 503")

	result, err := newTestService(f).FinancialReport(context.Background(), eventId)
	if result != nil || !utils.IsFetchError(err) {
		t.Fatalf("expected fetch error and no report, got %+v / %v", result, err)
	}
}

func TestFinancialReport_ComputesAndValidates(t *testing.T) {
	f := modeltest.New()
	f.Fees.Rows[eventId] = modeltest.StandardFee(eventId)
	f.AddTicket(eventId, "door", "Door", 40000, 100)
	f.AddPaid(models.ChannelCash, "door", 5, 1, 40000)

	result, err := newTestService(f).FinancialReport(context.Background(), eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != ReportStatusOK || result.Report == nil {
		t.Fatalf("expected a report, got %+v", result)
	}
	// 200000 - 19% tax - 10% fee
	mustEqual(t, "settlement_amount", result.Report.SettlementAmount, d("142000"))
	if result.Report.Validation.Flagged {
		t.Fatalf("unexpected flagged validation: %+v", result.Report.Validation)
	}
	if !result.Report.Timestamp.Equal(fixedNow) {
		t.Fatalf("unexpected timestamp %s", result.Report.Timestamp)
	}
}

func TestFinancialReport_FlagsInvalidRowsWithoutCountingThem(t *testing.T) {
	f := modeltest.New()
	f.Fees.Rows[eventId] = modeltest.StandardFee(eventId)
	f.AddTicket(eventId, "door", "Door", 40000, 100)
	f.AddPaid(models.ChannelCash, "door", 3, 1, 40000)
	f.Cash.Txs = append(f.Cash.Txs, modeltest.PaidTx(models.ChannelCash, "cash-bad", "door", -2, -80000))

	result, err := newTestService(f).FinancialReport(context.Background(), eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 120000 - 19% tax - 10% fee
	mustEqual(t, "settlement_amount", result.Report.SettlementAmount, d("85200"))
	v := result.Report.Validation
	if v.InvalidTransactions != 1 || !v.Flagged {
		t.Fatalf("expected one invalid row and a flagged report, got %+v", v)
	}
}

func TestFinancialReport_RejectsEmptyEventId(t *testing.T) {
	f := modeltest.New()
	_, err := newTestService(f).FinancialReport(context.Background(), "")
	if !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if f.Cash.Calls.Load() != 0 {
		t.Fatalf("no query may be issued for invalid input")
	}
}

func TestSettlement_FoldsAdvancesOnRead(t *testing.T) {
	f := modeltest.New()
	f.Fees.Rows[eventId] = modeltest.StandardFee(eventId)
	f.AddTicket(eventId, "door", "Door", 40000, 100)
	f.AddPaid(models.ChannelCash, "door", 5, 1, 40000)
	ctx := context.Background()

	in := &models.NewAdvance{
		Amount:        decimal.NewFromInt(100000),
		Concept:       "first payout",
		PaymentDate:   fixedNow,
		PaymentMethod: models.AdvancePaymentMethodTransfer,
	}
	if _, err := models.CreateAdvance(ctx, f.Stores.Advances, eventId, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc := newTestService(f)
	view, err := svc.Settlement(ctx, eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustEqual(t, "remaining_balance", view.Ledger.RemainingBalance, d("42000"))
	if view.Ledger.Status != LedgerStatusPartial || len(view.Advances) != 1 {
		t.Fatalf("unexpected settlement view: %+v", view)
	}

	in.Amount = decimal.NewFromInt(60000)
	if _, err := models.CreateAdvance(ctx, f.Stores.Advances, eventId, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	view, err = svc.Settlement(ctx, eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustEqual(t, "remaining_balance", view.Ledger.RemainingBalance, d("-18000"))
	if !view.Ledger.OverAdvanced {
		t.Fatalf("expected over-advanced after the second payout")
	}
}

func TestReportCacheKey_ChangesWithStamps(t *testing.T) {
	paid := models.PaidStamp{LatestAt: fixedNow, Count: 4}
	a := reportCacheKey(eventId, paid, fixedNow)
	b := reportCacheKey(eventId, models.PaidStamp{LatestAt: fixedNow.Add(time.Second), Count: 4}, fixedNow)
	c := reportCacheKey(eventId, paid, fixedNow.Add(time.Second))
	e := reportCacheKey(eventId, models.PaidStamp{LatestAt: fixedNow, Count: 5}, fixedNow)
	keys := map[string]bool{a: true, b: true, c: true, e: true}
	if len(keys) != 4 {
		t.Fatalf("expected distinct keys, got %s %s %s %s", a, b, c, e)
	}
	if reportCacheKey(eventId, models.PaidStamp{}, time.Time{}) != "FinancialReport:ev-1:0:0:0" {
		t.Fatalf("unexpected key for an event without sales")
	}
}
