package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/hunttickets/backoffice_backend/config"
	"github.com/hunttickets/backoffice_backend/metrics"
	"github.com/hunttickets/backoffice_backend/models"
	"github.com/hunttickets/backoffice_backend/models/modeltest"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func cashFixture() *modeltest.Fixture {
	f := modeltest.New()
	f.Fees.Rows[eventId] = modeltest.StandardFee(eventId)
	f.AddTicket(eventId, "door", "Door", 40000, 100)
	f.AddPaid(models.ChannelCash, "door", 5, 1, 40000)
	return f
}

// withCache enables the report cache against a mocked redis client. want is the
// report computed before the cache is attached.
func withCache(t *testing.T, f *modeltest.Fixture) (svc *Service, mock redismock.ClientMock, key string, want []byte) {
	t.Helper()
	t.Setenv("ENABLE_REPORT_CACHE", "true")
	config.SetRedisDB(nil)
	ctx := context.Background()

	svc = newTestService(f)
	result, err := svc.FinancialReport(ctx, eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, err = json.Marshal(result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stamp, err := svc.aggregator.PaidStamp(ctx, eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var feeUpdatedAt time.Time
	if fee := f.Fees.Rows[eventId]; fee != nil {
		feeUpdatedAt = fee.UpdatedAt
	}
	key = reportCacheKey(eventId, stamp, feeUpdatedAt)

	db, mock := redismock.NewClientMock()
	config.SetRedisDB(db)
	t.Cleanup(func() { config.SetRedisDB(nil) })
	return svc, mock, key, want
}

func cacheCount(result string) float64 {
	return testutil.ToFloat64(metrics.ReportCacheTotal.WithLabelValues(result))
}

func TestFinancialReport_CacheMissThenHit(t *testing.T) {
	f := cashFixture()
	svc, mock, key, want := withCache(t, f)
	ctx := context.Background()
	misses, hits := cacheCount("miss"), cacheCount("hit")

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, want, config.ReportCacheTTL()).SetVal("OK")
	first, err := svc.FinancialReport(ctx, eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustEqual(t, "settlement_amount", first.Report.SettlementAmount, d("142000"))

	loads := f.Cash.Calls.Load()
	mock.ExpectGet(key).SetVal(string(want))
	second, err := svc.FinancialReport(ctx, eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Cash.Calls.Load() != loads {
		t.Fatalf("a cache hit must not read the channels")
	}
	if second.Status != ReportStatusOK || second.Report == nil {
		t.Fatalf("unexpected cached result %+v", second)
	}
	mustEqual(t, "settlement_amount", second.Report.SettlementAmount, first.Report.SettlementAmount)
	mustEqual(t, "total_tax", second.Report.TotalTax, first.Report.TotalTax)
	if second.Report.DatafonoCalculations != nil {
		t.Fatalf("terminal figures must stay absent after the round trip")
	}
	if !second.Report.Timestamp.Equal(first.Report.Timestamp) {
		t.Fatalf("timestamp changed through the cache: %s", second.Report.Timestamp)
	}
	raw, _ := json.Marshal(second)
	if string(raw) != string(want) {
		t.Fatalf("cached payload differs:\n%s\n%s", raw, want)
	}

	if got := cacheCount("miss") - misses; got != 1 {
		t.Fatalf("expected 1 miss, got %v", got)
	}
	if got := cacheCount("hit") - hits; got != 1 {
		t.Fatalf("expected 1 hit, got %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet redis expectations: %v", err)
	}
}

func TestFinancialReport_CachedEmptyState(t *testing.T) {
	f := modeltest.New()
	f.AddTicket(eventId, "general", "General", 50000, 100)
	svc, mock, key, want := withCache(t, f)

	mock.ExpectGet(key).SetVal(string(want))
	result, err := svc.FinancialReport(context.Background(), eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != ReportStatusEmpty || result.Report != nil {
		t.Fatalf("expected the empty state from cache, got %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet redis expectations: %v", err)
	}
}

func TestFinancialReport_CacheErrorFallsBackToCompute(t *testing.T) {
	f := cashFixture()
	svc, mock, key, want := withCache(t, f)
	errorsBefore := cacheCount("error")

	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectSet(key, want, config.ReportCacheTTL()).SetErr(errors.New("connection refused"))
	result, err := svc.FinancialReport(context.Background(), eventId)
	if err != nil {
		t.Fatalf("a cache failure must not fail the report: %v", err)
	}
	mustEqual(t, "settlement_amount", result.Report.SettlementAmount, d("142000"))
	if got := cacheCount("error") - errorsBefore; got != 1 {
		t.Fatalf("expected 1 cache error, got %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet redis expectations: %v", err)
	}
}

func TestFinancialReport_NewSaleMissesOldEntry(t *testing.T) {
	f := cashFixture()
	svc, mock, key, _ := withCache(t, f)

	f.AddPaid(models.ChannelCash, "door", 1, 1, 40000)
	stamp, err := svc.aggregator.PaidStamp(context.Background(), eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reportCacheKey(eventId, stamp, f.Fees.Rows[eventId].UpdatedAt) == key {
		t.Fatalf("a new sale must produce a new cache key")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected redis calls: %v", err)
	}
}
