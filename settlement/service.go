package settlement

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hunttickets/backoffice_backend/config"
	"github.com/hunttickets/backoffice_backend/metrics"
	"github.com/hunttickets/backoffice_backend/models"
	"github.com/hunttickets/backoffice_backend/sales"
	"github.com/hunttickets/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("backoffice/settlement")

const (
	ReportStatusOK    = "ok"
	ReportStatusEmpty = "empty"
)

// ReportResult distinguishes "no sales yet" (Status empty, Report nil) from a computed report.
type ReportResult struct {
	Status string           `json:"status"`
	Report *FinancialReport `json:"report"`
}

type SettlementView struct {
	EventId          string            `json:"event_id"`
	ReportStatus     string            `json:"report_status"`
	SettlementAmount decimal.Decimal   `json:"settlement_amount"`
	Ledger           LedgerSummary     `json:"ledger"`
	Advances         []*models.Advance `json:"advances"`
}

type Service struct {
	aggregator *sales.Aggregator
	fees       models.FeeStore
	advances   models.AdvanceStore
	now        func() time.Time
}

func NewService(stores *models.Stores) *Service {
	return &Service{
		aggregator: sales.NewAggregator(stores.Tickets, stores.Sources),
		fees:       stores.Fees,
		advances:   stores.Advances,
		now:        time.Now,
	}
}

// FinancialReport computes the event's report, or the empty state when nothing was sold.
// Upstream failures come back as *utils.FetchError; a missing rate as ErrFeeConfigMissing.
func (s *Service) FinancialReport(ctx context.Context, eventId string) (*ReportResult, error) {
	if strings.TrimSpace(eventId) == "" {
		return nil, utils.InvalidInput("event id is required")
	}
	ctx, span := tracer.Start(ctx, "settlement.FinancialReport", trace.WithAttributes(attribute.String("event_id", eventId)))
	defer span.End()

	started := time.Now()
	logger := config.GetLogger()

	fee, err := s.fees.GetByEvent(ctx, eventId)
	if err != nil {
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			config.LogError(logger, "settlement", "FinancialReport", "get fee", eventId, err)
			return nil, utils.NewFetchError("fees", err)
		}
		fee = nil
	}

	cacheKey := ""
	if config.ReportCacheEnabled() {
		stamp, err := s.aggregator.PaidStamp(ctx, eventId)
		if err != nil {
			return nil, err
		}
		var feeUpdatedAt time.Time
		if fee != nil {
			feeUpdatedAt = fee.UpdatedAt
		}
		cacheKey = reportCacheKey(eventId, stamp, feeUpdatedAt)

		var cached ReportResult
		ok, err := cacheGet(ctx, cacheKey, &cached)
		switch {
		case err != nil:
			metrics.RecordReportCache("error")
			config.LogError(logger, "settlement", "FinancialReport", "cache get", cacheKey, err)
		case ok:
			metrics.RecordReportCache("hit")
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return &cached, nil
		default:
			metrics.RecordReportCache("miss")
		}
	}

	snapshot, err := s.aggregator.Load(ctx, eventId)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	agg := sales.Aggregate(snapshot)

	result := &ReportResult{Status: ReportStatusEmpty}
	if !agg.Empty() {
		report, err := Build(agg, fee, s.now())
		if err != nil {
			config.LogError(logger, "settlement", "FinancialReport", "build", eventId, err)
			return nil, err
		}
		report.Validation = Validate(report.ChannelsTotal, agg.TicketTypeRevenue(), snapshot.Tickets, snapshot.All())
		result = &ReportResult{Status: ReportStatusOK, Report: report}

		if report.Validation.Flagged {
			logger.WithFields(logrus.Fields{
				"event_id":                eventId,
				"revenue_discrepancy":     report.Validation.RevenueDiscrepancy.String(),
				"mismatched_transactions": report.Validation.MismatchedTransactions,
				"invalid_transactions":    report.Validation.InvalidTransactions,
			}).Warn("financial report flagged for review")
		}
	}

	if cacheKey != "" {
		if err := cacheSet(ctx, cacheKey, result, config.ReportCacheTTL()); err != nil {
			config.LogError(logger, "settlement", "FinancialReport", "cache set", cacheKey, err)
		}
	}

	metrics.RecordReport("financial_report", time.Since(started).Seconds())
	logSlowReport(ctx, "financial_report", started, logrus.Fields{
		"event_id":     eventId,
		"transactions": agg.Total.TransactionCount,
	})
	return result, nil
}

// Settlement folds the event's advances against the current settlement amount.
// Nothing is stored; the balance is recomputed on every call.
func (s *Service) Settlement(ctx context.Context, eventId string) (*SettlementView, error) {
	result, err := s.FinancialReport(ctx, eventId)
	if err != nil {
		return nil, err
	}
	advances, err := s.advances.ListByEvent(ctx, eventId)
	if err != nil {
		config.LogError(config.GetLogger(), "settlement", "Settlement", "list advances", eventId, err)
		return nil, utils.NewFetchError("advances", err)
	}

	ledger := FoldAdvances(settlementAmountOf(result), advances)
	if advances == nil {
		advances = []*models.Advance{}
	}
	return &SettlementView{
		EventId:          eventId,
		ReportStatus:     result.Status,
		SettlementAmount: ledger.SettlementAmount,
		Ledger:           ledger,
		Advances:         advances,
	}, nil
}

func settlementAmountOf(result *ReportResult) decimal.Decimal {
	if result == nil || result.Report == nil {
		return decimal.Zero
	}
	return result.Report.SettlementAmount
}
