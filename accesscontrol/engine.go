// Package accesscontrol cross-checks issued QR credentials against paid
// transactions: expected vs. issued counts, per-transaction shortfalls,
// orphan credentials and the paginated credential listing.
package accesscontrol

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hunttickets/backoffice_backend/batch"
	"github.com/hunttickets/backoffice_backend/config"
	"github.com/hunttickets/backoffice_backend/metrics"
	"github.com/hunttickets/backoffice_backend/models"
	"github.com/hunttickets/backoffice_backend/sales"
	"github.com/hunttickets/backoffice_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("backoffice/accesscontrol")

type Engine struct {
	aggregator  *sales.Aggregator
	tickets     models.TicketStore
	sources     []models.TransactionSource
	credentials models.CredentialStore
	profiles    models.ProfileStore
	opts        batch.Options
}

func NewEngine(stores *models.Stores, opts batch.Options) *Engine {
	return &Engine{
		aggregator:  sales.NewAggregator(stores.Tickets, stores.Sources),
		tickets:     stores.Tickets,
		sources:     stores.Sources,
		credentials: stores.Credentials,
		profiles:    stores.Profiles,
		opts:        opts,
	}
}

// NewEngineFromConfig sizes credential chunks from CREDENTIAL_CHUNK_SIZE and
// CREDENTIAL_CHUNK_PARALLELISM.
func NewEngineFromConfig(stores *models.Stores) *Engine {
	return NewEngine(stores, batch.Options{
		ChunkSize:   config.CredentialChunkSize(),
		Parallelism: config.CredentialChunkParallelism(),
	})
}

// Stats.Partial means at least one credential chunk failed; the credential
// counts are then a lower bound, not ground truth. MissingCredentials only
// covers transactions whose credentials were read; the quantity of the rest is
// UnverifiedCredentials.
type Stats struct {
	TotalTransactions       int  `json:"total_transactions"`
	ExpectedCredentials     int  `json:"expected_credentials"`
	ActualCredentials       int  `json:"actual_credentials"`
	MissingCredentials      int  `json:"missing_credentials"`
	UnverifiedCredentials   int  `json:"unverified_credentials"`
	ScannedCredentials      int  `json:"scanned_credentials"`
	AppleWalletCount        int  `json:"apple_wallet_count"`
	GoogleWalletCount       int  `json:"google_wallet_count"`
	TransactionsWithMissing int  `json:"transactions_with_missing"`
	Partial                 bool `json:"partial"`
	FailedChunks            int  `json:"failed_chunks"`
}

type TransactionShortfall struct {
	TransactionId string         `json:"transaction_id"`
	Channel       models.Channel `json:"channel"`
	TicketId      string         `json:"ticket_id"`
	UserId        string         `json:"user_id"`
	Expected      int            `json:"expected"`
	Actual        int            `json:"actual"`
	Missing       int            `json:"missing"`
}

type MissingReport struct {
	EventId      string                 `json:"event_id"`
	Transactions []TransactionShortfall `json:"transactions"`
	Partial      bool                   `json:"partial"`
	FailedChunks int                    `json:"failed_chunks"`
}

// reconciliation is the joined state behind Stats and MissingByTransaction.
type reconciliation struct {
	transactions []models.Transaction
	credentials  *batch.Result[models.Credential]
	issued       map[string]int
	// transactions whose credential chunk failed; their issued count is unknown
	unknown map[string]bool
}

// Missing is max(0, expected - actual).
func Missing(expected, actual int) int {
	return max(0, expected-actual)
}

func (e *Engine) reconcile(ctx context.Context, eventId string) (*reconciliation, error) {
	snapshot, err := e.aggregator.Load(ctx, eventId)
	if err != nil {
		return nil, err
	}
	transactions := snapshot.All()
	ids := make([]string, 0, len(transactions))
	for _, tx := range transactions {
		ids = append(ids, tx.Id)
	}

	res, err := batch.ChunkedFetch(ctx, ids, e.opts, e.credentials.ListByTransactionIds)
	if err != nil {
		return nil, err
	}
	logger := config.GetLogger()
	unknown := make(map[string]bool)
	for _, ce := range res.Errors {
		for _, id := range ids[ce.Offset : ce.Offset+ce.Size] {
			unknown[id] = true
		}
		config.LogError(logger, "accesscontrol", "reconcile", "credential chunk", logrus.Fields{
			"event_id":    eventId,
			"chunk_index": ce.Index,
			"chunk_size":  ce.Size,
		}, ce.Err)
	}
	metrics.RecordCredentialChunks(res.Chunks-res.FailedChunks, res.FailedChunks)

	issued := make(map[string]int, len(transactions))
	for _, c := range res.Items {
		issued[c.TransactionId]++
	}
	return &reconciliation{transactions: transactions, credentials: res, issued: issued, unknown: unknown}, nil
}

// Stats compares the credentials expected from paid quantities with those issued.
func (e *Engine) Stats(ctx context.Context, eventId string) (*Stats, error) {
	if strings.TrimSpace(eventId) == "" {
		return nil, utils.InvalidInput("event id is required")
	}
	ctx, span := tracer.Start(ctx, "accesscontrol.Stats")
	defer span.End()
	span.SetAttributes(attribute.String("event_id", eventId))
	started := time.Now()

	r, err := e.reconcile(ctx, eventId)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	stats := &Stats{
		TotalTransactions: len(r.transactions),
		ActualCredentials: len(r.credentials.Items),
		FailedChunks:      r.credentials.FailedChunks,
		Partial:           r.credentials.Partial(),
	}
	for _, tx := range r.transactions {
		if !tx.IsValid() {
			continue
		}
		stats.ExpectedCredentials += tx.Quantity
		if r.unknown[tx.Id] {
			stats.UnverifiedCredentials += tx.Quantity
			continue
		}
		if Missing(tx.Quantity, r.issued[tx.Id]) > 0 {
			stats.TransactionsWithMissing++
		}
	}
	for _, c := range r.credentials.Items {
		if c.Scanned {
			stats.ScannedCredentials++
		}
		if c.AppleWallet {
			stats.AppleWalletCount++
		}
		if c.GoogleWallet {
			stats.GoogleWalletCount++
		}
	}
	stats.MissingCredentials = Missing(stats.ExpectedCredentials-stats.UnverifiedCredentials, stats.ActualCredentials)

	span.SetAttributes(attribute.Bool("partial", stats.Partial))
	metrics.RecordReport("access_control_stats", time.Since(started).Seconds())
	if stats.Partial {
		config.GetLogger().WithFields(logrus.Fields{
			"event_id":      eventId,
			"failed_chunks": stats.FailedChunks,
			"chunks":        r.credentials.Chunks,
		}).Warn("access-control stats are partial")
	}
	return stats, nil
}

// MissingByTransaction lists every paid transaction with fewer credentials than
// its quantity, largest shortfall first. Transactions from a failed chunk are
// left out and the report is marked partial.
func (e *Engine) MissingByTransaction(ctx context.Context, eventId string) (*MissingReport, error) {
	if strings.TrimSpace(eventId) == "" {
		return nil, utils.InvalidInput("event id is required")
	}
	ctx, span := tracer.Start(ctx, "accesscontrol.MissingByTransaction")
	defer span.End()

	r, err := e.reconcile(ctx, eventId)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	report := &MissingReport{
		EventId:      eventId,
		Transactions: []TransactionShortfall{},
		Partial:      r.credentials.Partial(),
		FailedChunks: r.credentials.FailedChunks,
	}
	for _, tx := range r.transactions {
		if r.unknown[tx.Id] || !tx.IsValid() {
			continue
		}
		actual := r.issued[tx.Id]
		missing := Missing(tx.Quantity, actual)
		if missing == 0 {
			continue
		}
		report.Transactions = append(report.Transactions, TransactionShortfall{
			TransactionId: tx.Id,
			Channel:       tx.Channel,
			TicketId:      tx.TicketId,
			UserId:        tx.UserId,
			Expected:      tx.Quantity,
			Actual:        actual,
			Missing:       missing,
		})
	}
	sort.SliceStable(report.Transactions, func(i, j int) bool {
		a, b := report.Transactions[i], report.Transactions[j]
		if a.Missing != b.Missing {
			return a.Missing > b.Missing
		}
		return a.TransactionId < b.TransactionId
	})
	return report, nil
}
