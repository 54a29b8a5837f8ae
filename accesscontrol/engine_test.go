package accesscontrol

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/hunttickets/backoffice_backend/batch"
	"github.com/hunttickets/backoffice_backend/models"
	"github.com/hunttickets/backoffice_backend/models/modeltest"
	"github.com/hunttickets/backoffice_backend/utils"
)

const eventId = "ev-1"

func newEngine(f *modeltest.Fixture, chunkSize int) *Engine {
	return NewEngine(f.Stores, batch.Options{ChunkSize: chunkSize, Parallelism: 3})
}

func TestMissing(t *testing.T) {
	cases := []struct {
		expected, actual, want int
	}{
		{100, 97, 3},
		{5, 5, 0},
		{2, 7, 0},
		{0, 0, 0},
		{0, 3, 0},
	}
	for _, tc := range cases {
		if got := Missing(tc.expected, tc.actual); got != tc.want {
			t.Fatalf("Missing(%d, %d) = %d, want %d", tc.expected, tc.actual, got, tc.want)
		}
	}
}

func TestStats_ScenarioThreeMissing(t *testing.T) {
	f := modeltest.New()
	f.AddTicket(eventId, "door", "Door", 40000, 200)
	txs := f.AddPaid(models.ChannelCash, "door", 100, 1, 40000)
	for _, tx := range txs[:97] {
		f.IssueCredentials(eventId, tx, 1)
	}
	f.Credentials.Rows[0].Scanned = true
	f.Credentials.Rows[1].AppleWallet = true

	stats, err := newEngine(f, 25).Stats(context.Background(), eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.ExpectedCredentials != 100 || stats.ActualCredentials != 97 || stats.MissingCredentials != 3 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.TotalTransactions != 100 || stats.TransactionsWithMissing != 3 {
		t.Fatalf("unexpected transaction counts: %+v", stats)
	}
	if stats.ScannedCredentials != 1 || stats.AppleWalletCount != 1 || stats.GoogleWalletCount != 0 {
		t.Fatalf("unexpected usage counts: %+v", stats)
	}
	if stats.Partial {
		t.Fatalf("no chunk failed, stats must not be partial")
	}
}

func TestStats_RespectsChunkCeiling(t *testing.T) {
	f := modeltest.New()
	f.AddTicket(eventId, "general", "General", 50000, 500)
	for _, tx := range f.AddPaid(models.ChannelApp, "general", 45, 2, 50000) {
		f.IssueCredentials(eventId, tx, 2)
	}

	stats, err := newEngine(f, 10).Stats(context.Background(), eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.ActualCredentials != 90 || stats.MissingCredentials != 0 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if n := f.Credentials.MaxIdsPerLookup(); n > 10 {
		t.Fatalf("a lookup carried %d ids, ceiling is 10", n)
	}
	if n := f.Credentials.Lookups(); n != 5 {
		t.Fatalf("expected 5 chunked lookups, got %d", n)
	}
}

func TestStats_FailedChunkIsPartial(t *testing.T) {
	f := modeltest.New()
	f.AddTicket(eventId, "door", "Door", 40000, 200)
	txs := f.AddPaid(models.ChannelCash, "door", 30, 1, 40000)
	for _, tx := range txs {
		f.IssueCredentials(eventId, tx, 1)
	}
	poisoned := txs[12].Id
	f.Credentials.FailChunk = func(ids []string) error {
		if slices.Contains(ids, poisoned) {
			return errors.New("request entity too large")
		}
		return nil
	}

	engine := newEngine(f, 10)
	stats, err := engine.Stats(context.Background(), eventId)
	if err != nil {
		t.Fatalf("a failed chunk must not fail the call: %v", err)
	}
	if !stats.Partial || stats.FailedChunks != 1 {
		t.Fatalf("expected a partial result with one failed chunk, got %+v", stats)
	}
	if stats.ActualCredentials != 20 {
		t.Fatalf("expected 20 credentials from the healthy chunks, got %d", stats.ActualCredentials)
	}
	if stats.TransactionsWithMissing != 0 {
		t.Fatalf("transactions in the failed chunk must not be reported missing, got %d", stats.TransactionsWithMissing)
	}
	if stats.MissingCredentials != 0 || stats.UnverifiedCredentials != 10 {
		t.Fatalf("expected 0 missing and 10 unverified credentials, got %+v", stats)
	}

	report, err := engine.MissingByTransaction(context.Background(), eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Partial || len(report.Transactions) != 0 {
		t.Fatalf("expected an empty partial report, got %+v", report)
	}
}

func TestStats_FailedChunkKeepsShortfallOfReadChunks(t *testing.T) {
	f := modeltest.New()
	f.AddTicket(eventId, "door", "Door", 40000, 200)
	txs := f.AddPaid(models.ChannelCash, "door", 30, 1, 40000)
	for i, tx := range txs {
		if i == 3 {
			continue
		}
		f.IssueCredentials(eventId, tx, 1)
	}
	poisoned := txs[25].Id
	f.Credentials.FailChunk = func(ids []string) error {
		if slices.Contains(ids, poisoned) {
			return errors.New("timeout")
		}
		return nil
	}

	stats, err := newEngine(f, 10).Stats(context.Background(), eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.MissingCredentials != 1 || stats.TransactionsWithMissing != 1 {
		t.Fatalf("expected one missing credential, got %+v", stats)
	}
	if stats.ActualCredentials != 19 || stats.UnverifiedCredentials != 10 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
}

func TestStats_ChannelFailureIsFetchError(t *testing.T) {
	f := modeltest.New()
	f.AddTicket(eventId, "door", "Door", 40000, 200)
	f.AddPaid(models.ChannelCash, "door", 3, 1, 40000)
	f.App.Err = errors.New("connection reset")

	stats, err := newEngine(f, 10).Stats(context.Background(), eventId)
	if stats != nil || !utils.IsFetchError(err) {
		t.Fatalf("expected fetch error, got %+v / %v", stats, err)
	}
	if f.Credentials.Lookups() != 0 {
		t.Fatalf("credentials must not be read after a channel failure")
	}
}

func TestStats_RejectsEmptyEventId(t *testing.T) {
	f := modeltest.New()
	_, err := newEngine(f, 10).Stats(context.Background(), "  ")
	if !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if f.App.Calls.Load() != 0 {
		t.Fatalf("no query may be issued for invalid input")
	}
}

func TestMissingByTransaction_LargestShortfallFirst(t *testing.T) {
	f := modeltest.New()
	f.AddTicket(eventId, "general", "General", 50000, 500)
	app := f.AddPaid(models.ChannelApp, "general", 2, 4, 50000)
	web := f.AddPaid(models.ChannelWeb, "general", 1, 3, 50000)
	f.IssueCredentials(eventId, app[0], 4)
	f.IssueCredentials(eventId, app[1], 3)

	report, err := newEngine(f, 10).MissingByTransaction(context.Background(), eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Transactions) != 2 {
		t.Fatalf("expected 2 short transactions, got %+v", report.Transactions)
	}
	first, second := report.Transactions[0], report.Transactions[1]
	if first.TransactionId != web[0].Id || first.Missing != 3 || first.Channel != models.ChannelWeb {
		t.Fatalf("unexpected first shortfall: %+v", first)
	}
	if second.TransactionId != app[1].Id || second.Expected != 4 || second.Actual != 3 || second.Missing != 1 {
		t.Fatalf("unexpected second shortfall: %+v", second)
	}
}
