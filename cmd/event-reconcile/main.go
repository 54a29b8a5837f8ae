// event-reconcile prints one event's financial report, advance ledger,
// access-control stats and orphan credentials as JSON.
//
// Usage (from backend directory):
//
//	DB_HOST=... DB_USER=... DB_PASSWORD=... DB_NAME=... go run ./cmd/event-reconcile --event-id <id> [--xlsx out.xlsx]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hunttickets/backoffice_backend/accesscontrol"
	"github.com/hunttickets/backoffice_backend/config"
	"github.com/hunttickets/backoffice_backend/models"
	"github.com/hunttickets/backoffice_backend/models/reports"
	"github.com/hunttickets/backoffice_backend/settlement"
	"github.com/hunttickets/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type output struct {
	EventId  string                      `json:"event_id"`
	Report   *settlement.ReportResult    `json:"report"`
	Ledger   settlement.LedgerSummary    `json:"ledger"`
	Advances []*models.Advance           `json:"advances"`
	Stats    *accesscontrol.Stats        `json:"access_control"`
	Orphans  *accesscontrol.OrphanReport `json:"orphans,omitempty"`
}

func main() {
	eventID := flag.String("event-id", "", "Required: event id")
	skipOrphans := flag.Bool("skip-orphans", false, "Skip orphan credential detection")
	xlsxPath := flag.String("xlsx", "", "Optional: also write the settlement workbook to this path")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	if strings.TrimSpace(*eventID) == "" {
		fmt.Fprintln(os.Stderr, "--event-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if err := models.GuardSourceTables(db); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := config.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = utils.SetUsernameInContext(ctx, "event-reconcile")

	stores := models.NewStores(db)
	service := settlement.NewService(stores)
	engine := accesscontrol.NewEngineFromConfig(stores)

	out := output{EventId: *eventID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Advances, err = models.GetAdvances(gctx, stores.Advances, *eventID)
		return err
	})
	g.Go(func() (err error) {
		out.Report, err = service.FinancialReport(gctx, *eventID)
		return err
	})
	g.Go(func() (err error) {
		out.Stats, err = engine.Stats(gctx, *eventID)
		return err
	})
	if !*skipOrphans {
		g.Go(func() (err error) {
			out.Orphans, err = engine.DetectOrphans(gctx, *eventID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		logger.WithFields(logrus.Fields{"event_id": *eventID, "retryable": utils.IsFetchError(err)}).Error(err.Error())
		if utils.IsFetchError(err) {
			os.Exit(3)
		}
		os.Exit(2)
	}

	settlementAmount := decimal.Zero
	if out.Report.Report != nil {
		settlementAmount = out.Report.Report.SettlementAmount
	}
	out.Ledger = settlement.FoldAdvances(settlementAmount, out.Advances)

	if *xlsxPath != "" && out.Report.Report != nil {
		f, err := reports.ExportFinancialReport(out.Report.Report, &out.Ledger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
			os.Exit(1)
		}
		if err := f.SaveAs(*xlsxPath); err != nil {
			fmt.Fprintf(os.Stderr, "save %s: %v\n", *xlsxPath, err)
			os.Exit(1)
		}
		_ = f.Close()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
	if out.Stats.Partial {
		fmt.Fprintf(os.Stderr, "warning: %d credential chunk(s) failed; credential counts are a lower bound\n", out.Stats.FailedChunks)
	}
}
