package accesscontrol

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/hunttickets/backoffice_backend/models"
	"github.com/hunttickets/backoffice_backend/models/modeltest"
	"github.com/hunttickets/backoffice_backend/utils"
)

func TestDetectOrphans_ScenarioSingleOrphan(t *testing.T) {
	f := modeltest.New()
	f.AddTicket(eventId, "general", "General", 50000, 500)
	for _, c := range models.Channels() {
		for _, tx := range f.AddPaid(c, "general", 2, 1, 50000) {
			f.IssueCredentials(eventId, tx, 1)
		}
	}
	// credentials of a refunded transaction still belong to a channel
	refunded := modeltest.PaidTx(models.ChannelWeb, "web-refunded", "general", 1, 50000)
	refunded.Status = "REFUNDED"
	f.Web.Txs = append(f.Web.Txs, refunded)
	f.IssueCredentials(eventId, refunded, 1)

	ghost := modeltest.PaidTx(models.ChannelApp, "ghost-tx", "general", 1, 50000)
	f.IssueCredentials(eventId, ghost, 1)

	report, err := newEngine(f, 10).DetectOrphans(context.Background(), eventId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.OrphanCount != 1 || len(report.Orphans) != 1 {
		t.Fatalf("expected exactly one orphan, got %+v", report.Orphans)
	}
	if report.Orphans[0].TransactionId != "ghost-tx" {
		t.Fatalf("unexpected orphan: %+v", report.Orphans[0])
	}
	if report.TotalCredentials != 8 || report.AssociatedCredentials != 7 {
		t.Fatalf("unexpected totals: %+v", report)
	}
	if report.ByChannel[models.ChannelWeb] != 3 || report.ByChannel[models.ChannelApp] != 2 || report.ByChannel[models.ChannelCash] != 2 {
		t.Fatalf("unexpected per-channel counts: %+v", report.ByChannel)
	}
}

func TestDetectOrphans_IncompleteIdSetFails(t *testing.T) {
	f := modeltest.New()
	f.AddTicket(eventId, "general", "General", 50000, 500)
	for _, tx := range f.AddPaid(models.ChannelCash, "general", 3, 1, 50000) {
		f.IssueCredentials(eventId, tx, 1)
	}
	f.Cash.Err = errors.New("timeout")

	report, err := newEngine(f, 10).DetectOrphans(context.Background(), eventId)
	if report != nil || !utils.IsFetchError(err) {
		t.Fatalf("a missing channel id set must fail, got %+v / %v", report, err)
	}
}

// a credential is an orphan iff its transaction id is in none of the sets
func TestClassifyCredentials_OrphanCompleteness(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	channels := models.Channels()
	for round := 0; round < 200; round++ {
		universe := 1 + rng.Intn(60)
		idSets := map[models.Channel][]string{}
		for _, c := range channels {
			for i := 0; i < universe; i++ {
				if rng.Intn(3) == 0 {
					idSets[c] = append(idSets[c], fmt.Sprintf("tx-%d", i))
				}
			}
		}
		var credentials []models.Credential
		n := rng.Intn(80)
		for i := 0; i < n; i++ {
			credentials = append(credentials, models.Credential{
				Id:            fmt.Sprintf("qr-%d", i),
				TransactionId: fmt.Sprintf("tx-%d", rng.Intn(universe+10)),
			})
		}

		got := ClassifyCredentials(credentials, idSets)

		orphans := map[string]bool{}
		for _, c := range got.Orphans {
			orphans[c.Id] = true
		}
		assigned := 0
		for _, c := range channels {
			assigned += len(got.Associated[c])
		}
		if assigned+len(got.Orphans) != len(credentials) {
			t.Fatalf("round %d: %d credentials classified into %d buckets", round, len(credentials), assigned+len(got.Orphans))
		}
		for _, cred := range credentials {
			var owner models.Channel
			for _, c := range channels {
				if slices.Contains(idSets[c], cred.TransactionId) {
					owner = c
					break
				}
			}
			if (owner == "") != orphans[cred.Id] {
				t.Fatalf("round %d: credential %s on %s misclassified", round, cred.Id, cred.TransactionId)
			}
			if owner != "" && !slices.ContainsFunc(got.Associated[owner], func(c models.Credential) bool { return c.Id == cred.Id }) {
				t.Fatalf("round %d: credential %s expected under %s", round, cred.Id, owner)
			}
		}
	}
}
