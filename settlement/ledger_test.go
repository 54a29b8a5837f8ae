package settlement

import (
	"math/rand"
	"testing"

	"github.com/hunttickets/backoffice_backend/models"
	"github.com/shopspring/decimal"
)

func advance(amount int64, isDebt bool) *models.Advance {
	return &models.Advance{Amount: decimal.NewFromInt(amount), IsDebt: isDebt}
}

func TestFoldAdvances_ScenarioOverAdvanced(t *testing.T) {
	summary := FoldAdvances(decimal.NewFromInt(500), []*models.Advance{
		advance(1000, false),
		advance(200, true),
	})

	mustEqual(t, "total_payments", summary.TotalPayments, d("1000"))
	mustEqual(t, "total_debts", summary.TotalDebts, d("200"))
	mustEqual(t, "net_advances", summary.NetAdvances, d("800"))
	mustEqual(t, "remaining_balance", summary.RemainingBalance, d("-300"))
	mustEqual(t, "advance_percentage", summary.AdvancePercentage, d("160"))
	if !summary.OverAdvanced || summary.Status != LedgerStatusOverAdvanced {
		t.Fatalf("expected over-advanced state, got %+v", summary)
	}
}

func TestFoldAdvances_Statuses(t *testing.T) {
	cases := []struct {
		name       string
		settlement int64
		advances   []*models.Advance
		status     string
	}{
		{"no advances", 1000, nil, LedgerStatusPending},
		{"partial", 1000, []*models.Advance{advance(250, false)}, LedgerStatusPartial},
		{"settled", 1000, []*models.Advance{advance(1200, false), advance(200, true)}, LedgerStatusSettled},
		{"debts only", 1000, []*models.Advance{advance(100, true)}, LedgerStatusPending},
		{"zero settlement", 0, nil, LedgerStatusPending},
	}
	for _, tc := range cases {
		summary := FoldAdvances(decimal.NewFromInt(tc.settlement), tc.advances)
		if summary.Status != tc.status {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.status, summary.Status)
		}
	}
}

func TestFoldAdvances_ZeroSettlementPercentage(t *testing.T) {
	summary := FoldAdvances(decimal.Zero, []*models.Advance{advance(300, false)})
	if !summary.AdvancePercentage.IsZero() {
		t.Fatalf("expected zero percentage against zero settlement, got %s", summary.AdvancePercentage)
	}
	mustEqual(t, "remaining_balance", summary.RemainingBalance, d("-300"))
	if !summary.OverAdvanced {
		t.Fatalf("expected over-advanced")
	}
}

// remaining = settlement - (payments - debts) for arbitrary lists
func TestFoldAdvances_NetLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for round := 0; round < 300; round++ {
		settlementAmount := decimal.New(int64(rng.Intn(5_000_000)), -2)
		var advances []*models.Advance
		payments, debts := decimal.Zero, decimal.Zero
		for i := 0; i < rng.Intn(12); i++ {
			amount := decimal.New(int64(1+rng.Intn(900_000)), -2)
			isDebt := rng.Intn(3) == 0
			advances = append(advances, &models.Advance{Amount: amount, IsDebt: isDebt})
			if isDebt {
				debts = debts.Add(amount)
			} else {
				payments = payments.Add(amount)
			}
		}

		summary := FoldAdvances(settlementAmount, advances)
		want := settlementAmount.Sub(payments.Sub(debts))
		if !summary.RemainingBalance.Equal(want) {
			t.Fatalf("round %d: remaining %s, want %s", round, summary.RemainingBalance, want)
		}
		if summary.OverAdvanced != want.IsNegative() {
			t.Fatalf("round %d: over-advanced flag %v for remaining %s", round, summary.OverAdvanced, want)
		}
	}
}
