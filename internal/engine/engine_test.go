package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/oraclebet/oraclebet/internal/bank"
	"github.com/oraclebet/oraclebet/internal/domain"
	"github.com/oraclebet/oraclebet/internal/oracle"
	"github.com/oraclebet/oraclebet/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv is a self-contained arena with a fixed, advanceable clock.
type testEnv struct {
	engine   *Engine
	registry *registry.Registry
	adapter  *oracle.StaticAdapter
	ledger   *bank.Ledger
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	reg := registry.New(nil, nil, nil, testLogger())
	adapter := oracle.NewStaticAdapter("test-provider", []domain.DataType{domain.DataTypePrice}, 1000)
	err := reg.Register(context.Background(), domain.Oracle{
		ID:        "oracle-1",
		Provider:  "test-provider",
		DataTypes: []domain.DataType{domain.DataTypePrice},
		BaseCost:  1000,
	}, adapter)
	if err != nil {
		t.Fatalf("register oracle: %v", err)
	}

	env := &testEnv{
		registry: reg,
		adapter:  adapter,
		ledger:   bank.New(),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.engine = New(reg, env.ledger, nil, nil, nil, nil, testLogger())
	env.engine.now = func() time.Time { return env.now }
	return env
}

func (env *testEnv) advance(d time.Duration) { env.now = env.now.Add(d) }

func (env *testEnv) fund(t *testing.T, account string, amount int64) {
	t.Helper()
	if err := env.ledger.Credit(context.Background(), account, "usdc", amount); err != nil {
		t.Fatalf("fund %s: %v", account, err)
	}
}

func (env *testEnv) balance(t *testing.T, account string) int64 {
	t.Helper()
	b, err := env.ledger.Balance(context.Background(), account, "usdc")
	if err != nil {
		t.Fatalf("balance %s: %v", account, err)
	}
	return b
}

// addMarket registers a two-outcome market lasting 24h from the env clock.
func (env *testEnv) addMarket(t *testing.T, id string) domain.Market {
	t.Helper()
	m := domain.Market{
		ID:           id,
		Question:     "will it settle",
		Outcomes:     []string{"yes", "no"},
		Creator:      "creator",
		CreatedAt:    env.now,
		EndTime:      env.now.Add(24 * time.Hour),
		PaymentAsset: "usdc",
		OracleID:     "oracle-1",
		DataType:     domain.DataTypePrice,
		Status:       domain.MarketStatusActive,
		OutcomePools: make([]int64, 2),
		UpdatedAt:    env.now,
	}
	if err := env.engine.AddMarket(context.Background(), m); err != nil {
		t.Fatalf("add market: %v", err)
	}
	return m
}

func TestAddMarkets_AllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	market := func(id string) domain.Market {
		return domain.Market{
			ID:           id,
			Question:     "q " + id,
			Outcomes:     []string{"yes", "no"},
			Creator:      "creator",
			CreatedAt:    env.now,
			EndTime:      env.now.Add(24 * time.Hour),
			PaymentAsset: "usdc",
			OracleID:     "oracle-1",
			DataType:     domain.DataTypePrice,
			Status:       domain.MarketStatusActive,
			OutcomePools: make([]int64, 2),
			UpdatedAt:    env.now,
		}
	}

	// The same id twice in one batch registers nothing.
	err := env.engine.AddMarkets(ctx, []domain.Market{market("m1"), market("m1")})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
	if got := env.engine.ListMarkets(""); len(got) != 0 {
		t.Fatalf("failed batch registered %d markets", len(got))
	}

	// A collision with the arena rejects the whole batch, including the
	// fresh id.
	env.addMarket(t, "m1")
	err = env.engine.AddMarkets(ctx, []domain.Market{market("m2"), market("m1")})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
	if _, err := env.engine.Market("m2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("m2 after failed batch: got %v, want ErrNotFound", err)
	}

	if err := env.engine.AddMarkets(ctx, []domain.Market{market("m2"), market("m3")}); err != nil {
		t.Fatalf("batch add: %v", err)
	}
	if got := env.engine.ListMarkets(""); len(got) != 3 {
		t.Fatalf("have %d markets, want 3", len(got))
	}
}

func TestMultiplierAt(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := created.Add(100 * time.Hour)

	cases := []struct {
		name string
		at   time.Time
		want int64
	}{
		{"at creation", created, 300},
		{"quarter through", created.Add(25 * time.Hour), 250},
		{"halfway", created.Add(50 * time.Hour), 200},
		{"at end", end, 100},
		{"after end", end.Add(time.Hour), 100},
		{"before creation", created.Add(-time.Hour), 300},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := multiplierAt(created, end, tc.at); got != tc.want {
				t.Errorf("multiplierAt = %d, want %d", got, tc.want)
			}
		})
	}

	// Strictly non-increasing over the betting window.
	prev := int64(301)
	for h := 0; h <= 100; h++ {
		got := multiplierAt(created, end, created.Add(time.Duration(h)*time.Hour))
		if got > prev {
			t.Fatalf("multiplier rose from %d to %d at hour %d", prev, got, h)
		}
		prev = got
	}
}

func TestBatchPlaceBets_FeesAndPools(t *testing.T) {
	env := newTestEnv(t)
	env.addMarket(t, "m1")
	env.fund(t, "alice", 2_000_000)
	ctx := context.Background()

	positions, err := env.engine.BatchPlaceBets(ctx, "m1", "alice", []domain.BetRequest{
		{Outcome: 0, Amount: 1_000_000},
		{Outcome: 1, Amount: 500_000},
	}, 1_500_000)
	if err != nil {
		t.Fatalf("place bets: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("got %d positions, want 2", len(positions))
	}

	// 2.5% platform + 0.5% oracle fee per bet, net staked on the outcome.
	if positions[0].Amount != 970_000 || positions[0].GrossAmount != 1_000_000 {
		t.Errorf("position 0 = %d/%d, want 970000/1000000", positions[0].Amount, positions[0].GrossAmount)
	}
	if positions[0].Multiplier != 300 {
		t.Errorf("multiplier at creation = %d, want 300", positions[0].Multiplier)
	}

	m, err := env.engine.Market("m1")
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	if m.PlatformFees != 37_500 {
		t.Errorf("platform fees = %d, want 37500", m.PlatformFees)
	}
	if m.OracleFees != 7_500 {
		t.Errorf("oracle fees = %d, want 7500", m.OracleFees)
	}
	if m.OutcomePools[0] != 970_000 || m.OutcomePools[1] != 485_000 {
		t.Errorf("pools = %v, want [970000 485000]", m.OutcomePools)
	}
	if m.TotalPool != 1_455_000 {
		t.Errorf("total pool = %d, want 1455000", m.TotalPool)
	}
	if m.TotalPool != m.OutcomePools[0]+m.OutcomePools[1] {
		t.Error("pool sum invariant violated")
	}
	if m.Volume != 1_500_000 {
		t.Errorf("volume = %d, want 1500000", m.Volume)
	}
	if got := env.balance(t, "alice"); got != 500_000 {
		t.Errorf("alice balance = %d, want 500000", got)
	}
}

func TestBatchPlaceBets_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.addMarket(t, "m1")
	env.fund(t, "alice", 10_000_000)
	ctx := context.Background()

	many := make([]domain.BetRequest, domain.MaxBatchSize+1)
	for i := range many {
		many[i] = domain.BetRequest{Outcome: 0, Amount: domain.MinBet}
	}

	cases := []struct {
		name    string
		bets    []domain.BetRequest
		payment int64
		want    error
	}{
		{"empty batch", nil, 0, domain.ErrInvalidInput},
		{"oversized batch", many, domain.MinBet * int64(len(many)), domain.ErrInvalidInput},
		{"outcome out of range", []domain.BetRequest{{Outcome: 2, Amount: domain.MinBet}}, domain.MinBet, domain.ErrInvalidInput},
		{"negative outcome", []domain.BetRequest{{Outcome: -1, Amount: domain.MinBet}}, domain.MinBet, domain.ErrInvalidInput},
		{"below minimum", []domain.BetRequest{{Outcome: 0, Amount: domain.MinBet - 1}}, domain.MinBet - 1, domain.ErrInvalidInput},
		{"payment short", []domain.BetRequest{{Outcome: 0, Amount: 100_000}}, 50_000, domain.ErrInsufficientFunds},
		{"payment over", []domain.BetRequest{{Outcome: 0, Amount: 100_000}}, 150_000, domain.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.BatchPlaceBets(ctx, "m1", "alice", tc.bets, tc.payment)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	// A failed batch leaves no partial state behind.
	m, _ := env.engine.Market("m1")
	if m.TotalPool != 0 || m.Volume != 0 {
		t.Errorf("failed batches mutated market: pool=%d volume=%d", m.TotalPool, m.Volume)
	}

	if _, err := env.engine.PlaceBet(ctx, "missing", "alice", 0, domain.MinBet); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown market: got %v, want ErrNotFound", err)
	}
	if _, err := env.engine.BatchPlaceBets(ctx, "m1", "", []domain.BetRequest{{Outcome: 0, Amount: domain.MinBet}}, domain.MinBet); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("missing bettor: got %v, want ErrInvalidInput", err)
	}
}

func TestPlaceBet_WindowAndFunds(t *testing.T) {
	env := newTestEnv(t)
	env.addMarket(t, "m1")
	ctx := context.Background()

	// No balance at all.
	if _, err := env.engine.PlaceBet(ctx, "m1", "broke", 0, 100_000); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("unfunded bettor: got %v, want ErrInsufficientFunds", err)
	}

	env.fund(t, "alice", 1_000_000)
	env.advance(25 * time.Hour)
	if _, err := env.engine.PlaceBet(ctx, "m1", "alice", 0, 100_000); !errors.Is(err, domain.ErrStateConflict) {
		t.Errorf("bet after end: got %v, want ErrStateConflict", err)
	}
}

func TestResolveMarket(t *testing.T) {
	env := newTestEnv(t)
	env.addMarket(t, "m1")
	ctx := context.Background()

	// Too early.
	if err := env.engine.ResolveMarket(ctx, "m1"); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("resolve before end: got %v, want ErrStateConflict", err)
	}

	env.advance(25 * time.Hour)

	// Oracle has no answer yet.
	if err := env.engine.ResolveMarket(ctx, "m1"); !errors.Is(err, domain.ErrOracleFailure) {
		t.Fatalf("unresolved oracle: got %v, want ErrOracleFailure", err)
	}
	m, _ := env.engine.Market("m1")
	if m.Status != domain.MarketStatusEnded {
		t.Fatalf("failed resolution moved status to %s", m.Status)
	}

	// Out-of-range outcome is an oracle failure too.
	env.adapter.SetResolution("m1", domain.Resolution{Outcome: 5, Resolved: true})
	if err := env.engine.ResolveMarket(ctx, "m1"); !errors.Is(err, domain.ErrOracleFailure) {
		t.Fatalf("out-of-range outcome: got %v, want ErrOracleFailure", err)
	}

	env.adapter.SetResolution("m1", domain.Resolution{Outcome: 1, Resolved: true, Proof: "feed:42"})
	if err := env.engine.ResolveMarket(ctx, "m1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	m, _ = env.engine.Market("m1")
	if m.Status != domain.MarketStatusResolved || m.WinningOutcome != 1 {
		t.Fatalf("market = %s/%d, want resolved/1", m.Status, m.WinningOutcome)
	}
	if m.DisputeDeadline == nil || !m.DisputeDeadline.Equal(env.now.Add(domain.DisputeWindow)) {
		t.Errorf("dispute deadline = %v, want now+24h", m.DisputeDeadline)
	}

	// Every resolution attempt fed the oracle's performance record.
	o, _ := env.registry.Get("oracle-1")
	if o.TotalRequests != 3 || o.SuccessfulRequests != 1 {
		t.Errorf("oracle counters = %d/%d, want 1/3", o.SuccessfulRequests, o.TotalRequests)
	}

	// Terminal: cannot resolve twice.
	if err := env.engine.ResolveMarket(ctx, "m1"); !errors.Is(err, domain.ErrStateConflict) {
		t.Errorf("double resolve: got %v, want ErrStateConflict", err)
	}
}

func TestClaimWinnings_PayoutAndIdempotence(t *testing.T) {
	env := newTestEnv(t)
	env.addMarket(t, "m1")
	env.fund(t, "alice", 1_000_000)
	env.fund(t, "bob", 1_000_000)
	ctx := context.Background()

	// Alice bets at creation (300%), Bob at the halfway point (200%).
	if _, err := env.engine.PlaceBet(ctx, "m1", "alice", 0, 1_000_000); err != nil {
		t.Fatalf("alice bet: %v", err)
	}
	env.advance(12 * time.Hour)
	if _, err := env.engine.PlaceBet(ctx, "m1", "bob", 1, 1_000_000); err != nil {
		t.Fatalf("bob bet: %v", err)
	}

	env.advance(13 * time.Hour)
	env.adapter.SetResolution("m1", domain.Resolution{Outcome: 0, Resolved: true})
	if err := env.engine.ResolveMarket(ctx, "m1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Alice holds the entire winning pool of 970000 in a total pool of
	// 1940000: base 1940000, bonus 200% of base = 3880000.
	got, err := env.engine.ClaimWinnings(ctx, "m1", "alice")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got != 5_820_000 {
		t.Errorf("payout = %d, want 5820000", got)
	}
	if b := env.balance(t, "alice"); b != 5_820_000 {
		t.Errorf("alice balance = %d, want 5820000", b)
	}

	// Claiming again finds nothing.
	if _, err := env.engine.ClaimWinnings(ctx, "m1", "alice"); !errors.Is(err, domain.ErrNoWinnings) {
		t.Errorf("second claim: got %v, want ErrNoWinnings", err)
	}
	if b := env.balance(t, "alice"); b != 5_820_000 {
		t.Errorf("second claim moved money: balance = %d", b)
	}

	// The losing side has no claim.
	if _, err := env.engine.ClaimWinnings(ctx, "m1", "bob"); !errors.Is(err, domain.ErrNoWinnings) {
		t.Errorf("losing claim: got %v, want ErrNoWinnings", err)
	}
}

func TestClaimWinnings_BeforeResolution(t *testing.T) {
	env := newTestEnv(t)
	env.addMarket(t, "m1")
	if _, err := env.engine.ClaimWinnings(context.Background(), "m1", "alice"); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("claim on active market: got %v, want ErrStateConflict", err)
	}
}

func TestDisputeFlow(t *testing.T) {
	env := newTestEnv(t)
	env.addMarket(t, "m1")
	env.fund(t, "alice", 2_000_000)
	env.fund(t, "bob", 2_000_000)
	ctx := context.Background()

	if _, err := env.engine.PlaceBet(ctx, "m1", "alice", 0, 1_000_000); err != nil {
		t.Fatalf("alice bet: %v", err)
	}
	if _, err := env.engine.PlaceBet(ctx, "m1", "bob", 1, 1_000_000); err != nil {
		t.Fatalf("bob bet: %v", err)
	}

	env.advance(25 * time.Hour)
	env.adapter.SetResolution("m1", domain.Resolution{Outcome: 0, Resolved: true})
	if err := env.engine.ResolveMarket(ctx, "m1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Outsiders cannot dispute.
	if err := env.engine.DisputeResolution(ctx, "m1", "mallory", "wrong", 1_000_000); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("outsider dispute: got %v, want ErrUnauthorized", err)
	}

	// The fee is 1% of the total pool (1940000 -> 19400).
	if err := env.engine.DisputeResolution(ctx, "m1", "bob", "bad feed", 10_000); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("underpaid dispute: got %v, want ErrInsufficientFunds", err)
	}
	bobBefore := env.balance(t, "bob")
	if err := env.engine.DisputeResolution(ctx, "m1", "bob", "bad feed", 19_400); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if b := env.balance(t, "bob"); b != bobBefore-19_400 {
		t.Errorf("dispute fee debit: balance = %d, want %d", b, bobBefore-19_400)
	}

	m, _ := env.engine.Market("m1")
	if m.Status != domain.MarketStatusDisputed || m.DisputeCount != 1 || !m.Disputed {
		t.Fatalf("market after dispute = %s count=%d disputed=%v", m.Status, m.DisputeCount, m.Disputed)
	}

	// Claims blocked while the dispute is open.
	if _, err := env.engine.ClaimWinnings(ctx, "m1", "alice"); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("claim while disputed: got %v, want ErrStateConflict", err)
	}

	// Governance upholds the dispute and flips the outcome.
	if err := env.engine.ResolveDispute(ctx, "m1", true, 1); err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}
	m, _ = env.engine.Market("m1")
	if m.Status != domain.MarketStatusResolved || m.WinningOutcome != 1 || m.Disputed {
		t.Fatalf("market after ruling = %s/%d disputed=%v", m.Status, m.WinningOutcome, m.Disputed)
	}

	// A disputed market waits out the extended window before paying.
	if _, err := env.engine.ClaimWinnings(ctx, "m1", "bob"); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("claim before extended deadline: got %v, want ErrStateConflict", err)
	}
	env.advance(49 * time.Hour)
	got, err := env.engine.ClaimWinnings(ctx, "m1", "bob")
	if err != nil {
		t.Fatalf("claim after deadline: %v", err)
	}
	if got == 0 {
		t.Error("expected a payout for the corrected outcome")
	}
}

func TestResolveDispute_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.addMarket(t, "m1")
	ctx := context.Background()

	if err := env.engine.ResolveDispute(ctx, "m1", true, 0); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("ruling on undisputed market: got %v, want ErrStateConflict", err)
	}
	if err := env.engine.ResolveDispute(ctx, "missing", true, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown market: got %v, want ErrNotFound", err)
	}
}

func TestCancelAndRefund(t *testing.T) {
	env := newTestEnv(t)
	env.addMarket(t, "m1")
	env.fund(t, "alice", 1_500_000)
	ctx := context.Background()

	if _, err := env.engine.BatchPlaceBets(ctx, "m1", "alice", []domain.BetRequest{
		{Outcome: 0, Amount: 1_000_000},
		{Outcome: 1, Amount: 500_000},
	}, 1_500_000); err != nil {
		t.Fatalf("bets: %v", err)
	}

	// Refund requires a cancelled market.
	if _, err := env.engine.ClaimRefund(ctx, "m1", "alice"); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("refund on active market: got %v, want ErrStateConflict", err)
	}

	if err := env.engine.EmergencyDeactivate(ctx, "m1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	m, _ := env.engine.Market("m1")
	if m.Status != domain.MarketStatusCancelled {
		t.Fatalf("status = %s, want cancelled", m.Status)
	}

	// Cancelled is terminal.
	if err := env.engine.EmergencyDeactivate(ctx, "m1"); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("double cancel: got %v, want ErrStateConflict", err)
	}

	// Refunds return the pre-fee stakes.
	got, err := env.engine.ClaimRefund(ctx, "m1", "alice")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if got != 1_500_000 {
		t.Errorf("refund = %d, want 1500000", got)
	}
	if b := env.balance(t, "alice"); b != 1_500_000 {
		t.Errorf("alice balance = %d, want 1500000", b)
	}

	// A repeat refund is a quiet no-op.
	got, err = env.engine.ClaimRefund(ctx, "m1", "alice")
	if err != nil || got != 0 {
		t.Errorf("repeat refund = %d, %v; want 0, nil", got, err)
	}
}

func TestBatchClaimWinnings(t *testing.T) {
	env := newTestEnv(t)
	env.addMarket(t, "m1")
	env.fund(t, "alice", 1_000_000)
	env.fund(t, "bob", 1_000_000)
	ctx := context.Background()

	if _, err := env.engine.PlaceBet(ctx, "m1", "alice", 0, 500_000); err != nil {
		t.Fatalf("alice bet: %v", err)
	}
	if _, err := env.engine.PlaceBet(ctx, "m1", "bob", 1, 500_000); err != nil {
		t.Fatalf("bob bet: %v", err)
	}

	env.advance(25 * time.Hour)
	env.adapter.SetResolution("m1", domain.Resolution{Outcome: 0, Resolved: true})
	if err := env.engine.ResolveMarket(ctx, "m1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Losers and strangers are skipped, not fatal.
	payouts, err := env.engine.BatchClaimWinnings(ctx, "m1", []string{"alice", "bob", "mallory"})
	if err != nil {
		t.Fatalf("batch claim: %v", err)
	}
	if len(payouts) != 1 {
		t.Fatalf("payouts = %v, want alice only", payouts)
	}
	if payouts["alice"] == 0 {
		t.Error("alice paid nothing")
	}

	if _, err := env.engine.BatchClaimWinnings(ctx, "m1", nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty batch: got %v, want ErrInvalidInput", err)
	}
}

func TestMarket_LazyEnded(t *testing.T) {
	env := newTestEnv(t)
	env.addMarket(t, "m1")

	m, err := env.engine.Market("m1")
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	if m.Status != domain.MarketStatusActive {
		t.Fatalf("status = %s, want active", m.Status)
	}

	env.advance(24 * time.Hour)
	m, _ = env.engine.Market("m1")
	if m.Status != domain.MarketStatusEnded {
		t.Fatalf("status past end = %s, want ended", m.Status)
	}

	// Reporting ENDED is a view, not a mutation.
	if ended := env.engine.ListMarkets(domain.MarketStatusEnded); len(ended) != 1 {
		t.Errorf("ended list = %d markets, want 1", len(ended))
	}
	if active := env.engine.ListMarkets(domain.MarketStatusActive); len(active) != 0 {
		t.Errorf("active list = %d markets, want 0", len(active))
	}
	if all := env.engine.ListMarkets(""); len(all) != 1 {
		t.Errorf("unfiltered list = %d markets, want 1", len(all))
	}
}
