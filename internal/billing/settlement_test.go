package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

type stubAccounts struct {
	accounts   map[string]*domain.Account
	getErr     error
	consumed   decimal.Decimal
	deducted   decimal.Decimal
	credited   map[string]decimal.Decimal
	consumeErr error
	deductErr  error
}

func newStubAccounts(userID string, points, allocated, used float64) *stubAccounts {
	return &stubAccounts{
		accounts: map[string]*domain.Account{userID: {
			UserID: userID,
			Points: d(points),
			Pool:   &domain.SubscriptionCreditPool{UserID: userID, CreditsAllocated: d(allocated), CreditsUsed: d(used)},
		}},
		credited: map[string]decimal.Decimal{},
	}
}

func (s *stubAccounts) GetAccount(_ context.Context, userID string) (*domain.Account, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	a, ok := s.accounts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *stubAccounts) ConsumeCredits(_ context.Context, _ string, amount decimal.Decimal) error {
	if s.consumeErr != nil {
		return s.consumeErr
	}
	s.consumed = s.consumed.Add(amount)
	return nil
}

func (s *stubAccounts) DeductPoints(_ context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if s.deductErr != nil {
		return decimal.Zero, s.deductErr
	}
	s.deducted = s.deducted.Add(amount)
	return s.accounts[userID].Points.Sub(amount), nil
}

func (s *stubAccounts) CreditPoints(_ context.Context, userID string, amount decimal.Decimal) error {
	s.credited[userID] = s.credited[userID].Add(amount)
	return nil
}

func (s *stubAccounts) AllocateCredits(context.Context, string, decimal.Decimal, *time.Time) error {
	return nil
}

type stubRecords struct {
	created []*domain.GenerationRecord
	err     error
}

func (s *stubRecords) Create(_ context.Context, r *domain.GenerationRecord) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, r)
	return nil
}

func (s *stubRecords) ListByUser(context.Context, string, int) ([]domain.GenerationRecord, error) {
	return nil, nil
}

func (s *stubRecords) IncrementCounter(context.Context, string, string, domain.Counter) error {
	return nil
}

type stubLedger struct {
	entries []*domain.LedgerEntry
	err     error
	panics  bool
}

func (s *stubLedger) Append(_ context.Context, e *domain.LedgerEntry) error {
	if s.panics {
		panic("ledger exploded")
	}
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func TestSplit(t *testing.T) {
	cases := []struct {
		remaining, cost float64
		sub, points     float64
	}{
		{10, 30, 10, 20},
		{90, 30, 30, 0},
		{0, 30, 0, 30},
		{-5, 30, 0, 30},
		{30, 30, 30, 0},
	}
	for _, tc := range cases {
		got := Split(d(tc.remaining), d(tc.cost))
		if !got.FromSubscription.Equal(d(tc.sub)) || !got.FromPoints.Equal(d(tc.points)) {
			t.Fatalf("Split(%v, %v) = %v/%v, want %v/%v", tc.remaining, tc.cost, got.FromSubscription, got.FromPoints, tc.sub, tc.points)
		}
	}
}

func TestPreCheckSplitsAcrossTiers(t *testing.T) {
	accounts := newStubAccounts("u1", 25, 50, 40)
	engine := NewEngine(accounts, &stubRecords{}, &stubLedger{}, Options{})

	charge, err := engine.PreCheck(context.Background(), "u1", d(30))
	if err != nil {
		t.Fatalf("precheck: %v", err)
	}
	if !charge.FromSubscription.Equal(d(10)) || !charge.FromPoints.Equal(d(20)) {
		t.Fatalf("charge = %+v", charge)
	}
}

func TestPreCheckFullyCoveredBySubscription(t *testing.T) {
	accounts := newStubAccounts("u1", 0, 100, 10)
	engine := NewEngine(accounts, &stubRecords{}, &stubLedger{}, Options{})

	charge, err := engine.PreCheck(context.Background(), "u1", d(30))
	if err != nil {
		t.Fatalf("precheck: %v", err)
	}
	if !charge.FromSubscription.Equal(d(30)) || !charge.FromPoints.IsZero() {
		t.Fatalf("charge = %+v", charge)
	}
}

func TestPreCheckRejectsInsufficientPoints(t *testing.T) {
	accounts := newStubAccounts("u1", 19, 50, 40)
	engine := NewEngine(accounts, &stubRecords{}, &stubLedger{}, Options{})

	_, err := engine.PreCheck(context.Background(), "u1", d(30))
	var insufficient *domain.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if !insufficient.Required.Equal(d(20)) || !insufficient.Available.Equal(d(19)) {
		t.Fatalf("error = %+v", insufficient)
	}
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("sentinel must match")
	}
}

func TestPreCheckUnknownUserHasNothing(t *testing.T) {
	engine := NewEngine(&stubAccounts{accounts: map[string]*domain.Account{}}, &stubRecords{}, &stubLedger{}, Options{})

	if _, err := engine.PreCheck(context.Background(), "ghost", d(1)); domain.KindOf(err) != domain.KindInsufficientBalance {
		t.Fatalf("kind = %v", domain.KindOf(err))
	}
	if _, err := engine.PreCheck(context.Background(), "ghost", decimal.Zero); err != nil {
		t.Fatalf("free generation should pass: %v", err)
	}
}

func TestSettleChargesBothTiersAndWritesBookkeeping(t *testing.T) {
	accounts := newStubAccounts("u1", 25, 50, 40)
	records := &stubRecords{}
	ledger := &stubLedger{}
	engine := NewEngine(accounts, records, ledger, Options{EarningRate: d(0.1)})
	record := &domain.GenerationRecord{ID: "rec-1", UserID: "u1", Quality: domain.QualityHD}

	res := engine.Settle(context.Background(), Settlement{
		UserID:   "u1",
		Cost:     d(30),
		Record:   record,
		Template: &domain.Template{ID: "tpl", Name: "Neon", CreatorID: "creator"},
	})
	if len(res.Failed()) != 0 {
		t.Fatalf("unexpected failures: %+v", res.Failed())
	}
	if !accounts.consumed.Equal(d(10)) || !accounts.deducted.Equal(d(20)) {
		t.Fatalf("consumed=%v deducted=%v", accounts.consumed, accounts.deducted)
	}
	if len(records.created) != 1 || !records.created[0].Cost.Equal(d(30)) {
		t.Fatalf("records = %+v", records.created)
	}
	if !accounts.credited["creator"].Equal(d(2)) {
		t.Fatalf("creator earning = %v, want 2", accounts.credited["creator"])
	}
	if len(ledger.entries) != 3 {
		t.Fatalf("ledger entries = %d, want 3", len(ledger.entries))
	}
	if ledger.entries[0].Source != domain.SourceSubscription || ledger.entries[1].Source != domain.SourcePoints {
		t.Fatalf("debit sources = %s, %s", ledger.entries[0].Source, ledger.entries[1].Source)
	}
	if e := ledger.entries[2]; e.Direction != domain.LedgerCredit || e.UserID != "creator" || e.Reference != "rec-1" {
		t.Fatalf("earning entry = %+v", e)
	}
}

func TestSettleLedgerFailureDoesNotBlockOtherSteps(t *testing.T) {
	accounts := newStubAccounts("u1", 100, 0, 0)
	records := &stubRecords{}
	engine := NewEngine(accounts, records, &stubLedger{err: errors.New("ledger down")}, Options{})

	res := engine.Settle(context.Background(), Settlement{UserID: "u1", Cost: d(5), Record: &domain.GenerationRecord{ID: "r"}})
	if res.Ledger.OK() {
		t.Fatalf("ledger step should report failure")
	}
	var stepErr *domain.SettlementStepError
	if !errors.As(res.Ledger.Err, &stepErr) || stepErr.Step != StepLedger {
		t.Fatalf("ledger err = %v", res.Ledger.Err)
	}
	if !res.Points.OK() || !res.Record.OK() || len(records.created) != 1 {
		t.Fatalf("other steps must still complete: %+v", res)
	}
	if !res.Subscription.Skipped {
		t.Fatalf("empty pool should skip the subscription step")
	}
}

func TestSettleRecoversPanickingStep(t *testing.T) {
	accounts := newStubAccounts("u1", 100, 0, 0)
	records := &stubRecords{}
	engine := NewEngine(accounts, records, &stubLedger{panics: true}, Options{})

	res := engine.Settle(context.Background(), Settlement{UserID: "u1", Cost: d(5), Record: &domain.GenerationRecord{ID: "r"}})
	if res.Ledger.OK() || len(res.Failed()) != 1 {
		t.Fatalf("only the ledger step should fail: %+v", res.Failed())
	}
}

func TestSettleFallsBackToPlannedSplit(t *testing.T) {
	accounts := newStubAccounts("u1", 100, 50, 40)
	accounts.getErr = errors.New("db gone")
	engine := NewEngine(accounts, &stubRecords{}, &stubLedger{}, Options{})
	planned := Charge{FromSubscription: d(10), FromPoints: d(20)}

	res := engine.Settle(context.Background(), Settlement{UserID: "u1", Cost: d(30), Planned: planned})
	if !res.Charge.FromSubscription.Equal(d(10)) || !accounts.deducted.Equal(d(20)) {
		t.Fatalf("charge = %+v deducted=%v", res.Charge, accounts.deducted)
	}
	if !res.Record.Skipped {
		t.Fatalf("nil record should skip the record step")
	}
}

func TestSettleSkipsEarningWhenPointsStepFails(t *testing.T) {
	accounts := newStubAccounts("u1", 100, 0, 0)
	accounts.deductErr = domain.ErrInsufficientBalance
	engine := NewEngine(accounts, &stubRecords{}, &stubLedger{}, Options{EarningRate: d(0.1)})

	res := engine.Settle(context.Background(), Settlement{
		UserID:   "u1",
		Cost:     d(10),
		Template: &domain.Template{CreatorID: "creator"},
	})
	if res.Points.OK() || !res.Earning.Skipped {
		t.Fatalf("points=%+v earning=%+v", res.Points, res.Earning)
	}
	if _, ok := accounts.credited["creator"]; ok {
		t.Fatalf("creator must not earn on an uncollected charge")
	}
}
