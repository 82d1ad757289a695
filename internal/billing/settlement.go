package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
)

// Settlement step names, in execution order.
const (
	StepSubscription = "subscription"
	StepPoints       = "points"
	StepRecord       = "record"
	StepLedger       = "ledger"
	StepEarning      = "earning"
)

// Charge is how a cost splits across the two balance tiers.
type Charge struct {
	FromSubscription decimal.Decimal
	FromPoints       decimal.Decimal
}

// Total is the full amount charged.
func (c Charge) Total() decimal.Decimal {
	return c.FromSubscription.Add(c.FromPoints)
}

// Split charges the subscription pool first and the point balance for the
// rest. A negative remaining is treated as zero.
func Split(remaining, cost decimal.Decimal) Charge {
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	if cost.IsNegative() {
		cost = decimal.Zero
	}
	if remaining.GreaterThanOrEqual(cost) {
		return Charge{FromSubscription: cost, FromPoints: decimal.Zero}
	}
	return Charge{FromSubscription: remaining, FromPoints: cost.Sub(remaining)}
}

// StepResult is the outcome of one settlement step. Err is nil on success or
// when the step had nothing to do.
type StepResult struct {
	Step    string
	Skipped bool
	Err     error
}

// OK reports whether the step did not fail.
func (s StepResult) OK() bool { return s.Err == nil }

// SettlementResult reports every step independently so callers can see which
// ones degraded without any of them blocking the others.
type SettlementResult struct {
	Charge       Charge
	Subscription StepResult
	Points       StepResult
	Record       StepResult
	Ledger       StepResult
	Earning      StepResult
}

// Steps lists the step results in execution order.
func (r SettlementResult) Steps() []StepResult {
	return []StepResult{r.Subscription, r.Points, r.Record, r.Ledger, r.Earning}
}

// Failed returns the steps that errored.
func (r SettlementResult) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps() {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Settlement is the input to Settle.
type Settlement struct {
	UserID string
	Cost   decimal.Decimal
	// Planned is the split computed at pre-check, used when the balance can
	// no longer be read.
	Planned  Charge
	Record   *domain.GenerationRecord
	Template *domain.Template
}

// Options configures an Engine.
type Options struct {
	// EarningRate is the share of the points portion credited to a template
	// creator.
	EarningRate decimal.Decimal
	Logger      *infra.Logger
	Now         func() time.Time
	NewID       func() string
}

// Engine runs balance pre-checks and post-generation settlement.
type Engine struct {
	accounts    domain.AccountRepository
	records     domain.GenerationRepository
	ledger      domain.LedgerRepository
	earningRate decimal.Decimal
	logger      *infra.Logger
	now         func() time.Time
	newID       func() string
}

// NewEngine builds an Engine.
func NewEngine(accounts domain.AccountRepository, records domain.GenerationRepository, ledger domain.LedgerRepository, opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	return &Engine{
		accounts:    accounts,
		records:     records,
		ledger:      ledger,
		earningRate: opts.EarningRate,
		logger:      infra.LoggerOrDiscard(opts.Logger),
		now:         now,
		newID:       newID,
	}
}

// PreCheck verifies the user can afford cost and returns the planned split.
// It must run before any backend is called.
func (e *Engine) PreCheck(ctx context.Context, userID string, cost decimal.Decimal) (Charge, error) {
	account, err := e.accounts.GetAccount(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return Charge{}, fmt.Errorf("billing: load account: %w", err)
		}
		account = &domain.Account{UserID: userID}
	}
	charge := Split(account.Pool.Remaining(), cost)
	if account.Points.LessThan(charge.FromPoints) {
		return Charge{}, &domain.InsufficientBalanceError{
			Required:  charge.FromPoints,
			Available: account.Points,
		}
	}
	return charge, nil
}

// Settle charges the user and writes the bookkeeping for a completed
// generation. Every step runs regardless of the others; failures are logged
// and reported on the result, never returned.
func (e *Engine) Settle(ctx context.Context, s Settlement) SettlementResult {
	charge := s.Planned
	if account, err := e.accounts.GetAccount(ctx, s.UserID); err == nil {
		charge = Split(account.Pool.Remaining(), s.Cost)
	} else {
		e.logger.Warn().Err(err).Str("user_id", s.UserID).Msg("billing: balance reread failed, using planned split")
	}
	res := SettlementResult{Charge: charge}

	res.Subscription = e.step(ctx, StepSubscription, s.UserID, charge.FromSubscription.IsZero(), func(ctx context.Context) error {
		return e.accounts.ConsumeCredits(ctx, s.UserID, charge.FromSubscription)
	})
	res.Points = e.step(ctx, StepPoints, s.UserID, charge.FromPoints.IsZero(), func(ctx context.Context) error {
		_, err := e.accounts.DeductPoints(ctx, s.UserID, charge.FromPoints)
		return err
	})
	res.Record = e.step(ctx, StepRecord, s.UserID, s.Record == nil, func(ctx context.Context) error {
		s.Record.Cost = charge.Total()
		return e.records.Create(ctx, s.Record)
	})
	res.Ledger = e.step(ctx, StepLedger, s.UserID, false, func(ctx context.Context) error {
		return e.appendDebits(ctx, s, charge)
	})
	creatorID := ""
	if s.Template != nil {
		creatorID = s.Template.CreatorID
	}
	earning := charge.FromPoints.Mul(e.earningRate).Round(2)
	skipEarning := creatorID == "" || creatorID == s.UserID || !earning.IsPositive() || !res.Points.OK()
	res.Earning = e.step(ctx, StepEarning, s.UserID, skipEarning, func(ctx context.Context) error {
		return e.accrueEarning(ctx, creatorID, earning, s)
	})
	return res
}

// step runs fn in isolation: errors and panics become a SettlementStepError
// on the result.
func (e *Engine) step(ctx context.Context, name, userID string, skip bool, fn func(context.Context) error) (out StepResult) {
	out.Step = name
	if skip {
		out.Skipped = true
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			out.Err = &domain.SettlementStepError{Step: name, Err: fmt.Errorf("panic: %v", r)}
		}
		if out.Err != nil {
			e.logger.Error().Err(out.Err).Str("step", name).Str("user_id", userID).Msg("billing: settlement step failed")
		}
	}()
	if err := fn(ctx); err != nil {
		out.Err = &domain.SettlementStepError{Step: name, Err: err}
	}
	return out
}

func (e *Engine) appendDebits(ctx context.Context, s Settlement, charge Charge) error {
	reference := ""
	if s.Record != nil {
		reference = s.Record.ID
	}
	description := "Image generation"
	if s.Record != nil && s.Record.Quality != "" {
		description = fmt.Sprintf("Image generation (%s)", s.Record.Quality)
	}
	var entries []*domain.LedgerEntry
	if charge.FromSubscription.IsPositive() {
		entries = append(entries, e.entry(s.UserID, charge.FromSubscription, domain.LedgerDebit, domain.SourceSubscription, description, reference))
	}
	if charge.FromPoints.IsPositive() || len(entries) == 0 {
		entries = append(entries, e.entry(s.UserID, charge.FromPoints, domain.LedgerDebit, domain.SourcePoints, description, reference))
	}
	var errs []error
	for _, entry := range entries {
		if err := e.ledger.Append(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("append %s entry: %w", entry.Source, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) accrueEarning(ctx context.Context, creatorID string, amount decimal.Decimal, s Settlement) error {
	if err := e.accounts.CreditPoints(ctx, creatorID, amount); err != nil {
		return fmt.Errorf("credit creator: %w", err)
	}
	reference := ""
	if s.Record != nil {
		reference = s.Record.ID
	}
	description := "Template earning"
	if s.Template != nil && s.Template.Name != "" {
		description = fmt.Sprintf("Template earning: %s", s.Template.Name)
	}
	return e.ledger.Append(ctx, e.entry(creatorID, amount, domain.LedgerCredit, domain.SourceEarning, description, reference))
}

func (e *Engine) entry(userID string, amount decimal.Decimal, dir domain.LedgerDirection, source domain.LedgerSource, description, reference string) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:          e.newID(),
		UserID:      userID,
		Amount:      amount,
		Direction:   dir,
		Source:      source,
		Description: description,
		Status:      "completed",
		Reference:   reference,
		CreatedAt:   e.now().UTC(),
	}
}
