package image

import (
	"context"
	"time"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
)

// PollState is the state of an asynchronous backend task.
type PollState int

const (
	PollPending PollState = iota
	PollSucceeded
	PollFailed
	PollTimedOut
)

func (s PollState) String() string {
	switch s {
	case PollPending:
		return "pending"
	case PollSucceeded:
		return "succeeded"
	case PollFailed:
		return "failed"
	case PollTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// PollOutcome is one classified poll reply.
type PollOutcome struct {
	State   PollState
	Result  Result
	Message string
	// Blocked marks a failed task refused on safety grounds.
	Blocked bool
}

// Sleeper waits for d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckFunc performs poll attempt n (1-based) and classifies the reply.
type CheckFunc func(ctx context.Context, attempt int) (PollOutcome, error)

// Poller drives Pending -> Succeeded | Failed | TimedOut with a fixed interval
// and a bounded attempt budget.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	Sleep       Sleeper
	Now         func() time.Time
}

const (
	defaultPollInterval    = time.Second
	defaultPollMaxAttempts = 60
)

func (p Poller) withDefaults() Poller {
	if p.Interval <= 0 {
		p.Interval = defaultPollInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultPollMaxAttempts
	}
	if p.Sleep == nil {
		p.Sleep = SleepContext
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return p
}

// Run polls until the task leaves the pending state or the budget is spent.
func (p Poller) Run(ctx context.Context, provider, taskID string, check CheckFunc) (Result, error) {
	p = p.withDefaults()
	started := p.Now()
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := p.Sleep(ctx, p.Interval); err != nil {
			return Result{}, &domain.ProviderCallError{Provider: provider, Message: "polling interrupted", Err: err}
		}
		outcome, err := check(ctx, attempt)
		if err != nil {
			return Result{}, err
		}
		switch outcome.State {
		case PollSucceeded:
			if outcome.Result.IsZero() {
				return Result{}, &domain.ImageExtractionError{Provider: provider, Checked: extractionShapes}
			}
			return outcome.Result, nil
		case PollFailed:
			if outcome.Blocked {
				return Result{}, &domain.ContentBlockedError{Provider: provider, Reason: outcome.Message}
			}
			msg := outcome.Message
			if msg == "" {
				msg = "task " + taskID + " failed"
			}
			return Result{}, &domain.ProviderCallError{Provider: provider, Message: msg}
		}
	}
	return Result{}, &domain.TimeoutError{
		Provider: provider,
		TaskID:   taskID,
		Attempts: p.MaxAttempts,
		Elapsed:  p.Now().Sub(started),
	}
}
