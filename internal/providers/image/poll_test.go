package image

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
)

type fakeClock struct {
	now    time.Time
	sleeps int
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.sleeps++
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) poller(max int) Poller {
	return Poller{Interval: time.Second, MaxAttempts: max, Sleep: c.sleep, Now: func() time.Time { return c.now }}
}

func TestPollerSucceedsOnThirdAttempt(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	check := func(_ context.Context, attempt int) (PollOutcome, error) {
		if attempt < 3 {
			return PollOutcome{State: PollPending}, nil
		}
		return PollOutcome{State: PollSucceeded, Result: Result{URL: "https://cdn.test/x.png"}}, nil
	}

	res, err := clock.poller(60).Run(context.Background(), "p", "t1", check)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.URL != "https://cdn.test/x.png" {
		t.Fatalf("url = %q", res.URL)
	}
	if clock.sleeps != 3 {
		t.Fatalf("sleeps = %d, want 3", clock.sleeps)
	}
}

func TestPollerTimesOutWithElapsed(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	calls := 0
	check := func(context.Context, int) (PollOutcome, error) {
		calls++
		return PollOutcome{State: PollPending}, nil
	}

	_, err := clock.poller(5).Run(context.Background(), "p", "t1", check)
	var timeout *domain.TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if calls != 5 || timeout.Attempts != 5 || timeout.Elapsed != 5*time.Second {
		t.Fatalf("calls=%d timeout=%+v", calls, timeout)
	}
	if !domain.IsRetryable(err) {
		t.Fatalf("timeouts feed failover")
	}
}

func TestPollerFailedStates(t *testing.T) {
	clock := &fakeClock{}
	_, err := clock.poller(3).Run(context.Background(), "p", "t1", func(context.Context, int) (PollOutcome, error) {
		return PollOutcome{State: PollFailed}, nil
	})
	var pce *domain.ProviderCallError
	if !errors.As(err, &pce) || pce.Message != "task t1 failed" {
		t.Fatalf("expected provider error, got %v", err)
	}

	_, err = clock.poller(3).Run(context.Background(), "p", "t1", func(context.Context, int) (PollOutcome, error) {
		return PollOutcome{State: PollFailed, Blocked: true, Message: "nsfw"}, nil
	})
	if domain.KindOf(err) != domain.KindContentBlocked {
		t.Fatalf("kind = %v, want content blocked", domain.KindOf(err))
	}
}

func TestPollerSucceededWithoutImage(t *testing.T) {
	clock := &fakeClock{}
	_, err := clock.poller(3).Run(context.Background(), "p", "t1", func(context.Context, int) (PollOutcome, error) {
		return PollOutcome{State: PollSucceeded}, nil
	})
	if domain.KindOf(err) != domain.KindImageExtraction {
		t.Fatalf("kind = %v, want extraction", domain.KindOf(err))
	}
}

func TestPollerStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Poller{Interval: time.Hour, MaxAttempts: 3}
	_, err := p.Run(ctx, "p", "t1", func(context.Context, int) (PollOutcome, error) {
		t.Fatalf("check must not run after cancellation")
		return PollOutcome{}, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
}
