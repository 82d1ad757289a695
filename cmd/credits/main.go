package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/adapter/repo"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
)

func main() {
	_ = godotenv.Load()

	var (
		userFlag    string
		pointsFlag  string
		creditsFlag string
		periodFlag  int
		noteFlag    string
	)
	flag.StringVar(&userFlag, "user", "", "user ID to update")
	flag.StringVar(&pointsFlag, "points", "", "points to add to the user's balance")
	flag.StringVar(&creditsFlag, "credits", "", "subscription credits to allocate (resets credits used)")
	flag.IntVar(&periodFlag, "period-days", 30, "subscription period length in days (<=0 for no end)")
	flag.StringVar(&noteFlag, "note", "Manual top-up", "ledger description for point top-ups")
	flag.Parse()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}
	points, err := parseAmount("points", pointsFlag)
	if err != nil {
		exitWithError(err)
	}
	credits, err := parseAmount("credits", creditsFlag)
	if err != nil {
		exitWithError(err)
	}
	if points.IsZero() && credits.IsZero() {
		exitWithError(errors.New("at least one of -points or -credits must be positive"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "credits").Str("user_id", userID).Logger()
	runner := infra.NewSQLRunner(pool, logger)
	accounts := repo.NewAccountRepository(runner)

	if credits.IsPositive() {
		var periodEnd *time.Time
		if periodFlag > 0 {
			end := time.Now().UTC().AddDate(0, 0, periodFlag)
			periodEnd = &end
		}
		if err := accounts.AllocateCredits(ctx, userID, credits, periodEnd); err != nil {
			exitWithError(fmt.Errorf("failed to allocate credits: %w", err))
		}
	}
	if points.IsPositive() {
		if err := accounts.CreditPoints(ctx, userID, points); err != nil {
			exitWithError(fmt.Errorf("failed to credit points: %w", err))
		}
		entry := &domain.LedgerEntry{
			ID:          uuid.NewString(),
			UserID:      userID,
			Amount:      points,
			Direction:   domain.LedgerCredit,
			Source:      domain.SourcePoints,
			Description: strings.TrimSpace(noteFlag),
			Status:      "completed",
			CreatedAt:   time.Now().UTC(),
		}
		if err := repo.NewLedgerRepository(runner).Append(ctx, entry); err != nil {
			logger.Warn().Err(err).Msg("top-up applied but ledger entry failed")
		}
	}

	account, err := accounts.GetAccount(ctx, userID)
	if err != nil {
		exitWithError(fmt.Errorf("failed to load account: %w", err))
	}
	fmt.Printf("User %s\n", userID)
	fmt.Printf("points=%s\n", account.Points.String())
	if account.Pool != nil {
		fmt.Printf("credits_allocated=%s credits_used=%s remaining=%s\n",
			account.Pool.CreditsAllocated, account.Pool.CreditsUsed, account.Pool.Remaining())
	}
}

func parseAmount(name, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() {
		return decimal.Zero, fmt.Errorf("-%s must be a non-negative number", name)
	}
	return v, nil
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
