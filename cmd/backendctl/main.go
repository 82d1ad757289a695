package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/adapter/repo"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/backends"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra/credentials"
)

const usage = `usage: backendctl <command> [flags]

commands:
  list                                   list backends of the scope
  activate  -key K                       make K the only active backend
  upsert    -key K -provider P [-name N] [-cost C] [-enabled]
  credentials -key K -api-key S [-base-url U] [-model M]
  fallback  -provider P -api-key S [-base-url U] [-model M]   store shared provider credentials`

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		exitWithError(errors.New(usage))
	}
	cmd, args := os.Args[1], os.Args[2:]

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}
	scope := strings.TrimSpace(os.Getenv("BACKEND_SCOPE"))
	if scope == "" {
		scope = "image"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "backendctl").Str("scope", scope).Logger()
	runner := infra.NewSQLRunner(pool, logger)
	backendRepo := repo.NewBackendRepository(runner, runner)
	registry := backends.NewRegistry(backendRepo, backends.Options{Scope: scope, Logger: &logger})

	switch cmd {
	case "list":
		err = list(ctx, registry)
	case "activate":
		fs := flag.NewFlagSet("activate", flag.ExitOnError)
		key := fs.String("key", "", "backend key")
		_ = fs.Parse(args)
		if err = registry.SetActive(ctx, *key); err == nil {
			fmt.Printf("backend %s is now active for scope %s\n", *key, scope)
		}
	case "upsert":
		err = upsert(ctx, backendRepo, scope, args)
	case "credentials":
		fs := flag.NewFlagSet("credentials", flag.ExitOnError)
		key := fs.String("key", "", "backend key")
		creds := credentialFlags(fs)
		_ = fs.Parse(args)
		if err = registry.UpdateCredentials(ctx, *key, creds()); err == nil {
			fmt.Printf("credentials of %s updated\n", *key)
		}
	case "fallback":
		fs := flag.NewFlagSet("fallback", flag.ExitOnError)
		provider := fs.String("provider", string(domain.FamilyGemini), "provider family")
		creds := credentialFlags(fs)
		_ = fs.Parse(args)
		family, ok := domain.ParseFamily(*provider)
		if !ok {
			exitWithError(fmt.Errorf("unsupported provider %q", *provider))
		}
		if err = credentials.NewStore(runner).Save(ctx, family, creds()); err == nil {
			fmt.Printf("%s fallback credentials stored\n", strings.ToUpper(string(family)))
		}
	default:
		exitWithError(errors.New(usage))
	}
	if err != nil {
		exitWithError(err)
	}
}

func credentialFlags(fs *flag.FlagSet) func() domain.Credentials {
	apiKey := fs.String("api-key", "", "API key (falls back to BACKEND_API_KEY)")
	baseURL := fs.String("base-url", "", "override endpoint base URL")
	model := fs.String("model", "", "override model")
	return func() domain.Credentials {
		key := strings.TrimSpace(*apiKey)
		if key == "" {
			key = strings.TrimSpace(os.Getenv("BACKEND_API_KEY"))
		}
		if key == "" {
			exitWithError(errors.New("API key is required via -api-key or BACKEND_API_KEY"))
		}
		return domain.Credentials{APIKey: key, BaseURL: strings.TrimSpace(*baseURL), Model: strings.TrimSpace(*model)}
	}
}

func list(ctx context.Context, registry *backends.Registry) error {
	items, err := registry.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tPROVIDER\tACTIVE\tENABLED\tCOST\tCALLS\tSUCCESS\tAVG MS")
	for _, b := range items {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\t%d\t%.2f\t%.0f\n",
			b.Key, b.Family, b.Active, b.Enabled, b.CostPerImage.String(),
			b.Stats.TotalCalls, b.Stats.SuccessRate, b.Stats.AvgLatencyMs)
	}
	return tw.Flush()
}

func upsert(ctx context.Context, backendRepo *repo.BackendRepositoryPG, scope string, args []string) error {
	fs := flag.NewFlagSet("upsert", flag.ExitOnError)
	key := fs.String("key", "", "backend key")
	provider := fs.String("provider", "", "provider family (gemini, openai, stability, dashscope)")
	name := fs.String("name", "", "display name")
	cost := fs.String("cost", "1", "cost per image")
	enabled := fs.Bool("enabled", true, "whether the backend may be selected")
	_ = fs.Parse(args)

	if strings.TrimSpace(*key) == "" {
		return errors.New("-key is required")
	}
	family, ok := domain.ParseFamily(*provider)
	if !ok {
		return fmt.Errorf("unsupported provider %q", *provider)
	}
	price, err := decimal.NewFromString(*cost)
	if err != nil || price.IsNegative() {
		return fmt.Errorf("invalid cost %q", *cost)
	}
	display := strings.TrimSpace(*name)
	if display == "" {
		display = *key
	}
	cfg := domain.BackendConfig{Key: strings.TrimSpace(*key), Scope: scope, Name: display, Family: family, Enabled: *enabled, CostPerImage: price}
	if err := backendRepo.Upsert(ctx, cfg); err != nil {
		return err
	}
	fmt.Printf("backend %s (%s) saved\n", cfg.Key, family)
	return nil
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
