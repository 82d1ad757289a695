package infra

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	JWTSecret      string
	JWTIssuer      string
	StoragePath    string
	StorageBaseURL string
	GeoIPDBPath    string
	BackendScope   string
	// CORSAllowedOrigins lists browser origins allowed to call the API.
	CORSAllowedOrigins []string

	ProviderTimeout   time.Duration
	PollInterval      time.Duration
	PollMaxAttempts   int
	ReferenceCacheTTL time.Duration
	GuardRuleCacheTTL time.Duration
	// ImageSourceAllowlist restricts reference image downloads when non-empty.
	ImageSourceAllowlist []string

	CreatorEarningRate decimal.Decimal

	DBMaxConns int32

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// ShutdownTimeout bounds how long in-flight generations may finish.
	ShutdownTimeout time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              port,
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		JWTIssuer:         os.Getenv("JWT_ISSUER"),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:    getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		GeoIPDBPath:       os.Getenv("GEOIP_DB_PATH"),
		BackendScope:      getEnv("BACKEND_SCOPE", "image"),
		ProviderTimeout:   time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 60)),
		PollInterval:      time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", 1000)),
		PollMaxAttempts:   getEnvInt("POLL_MAX_ATTEMPTS", 60),
		ReferenceCacheTTL: time.Second * time.Duration(getEnvInt("REFERENCE_CACHE_SECONDS", 300)),
		GuardRuleCacheTTL: time.Second * time.Duration(getEnvInt("GUARD_RULE_CACHE_SECONDS", 30)),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		ShutdownTimeout:   time.Second * time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 90)),
		DBMaxConns:        int32(getEnvInt("DB_MAX_CONNS", 10)),
	}

	rate, err := decimal.NewFromString(getEnv("CREATOR_EARNING_RATE", "0.1"))
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("CREATOR_EARNING_RATE must be a number between 0 and 1")
	}
	cfg.CreatorEarningRate = rate
	cfg.CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))
	cfg.ImageSourceAllowlist = buildAllowlist(os.Getenv("IMAGE_SOURCE_HOST_ALLOWLIST"), cfg.StorageBaseURL)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.DBMaxConns <= 0 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be positive")
	}

	if cfg.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// buildAllowlist merges explicit hosts with the storage host. An empty
// explicit list leaves downloads unrestricted.
func buildAllowlist(explicit, storageBaseURL string) []string {
	seen := map[string]struct{}{}
	for _, host := range strings.Split(explicit, ",") {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			seen[host] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	if u, err := url.Parse(storageBaseURL); err == nil && u.Hostname() != "" {
		seen[strings.ToLower(u.Hostname())] = struct{}{}
	}
	hosts := make([]string, 0, len(seen))
	for host := range seen {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
