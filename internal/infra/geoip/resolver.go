package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/patrickmn/go-cache"
)

// ErrUnavailable is returned by a resolver without a database.
var ErrUnavailable = errors.New("geoip: resolver unavailable")

const defaultCacheTTL = time.Hour

// Options tunes a Resolver.
type Options struct {
	// CacheTTL bounds how long an IP's country is remembered. Zero means one
	// hour.
	CacheTTL time.Duration
}

// Resolver maps client IPs to ISO country codes for locale detection. Results
// are memoised per IP because the same clients poll the API repeatedly.
type Resolver struct {
	reader *geoip2.Reader
	lookup func(net.IP) (string, error)
	cache  *cache.Cache
}

// NewResolver opens the MaxMind database at path. An empty path disables
// GeoIP and returns a nil Resolver without error.
func NewResolver(path string, opts Options) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open %s: %w", path, err)
	}
	r := newResolver(func(ip net.IP) (string, error) {
		record, err := reader.Country(ip)
		if err != nil {
			return "", err
		}
		return record.Country.IsoCode, nil
	}, opts)
	r.reader = reader
	return r, nil
}

func newResolver(lookup func(net.IP) (string, error), opts Options) *Resolver {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Resolver{lookup: lookup, cache: cache.New(ttl, 2*ttl)}
}

// CountryCode returns the upper-case ISO code for ip, or "" when the database
// has no country for it.
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.lookup == nil {
		return "", ErrUnavailable
	}
	ip = strings.TrimSpace(ip)
	if cached, ok := r.cache.Get(ip); ok {
		return cached.(string), nil
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	code, err := r.lookup(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup %s: %w", ip, err)
	}
	code = strings.ToUpper(code)
	r.cache.SetDefault(ip, code)
	return code, nil
}

// Close releases the database.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
