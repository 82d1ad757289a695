package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signed(t *testing.T, claims TokenClaims, ttl time.Duration) string {
	t.Helper()
	token, err := SignJWT(testSecret, claims, ttl)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func protected(issuer string, chain ...func(http.Handler) http.Handler) http.Handler {
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-User", UserIDFromContext(r.Context()))
		w.Header().Set("X-Locale-Out", LocaleFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return AuthJWT(testSecret, issuer)(h)
}

func TestAuthJWTAcceptsValidToken(t *testing.T) {
	token := signed(t, TokenClaims{Locale: "id-ID", RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}, time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	protected("").ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("X-User") != "u1" {
		t.Fatalf("status=%d user=%q", rec.Code, rec.Header().Get("X-User"))
	}
	if rec.Header().Get("X-Locale-Out") != "id" {
		t.Fatalf("locale = %q", rec.Header().Get("X-Locale-Out"))
	}
}

func TestAuthJWTRejects(t *testing.T) {
	expired := signed(t, TokenClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}, 0)
	noSubject := signed(t, TokenClaims{}, time.Hour)
	wrongIssuer := signed(t, TokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "other"}}, time.Hour)
	forged, _ := SignJWT("other-secret", TokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}, time.Hour)

	cases := map[string]string{
		"missing":      "",
		"scheme":       "Basic abc",
		"expired":      "Bearer " + expired,
		"no subject":   "Bearer " + noSubject,
		"wrong issuer": "Bearer " + wrongIssuer,
		"forged":       "Bearer " + forged,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			protected("orchestrator").ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d", rec.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	user := signed(t, TokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}, time.Hour)
	admin := signed(t, TokenClaims{Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "a1"}}, time.Hour)
	h := protected("", RequireRole(RoleAdmin))

	for token, want := range map[string]int{user: http.StatusForbidden, admin: http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("status = %d, want %d", rec.Code, want)
		}
	}
}
