package image

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
)

func TestClassifyErrorBody(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"openai style", `{"error":{"message":"bad size","code":"invalid_size"}}`, "bad size (invalid_size)"},
		{"error string", `{"error":"unauthorized"}`, "unauthorized"},
		{"dashscope style", `{"code":"InvalidApiKey","message":"Invalid API-key provided."}`, "Invalid API-key provided. (InvalidApiKey)"},
		{"errors list", `{"name":"bad_request","errors":["prompt too long","seed invalid"]}`, "prompt too long; seed invalid"},
		{"plain text", "  upstream exploded  ", "upstream exploded"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ClassifyErrorBody("p", http.StatusBadRequest, []byte(tc.body))
			if err.Message != tc.want {
				t.Fatalf("message = %q, want %q", err.Message, tc.want)
			}
			if err.Status != http.StatusBadRequest || err.Kind() != domain.KindProviderCall {
				t.Fatalf("unexpected error %+v", err)
			}
		})
	}
}

func TestClassifyErrorBodyTruncatesRawText(t *testing.T) {
	body := "<html>" + strings.Repeat("x", 500) + "</html>"
	err := ClassifyErrorBody("p", http.StatusBadGateway, []byte(body))
	if n := utf8.RuneCountInString(err.Message); n > maxErrorBodyRunes+1 {
		t.Fatalf("message has %d runes", n)
	}
}

func TestClassifyErrorBodyExtractsCode(t *testing.T) {
	cases := map[string]string{
		`{"code":"DataInspectionFailed","message":"bad input"}`:              "DataInspectionFailed",
		`{"error":{"code":"content_policy_violation","message":"rejected"}}`: "content_policy_violation",
		`{"error":{"message":"no code"}}`:                                    "",
		`plain text`:                                                         "",
	}
	for body, want := range cases {
		if got := ClassifyErrorBody("p", 400, []byte(body)).Code; got != want {
			t.Errorf("code for %s = %q, want %q", body, got, want)
		}
	}
}

func TestClassifyOpenAIErrorUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("call: %w", &domain.ProviderCallError{
		Provider: "openai", Status: 400, Message: "rejected", Code: "moderation_blocked",
	})
	if domain.KindOf(classifyOpenAIError(wrapped)) != domain.KindContentBlocked {
		t.Fatalf("wrapped moderation refusal must be content blocked")
	}
}
