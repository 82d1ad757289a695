package image

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
)

const (
	maxErrorBodyRunes = 200
	maxResponseBytes  = 32 << 20
)

// ClassifyErrorBody turns a non-2xx backend reply into a ProviderCallError,
// preferring a structured error.message over truncated raw text.
func ClassifyErrorBody(provider string, status int, body []byte) *domain.ProviderCallError {
	return &domain.ProviderCallError{
		Provider: provider,
		Status:   status,
		Message:  errorMessage(body),
		Code:     errorCode(body),
	}
}

// errorCode returns the top-level or error.code string of a JSON body.
func errorCode(body []byte) string {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ""
	}
	if nested, ok := decoded["error"].(map[string]any); ok {
		if code, ok := nested["code"].(string); ok && strings.TrimSpace(code) != "" {
			return strings.TrimSpace(code)
		}
	}
	if code, ok := decoded["code"].(string); ok {
		return strings.TrimSpace(code)
	}
	return ""
}

func errorMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err == nil {
		if msg := structuredMessage(decoded); msg != "" {
			return domain.Truncate(msg, maxErrorBodyRunes)
		}
	}
	return domain.Truncate(trimmed, maxErrorBodyRunes)
}

func structuredMessage(decoded map[string]any) string {
	switch v := decoded["error"].(type) {
	case map[string]any:
		if msg, ok := v["message"].(string); ok && strings.TrimSpace(msg) != "" {
			if code, ok := v["code"].(string); ok && code != "" {
				return fmt.Sprintf("%s (%s)", strings.TrimSpace(msg), code)
			}
			return strings.TrimSpace(msg)
		}
	case string:
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if msg, ok := decoded["message"].(string); ok && strings.TrimSpace(msg) != "" {
		if code, ok := decoded["code"].(string); ok && code != "" {
			return fmt.Sprintf("%s (%s)", strings.TrimSpace(msg), code)
		}
		return strings.TrimSpace(msg)
	}
	if list, ok := decoded["errors"].([]any); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

// do executes req and returns the fully read body of a 2xx reply. Transport
// failures and error statuses come back as ProviderCallError.
func do(ctx context.Context, client *http.Client, provider string, req *http.Request) ([]byte, http.Header, error) {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, nil, &domain.ProviderCallError{Provider: provider, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, nil, &domain.ProviderCallError{Provider: provider, Status: resp.StatusCode, Message: "read response", Err: err}
	}
	if len(raw) > maxResponseBytes {
		return nil, nil, &domain.ProviderCallError{
			Provider: provider,
			Status:   resp.StatusCode,
			Message:  fmt.Sprintf("response exceeds %d bytes", maxResponseBytes),
		}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, resp.Header, ClassifyErrorBody(provider, resp.StatusCode, raw)
	}
	return raw, resp.Header, nil
}

// decodeJSON decodes a successful reply body.
func decodeJSON(provider string, raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.ProviderCallError{Provider: provider, Message: "decode response", Err: err}
	}
	return nil
}
