package image

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
)

// minInlinePayload is the shortest string treated as an encoded image rather
// than a status word or identifier.
const minInlinePayload = 100

// extractionShapes lists the response shapes ExtractImage checks, in order.
var extractionShapes = []string{"inline_data", "inlineData", "data", "array[0]", "url", "image", "file", "result"}

// ExtractImage finds an image in a decoded JSON reply of unknown shape.
func ExtractImage(provider string, payload any) (Result, error) {
	if res, ok := extractFrom(payload, 0); ok {
		return res, nil
	}
	return Result{}, &domain.ImageExtractionError{Provider: provider, Checked: extractionShapes}
}

// ExtractImageJSON decodes raw and runs ExtractImage on it.
func ExtractImageJSON(provider string, raw []byte) (Result, error) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Result{}, &domain.ImageExtractionError{Provider: provider, Checked: []string{"json"}}
	}
	return ExtractImage(provider, payload)
}

func extractFrom(payload any, depth int) (Result, bool) {
	if depth > 6 {
		return Result{}, false
	}
	switch v := payload.(type) {
	case []any:
		if len(v) == 0 {
			return Result{}, false
		}
		return extractFrom(v[0], depth+1)
	case string:
		return resultFromString(v, true)
	case map[string]any:
		return extractFromObject(v, depth)
	}
	return Result{}, false
}

func extractFromObject(obj map[string]any, depth int) (Result, bool) {
	if res, ok := findInlineData(obj, 0); ok {
		return res, true
	}
	if raw, ok := obj["data"]; ok {
		switch data := raw.(type) {
		case string:
			if len(data) >= minInlinePayload {
				if res, ok := resultFromString(data, false); ok {
					return res, true
				}
			}
		case []any, map[string]any:
			if res, ok := extractFrom(data, depth+1); ok {
				return res, true
			}
		}
	}
	for _, key := range []string{"images", "output", "results", "artifacts"} {
		if arr, ok := obj[key].([]any); ok && len(arr) > 0 {
			if res, ok := extractFrom(arr[0], depth+1); ok {
				return res, true
			}
		}
	}
	if b64, ok := obj["b64_json"].(string); ok && b64 != "" {
		if res, ok := resultFromString(b64, false); ok {
			return res, true
		}
	}
	if b64, ok := obj["base64"].(string); ok && b64 != "" {
		if res, ok := resultFromString(b64, false); ok {
			return res, true
		}
	}
	for _, key := range []string{"url", "image", "file", "result"} {
		switch v := obj[key].(type) {
		case string:
			if res, ok := resultFromString(v, true); ok {
				return res, true
			}
		case map[string]any:
			if res, ok := extractFromObject(v, depth+1); ok {
				return res, true
			}
		}
	}
	if out, ok := obj["output"].(map[string]any); ok {
		return extractFromObject(out, depth+1)
	}
	return Result{}, false
}

// findInlineData walks nested objects looking for inline_data / inlineData
// parts as produced by Gemini style replies.
func findInlineData(obj map[string]any, depth int) (Result, bool) {
	if depth > 8 {
		return Result{}, false
	}
	for _, key := range []string{"inline_data", "inlineData"} {
		if inline, ok := obj[key].(map[string]any); ok {
			data, _ := inline["data"].(string)
			mime, _ := inline["mime_type"].(string)
			if mime == "" {
				mime, _ = inline["mimeType"].(string)
			}
			if decoded, err := decodeBase64(data); err == nil && len(decoded) > 0 {
				return Result{Data: decoded, MIMEType: firstNonEmpty(mime, http.DetectContentType(decoded))}, true
			}
		}
	}
	for _, v := range obj {
		switch child := v.(type) {
		case map[string]any:
			if res, ok := findInlineData(child, depth+1); ok {
				return res, true
			}
		case []any:
			for _, item := range child {
				if m, ok := item.(map[string]any); ok {
					if res, ok := findInlineData(m, depth+1); ok {
						return res, true
					}
				}
			}
		}
	}
	return Result{}, false
}

// resultFromString interprets s as a URL, a data URI, or bare base64. Short
// bare strings are only accepted as URLs when allowURL is set.
func resultFromString(s string, allowURL bool) (Result, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Result{}, false
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		if !allowURL && len(s) < minInlinePayload {
			return Result{}, false
		}
		return Result{URL: s}, true
	}
	if strings.HasPrefix(lower, "data:") {
		data, mime, err := decodeDataURI(s)
		if err != nil {
			return Result{}, false
		}
		return Result{Data: data, MIMEType: mime}, true
	}
	if len(s) < minInlinePayload {
		return Result{}, false
	}
	data, err := decodeBase64(s)
	if err != nil || len(data) == 0 {
		return Result{}, false
	}
	return Result{Data: data, MIMEType: http.DetectContentType(data)}, true
}

func decodeDataURI(s string) ([]byte, string, error) {
	header, payload, found := strings.Cut(s, ",")
	if !found {
		return nil, "", base64.CorruptInputError(0)
	}
	mime := strings.TrimPrefix(header, "data:")
	mime, _, _ = strings.Cut(mime, ";")
	data, err := decodeBase64(payload)
	if err != nil {
		return nil, "", err
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	if data, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
