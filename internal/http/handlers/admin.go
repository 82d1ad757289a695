package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
)

type backendView struct {
	Key            string              `json:"key"`
	Scope          string              `json:"scope"`
	Name           string              `json:"name"`
	Provider       string              `json:"provider"`
	Active         bool                `json:"active"`
	Enabled        bool                `json:"enabled"`
	HasCredentials bool                `json:"hasCredentials"`
	BaseURL        string              `json:"baseUrl,omitempty"`
	Model          string              `json:"model,omitempty"`
	CostPerImage   float64             `json:"costPerImage"`
	Stats          domain.BackendStats `json:"stats"`
	UpdatedAt      string              `json:"updatedAt,omitempty"`
}

func toBackendView(b domain.BackendConfig) backendView {
	return backendView{
		Key:            b.Key,
		Scope:          b.Scope,
		Name:           b.Name,
		Provider:       string(b.Family),
		Active:         b.Active,
		Enabled:        b.Enabled,
		HasCredentials: b.Credentials.APIKey != "",
		BaseURL:        b.Credentials.BaseURL,
		Model:          b.Credentials.Model,
		CostPerImage:   b.CostPerImage.InexactFloat64(),
		Stats:          b.Stats,
		UpdatedAt:      formatTime(b.UpdatedAt),
	}
}

type guardRuleView struct {
	ID           string   `json:"id"`
	RuleName     string   `json:"ruleName"`
	RuleType     string   `json:"ruleType"`
	Enabled      bool     `json:"enabled"`
	Priority     int      `json:"priority"`
	HiddenPrompt string   `json:"hiddenPrompt"`
	ApplyTo      []string `json:"applyTo"`
}

type credentialsRequest struct {
	APIKey  string            `json:"apiKey"`
	BaseURL string            `json:"baseUrl"`
	Model   string            `json:"model"`
	Extra   map[string]string `json:"extra"`
}

func (a *App) ListBackends(w http.ResponseWriter, r *http.Request) {
	list, err := a.Backends.List(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]backendView, 0, len(list))
	for _, b := range list {
		items = append(items, toBackendView(b))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) ActivateBackend(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := a.Backends.SetActive(r.Context(), key); err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger().Info().Str("backend", key).Str("admin", a.currentUserID(r)).Msg("admin: backend activated")
	a.json(w, http.StatusOK, map[string]any{"key": key, "active": true})
}

func (a *App) UpdateBackendCredentials(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.error(w, http.StatusBadRequest, "validation", "invalid payload")
		return
	}
	if strings.TrimSpace(body.APIKey) == "" {
		a.error(w, http.StatusBadRequest, "validation", "apiKey: is required")
		return
	}
	key := chi.URLParam(r, "key")
	creds := domain.Credentials{APIKey: body.APIKey, BaseURL: body.BaseURL, Model: body.Model, Extra: body.Extra}
	if err := a.Backends.UpdateCredentials(r.Context(), key, creds); err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger().Info().Str("backend", key).Str("admin", a.currentUserID(r)).Msg("admin: backend credentials updated")
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ListGuardRules(w http.ResponseWriter, r *http.Request) {
	rules, err := a.GuardRules.List(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]guardRuleView, 0, len(rules))
	for _, rule := range rules {
		applyTo := make([]string, 0, len(rule.ApplyTo))
		for _, t := range rule.ApplyTo {
			applyTo = append(applyTo, string(t))
		}
		items = append(items, guardRuleView{
			ID:           rule.ID,
			RuleName:     rule.Name,
			RuleType:     string(rule.Type),
			Enabled:      rule.Enabled,
			Priority:     rule.Priority,
			HiddenPrompt: rule.HiddenPrompt,
			ApplyTo:      applyTo,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) RefreshGuardRules(w http.ResponseWriter, r *http.Request) {
	if a.InvalidateGuardRules != nil {
		a.InvalidateGuardRules()
	}
	w.WriteHeader(http.StatusNoContent)
}
