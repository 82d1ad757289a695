// Package guard merges admin-configured hidden rules into the prompt sent to a
// backend. Hidden text only ever appears in Result.ExecutionPrompt and
// Result.NegativePrompt; Result.UserPrompt is the only prompt safe to persist.
package guard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
)

const (
	systemSeparator   = ". "
	negativeSeparator = ", "
	enabledRulesKey   = "rules:enabled"
)

// placeholders are substituted with the user prompt inside a template.
var placeholders = []string{"{{prompt}}", "{prompt}"}

// Result is the outcome of merging rules into a prompt.
type Result struct {
	ExecutionPrompt string
	NegativePrompt  string
	UserPrompt      string
}

// Options configures an Engine.
type Options struct {
	// CacheTTL keeps the enabled rule set in memory; zero disables caching.
	CacheTTL time.Duration
	Logger   *infra.Logger
}

// Engine builds execution prompts from guard rules. It fails open: a rule
// store error never blocks generation.
type Engine struct {
	rules  domain.GuardRuleRepository
	cache  *cache.Cache
	ttl    time.Duration
	logger *infra.Logger
}

// NewEngine wires the rule repository.
func NewEngine(rules domain.GuardRuleRepository, opts Options) *Engine {
	e := &Engine{
		rules:  rules,
		ttl:    opts.CacheTTL,
		logger: infra.LoggerOrDiscard(opts.Logger),
	}
	if opts.CacheTTL > 0 {
		e.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return e
}

// BuildExecutionPrompt merges template and user prompt into the base prompt and
// decorates it with the applicable hidden rules.
func (e *Engine) BuildExecutionPrompt(ctx context.Context, userPrompt, templatePrompt string, genType domain.GenerationType) (res Result) {
	base := MergeBasePrompt(templatePrompt, userPrompt)
	res = Result{ExecutionPrompt: base, UserPrompt: base}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Interface("panic", r).
				Str("generation_type", string(genType)).
				Msg("guard: applying rules panicked; continuing without guard rules")
			res = Result{ExecutionPrompt: base, UserPrompt: base}
		}
	}()

	rules, err := e.enabledRules(ctx)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("generation_type", string(genType)).
			Msg("guard: loading rules failed; continuing without guard rules")
		return res
	}

	system, negative := Partition(rules, genType)
	if joined := joinHidden(system, systemSeparator); joined != "" {
		res.ExecutionPrompt = joined + systemSeparator + base
	}
	res.NegativePrompt = joinHidden(negative, negativeSeparator)
	return res
}

// Invalidate drops the cached rule snapshot so the next call reloads.
func (e *Engine) Invalidate() {
	if e.cache != nil {
		e.cache.Delete(enabledRulesKey)
	}
}

func (e *Engine) enabledRules(ctx context.Context) ([]domain.GuardRule, error) {
	if e.rules == nil {
		return nil, fmt.Errorf("guard: no rule repository configured")
	}
	if e.cache != nil {
		if cached, ok := e.cache.Get(enabledRulesKey); ok {
			if rules, ok := cached.([]domain.GuardRule); ok {
				return rules, nil
			}
		}
	}
	rules, err := e.rules.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(enabledRulesKey, rules, e.ttl)
	}
	return rules, nil
}

// Partition keeps enabled rules applicable to genType, sorts them by ascending
// priority and splits them into system and negative groups.
func Partition(rules []domain.GuardRule, genType domain.GenerationType) (system, negative []domain.GuardRule) {
	filtered := make([]domain.GuardRule, 0, len(rules))
	for _, r := range rules {
		if !r.Enabled || !r.AppliesTo(genType) {
			continue
		}
		filtered = append(filtered, r)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Priority < filtered[j].Priority
	})
	for _, r := range filtered {
		if r.IsNegative() {
			negative = append(negative, r)
		} else {
			system = append(system, r)
		}
	}
	return system, negative
}

// MergeBasePrompt substitutes the user prompt into a template placeholder, or
// prefixes the template when it has none.
func MergeBasePrompt(templatePrompt, userPrompt string) string {
	tpl := strings.TrimSpace(templatePrompt)
	user := strings.TrimSpace(userPrompt)
	if tpl == "" {
		return user
	}
	for _, ph := range placeholders {
		if strings.Contains(tpl, ph) {
			return strings.TrimSpace(strings.ReplaceAll(tpl, ph, user))
		}
	}
	if user == "" {
		return tpl
	}
	return tpl + ", " + user
}

func joinHidden(rules []domain.GuardRule, sep string) string {
	parts := make([]string, 0, len(rules))
	for _, r := range rules {
		text := strings.TrimSpace(r.HiddenPrompt)
		if sep == systemSeparator {
			text = strings.TrimRight(text, ". ")
		} else {
			text = strings.TrimRight(text, ", ")
		}
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, sep)
}
