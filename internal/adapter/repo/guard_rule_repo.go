package repo

import (
	"context"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/sqlinline"
)

// GuardRuleRepositoryPG implements domain.GuardRuleRepository using PostgreSQL.
type GuardRuleRepositoryPG struct {
	sql    infra.SQLExecutor
	logger *infra.Logger
}

// NewGuardRuleRepository constructs the repository. Rows with an unknown
// rule type are skipped and reported on logger.
func NewGuardRuleRepository(sql infra.SQLExecutor, logger *infra.Logger) *GuardRuleRepositoryPG {
	return &GuardRuleRepositoryPG{sql: sql, logger: infra.LoggerOrDiscard(logger)}
}

// ListEnabled returns enabled rules in ascending priority.
func (r *GuardRuleRepositoryPG) ListEnabled(ctx context.Context) ([]domain.GuardRule, error) {
	return r.list(ctx, sqlinline.QListEnabledGuardRules)
}

// List returns every rule in ascending priority.
func (r *GuardRuleRepositoryPG) List(ctx context.Context) ([]domain.GuardRule, error) {
	return r.list(ctx, sqlinline.QListGuardRules)
}

func (r *GuardRuleRepositoryPG) list(ctx context.Context, query string) ([]domain.GuardRule, error) {
	rows, err := r.sql.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.GuardRule
	for rows.Next() {
		var (
			rule     domain.GuardRule
			ruleType string
			applyTo  []string
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &ruleType, &rule.Enabled, &rule.Priority, &rule.HiddenPrompt, &applyTo); err != nil {
			return nil, err
		}
		rule.Type = domain.RuleType(ruleType)
		if !rule.Type.Valid() {
			r.logger.Warn().Str("rule_id", rule.ID).Str("rule_type", ruleType).Msg("skipping guard rule with unknown type")
			continue
		}
		for _, tag := range applyTo {
			rule.ApplyTo = append(rule.ApplyTo, domain.GenerationType(tag))
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}
