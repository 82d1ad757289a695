package sqlinline

const QListEnabledGuardRules = `--sql 45af3017-4d4f-46c0-b0fa-5dd6fdcd60d8
select id::text, name, rule_type, enabled, priority, hidden_prompt, apply_to
from guard_rules
where enabled = true
order by priority asc, created_at asc;
`

const QListGuardRules = `--sql c6488313-178e-4ffe-ac87-9747e225e2cc
select id::text, name, rule_type, enabled, priority, hidden_prompt, apply_to
from guard_rules
order by priority asc, created_at asc;
`
