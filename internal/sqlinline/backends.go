package sqlinline

const backendColumns = `key, scope, name, provider, active, enabled, credentials,
       cost_per_image, total_calls, success_rate, avg_latency_ms, created_at, updated_at`

const QListBackends = `--sql ff5d20b2-7de4-4816-a344-1d39913130ba
select ` + backendColumns + `
from backend_configs
where scope = $1::text
order by active desc, name asc;
`

const QGetBackend = `--sql cc9f66cf-6a83-4545-b02a-1bb2b1d0fe84
select ` + backendColumns + `
from backend_configs
where key = $1::text;
`

const QActiveBackend = `--sql 005da562-9f3e-459c-b120-3f89796ee42e
select ` + backendColumns + `
from backend_configs
where scope = $1::text
  and active = true
  and enabled = true
order by updated_at desc
limit 1;
`

const QFirstEnabledBackendByFamily = `--sql 4749df18-660f-42c8-9193-8898cae9b0c6
select ` + backendColumns + `
from backend_configs
where scope = $1::text
  and provider = $2::text
  and enabled = true
  and key <> $3::text
order by active desc, success_rate desc, created_at asc
limit 1;
`

// QLockBackendScope serialises activation writers of one scope.
const QLockBackendScope = `--sql 77d98968-5e37-4db1-bb3b-50e1ddabcccb
select key, enabled
from backend_configs
where scope = $1::text
order by key
for update;
`

// QSetActiveBackend flips every entry of the scope in one statement so the
// scope never holds two active rows.
const QSetActiveBackend = `--sql 00bcec9c-8813-449a-9a3f-e34c0588b6c1
update backend_configs
set active = (key = $1::text),
    updated_at = case when active <> (key = $1::text) then now() else updated_at end
where scope = $2::text;
`

const QUpdateBackendCredentials = `--sql c4e9351e-2c78-4ffd-b728-16c30c7c4ba2
update backend_configs
set credentials = $2::jsonb,
    updated_at = now()
where key = $1::text;
`

const QRecordBackendCall = `--sql c900c415-17ea-444a-9f21-4a0da36651b1
update backend_configs
set total_calls    = total_calls + 1,
    success_rate   = (success_rate * total_calls + $2::float8) / (total_calls + 1),
    avg_latency_ms = (avg_latency_ms * total_calls + $3::float8) / (total_calls + 1)
where key = $1::text;
`

const QUpsertBackend = `--sql 6a1da552-8a30-4f77-940a-2de2fba1ba24
insert into backend_configs (key, scope, name, provider, active, enabled, credentials, cost_per_image, created_at, updated_at)
values ($1::text, $2::text, $3::text, $4::text, false, $5::bool, coalesce($6::jsonb, '{}'::jsonb), $7::numeric, now(), now())
on conflict (key) do update set
    name = excluded.name,
    provider = excluded.provider,
    enabled = excluded.enabled,
    credentials = case when excluded.credentials = '{}'::jsonb then backend_configs.credentials else excluded.credentials end,
    cost_per_image = excluded.cost_per_image,
    updated_at = now();
`
