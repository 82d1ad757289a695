package sqlinline

const QGetAccount = `--sql 68023d32-2d5e-4dc5-87e5-b557b5ba53ee
select
    u.user_id,
    coalesce(pb.points, 0)::numeric,
    p.user_id is not null as has_pool,
    coalesce(p.credits_allocated, 0)::numeric,
    coalesce(p.credits_used, 0)::numeric,
    p.period_end
from (select $1::text as user_id) u
left join point_balances pb on pb.user_id = u.user_id
left join subscription_credit_pools p
       on p.user_id = u.user_id
      and (p.period_end is null or p.period_end > now())
where pb.user_id is not null or p.user_id is not null;
`

// QConsumeCredits only succeeds while the pool still covers the amount.
const QConsumeCredits = `--sql 6ba075ff-b2cd-4264-bae6-32d13dab424f
update subscription_credit_pools
set credits_used = credits_used + $2::numeric,
    updated_at = now()
where user_id = $1::text
  and credits_allocated - credits_used >= $2::numeric
  and (period_end is null or period_end > now());
`

// QDeductPoints is a conditional decrement; zero rows means the balance was
// spent by a concurrent request.
const QDeductPoints = `--sql a756dfe1-49a6-4297-8c41-c5157c3a5d12
update point_balances
set points = points - $2::numeric,
    updated_at = now()
where user_id = $1::text
  and points >= $2::numeric
returning points;
`

const QCreditPoints = `--sql 4197d92d-be5b-40cd-9798-7a4eeebceb6c
insert into point_balances (user_id, points, created_at, updated_at)
values ($1::text, $2::numeric, now(), now())
on conflict (user_id) do update set
    points = point_balances.points + excluded.points,
    updated_at = now();
`

const QAllocateCredits = `--sql 9f01dcce-3c21-4102-ac30-d84a474aca3e
insert into subscription_credit_pools (user_id, credits_allocated, credits_used, period_end, created_at, updated_at)
values ($1::text, $2::numeric, 0, $3::timestamptz, now(), now())
on conflict (user_id) do update set
    credits_allocated = excluded.credits_allocated,
    credits_used = 0,
    period_end = excluded.period_end,
    updated_at = now();
`

const QInsertLedgerEntry = `--sql 3562e1a6-5634-4744-8dca-c6209bd5b2ed
insert into ledger_entries (id, user_id, amount, direction, source, description, status, reference, created_at)
values ($1::uuid, $2::text, $3::numeric, $4::text, $5::text, $6::text, $7::text, nullif($8::text, ''), $9::timestamptz);
`
