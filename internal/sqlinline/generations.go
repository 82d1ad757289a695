package sqlinline

const QInsertGenerationRecord = `--sql 813c4441-c192-4699-b8de-37dcc858fb03
insert into generation_records (
    id, user_id, backend_key, template_id, prompt, image_url, cost,
    quality, aspect_ratio, status, error_message, created_at, updated_at
)
values (
    $1::uuid, $2::text, $3::text, nullif($4::text, ''), $5::text, $6::text, $7::numeric,
    $8::text, $9::text, $10::text, nullif($11::text, ''), $12::timestamptz, $12::timestamptz
);
`

const QListGenerationRecords = `--sql 2a6acdc3-4e69-43da-96fb-f6d53ca4a30b
select id::text, user_id, backend_key, coalesce(template_id, ''), prompt, image_url, cost,
       quality, aspect_ratio, status, coalesce(error_message, ''),
       favorite, download_count, share_count, created_at, updated_at
from generation_records
where user_id = $1::text
order by created_at desc
limit $2::int;
`

const QToggleFavorite = `--sql c7e78405-9d25-4115-abb1-f14aa4903ddd
update generation_records
set favorite = not favorite,
    updated_at = now()
where id = $1::uuid
  and user_id = $2::text;
`

const QIncrementDownloadCount = `--sql 3a126488-be7b-45f2-89d4-b70599686021
update generation_records
set download_count = download_count + 1,
    updated_at = now()
where id = $1::uuid
  and user_id = $2::text;
`

const QIncrementShareCount = `--sql 03949546-cec7-4826-aaec-d5531c8f5474
update generation_records
set share_count = share_count + 1,
    updated_at = now()
where id = $1::uuid
  and user_id = $2::text;
`
