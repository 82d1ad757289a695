package sqlinline

const QGetTemplate = `--sql c106f302-18ea-4504-b8ec-fe738bb1ef1f
select id::text, name, prompt, cost_override, coalesce(creator_id, '')
from prompt_templates
where id = $1::text
  and published = true;
`
