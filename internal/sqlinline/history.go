package sqlinline

const QInsertGenerationHistory = `--sql 4c1b8a52-9d3e-4f6a-8b2c-7e5d0a913f46
insert into generation_history (
  job_id,
  provider,
  kind,
  status,
  prompt,
  model,
  config_json,
  video_url,
  cover_url,
  storage_key,
  error_message,
  submitted_at,
  completed_at
) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
on conflict (job_id) do nothing;
`

const QRecentGenerationHistory = `--sql b7e2d914-3c5f-4a81-9d67-2f8b4c0e5a13
select
  job_id,
  provider,
  kind,
  status,
  prompt,
  model,
  video_url,
  cover_url,
  storage_key,
  error_message,
  submitted_at,
  completed_at
from generation_history
order by completed_at desc
limit $1;
`
