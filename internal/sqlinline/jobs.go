package sqlinline

const QInsertJob = `--sql e804c17d-8a72-40ba-b3d9-caaef57dec2e
insert into jobs (
  id, user_id, org_id, provider, engine, prompt, ratio, duration_seconds,
  with_audio, quantity, seed, preset_id, metadata, status, progress,
  cost_estimate_cents
)
values (
  $1::uuid, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text, $8::int,
  $9::boolean, $10::int, $11::bigint, $12::text, coalesce($13::jsonb, '{}'::jsonb),
  'pending', 0, $14::int
)
returning created_at, updated_at;
`

const jobColumns = `
  id, user_id, org_id, external_job_id, provider, engine, prompt, ratio,
  duration_seconds, with_audio, quantity, seed, preset_id, metadata, status,
  progress, cost_estimate_cents, cost_actual_cents, duration_actual_seconds,
  output_url, thumbnail_url, archive_url, error, created_at, updated_at`

const QSelectJobByID = `--sql a1038b32-7bb3-4ace-8c7e-17e6e5b170aa
select` + jobColumns + `
from jobs
where id = $1::uuid;
`

const QSelectJobByExternalID = `--sql dea7fe11-1ea1-4b39-be35-f3f2863c055e
select` + jobColumns + `
from jobs
where external_job_id = $1::text;
`

// QUpdateJob applies a partial patch. Null arguments leave the column alone.
// external_job_id and cost_actual_cents are set-once: a non-null argument is
// ignored when the column already holds a value. progress never regresses and
// terminal statuses are never overwritten. These conditions live in SQL so
// that concurrent webhook and poll writers cannot lose updates to each other.
const QUpdateJob = `--sql ba52aa47-e806-4a4b-8892-fea9c9d85b85
update jobs
set status                  = case
                                when status in ('completed', 'failed') then status
                                else coalesce($2::text, status)
                              end,
    progress                = greatest(progress, coalesce($3::int, progress)),
    external_job_id         = coalesce(external_job_id, $4::text),
    cost_actual_cents       = coalesce(cost_actual_cents, $5::int),
    duration_actual_seconds = coalesce($6::int, duration_actual_seconds),
    output_url              = coalesce($7::text, output_url),
    thumbnail_url           = coalesce($8::text, thumbnail_url),
    archive_url             = coalesce($9::text, archive_url),
    error                   = coalesce($10::text, error),
    updated_at              = now()
where id = $1::uuid
returning` + jobColumns + `;
`

const QSelectPollableJobs = `--sql e5c2c027-79fb-4993-ae55-40cd85fe185a
select` + jobColumns + `
from jobs
where external_job_id is not null
  and status in ('pending', 'running')
order by updated_at asc
limit $1::int;
`

const QSelectArchivableJobs = `--sql 3bc4ff6d-26e3-43a0-88ff-e0b65bef7647
select` + jobColumns + `
from jobs
where status = 'completed'
  and output_url is not null
  and archive_url is null
order by updated_at asc
limit $1::int;
`

const QSelectJobsByUser = `--sql 022660f3-5c8d-4e13-965a-46077342533f
select` + jobColumns + `
from jobs
where user_id = $1::text
order by created_at desc
limit $2::int;
`
