package sqlinline

const QInsertJobEvent = `--sql 62e76fdf-0f59-4a5a-a85e-a33c08890263
insert into job_events (id, job_id, status, progress, message, payload)
values ($1::uuid, $2::uuid, $3::text, $4::int, $5::text, coalesce($6::jsonb, '{}'::jsonb));
`

const QSelectJobEvents = `--sql d223bdb7-a60a-49fa-9fb7-ebb95794d54e
select id, job_id, status, progress, message, payload, created_at
from job_events
where job_id = $1::uuid
order by created_at asc, id asc;
`
