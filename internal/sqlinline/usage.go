package sqlinline

const QInsertUsageEvent = `--sql 5633375b-67e5-4604-a24e-ffa10ca53c53
insert into usage_events (id, job_id, user_id, meter, quantity, engine, provider)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::int, $6::text, $7::text)
on conflict (job_id, meter) where job_id is not null do nothing;
`
