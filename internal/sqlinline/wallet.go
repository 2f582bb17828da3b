package sqlinline

// QInsertWalletEntry relies on the (job_id, entry_type) unique index: a
// duplicate settle or refund inserts zero rows instead of double-charging.
const QInsertWalletEntry = `--sql 07b51889-561b-4e27-9fcf-00887747ab1a
insert into wallet_entries (id, user_id, job_id, entry_type, amount_cents)
values ($1::uuid, $2::text, $3::uuid, $4::text, $5::int)
on conflict (job_id, entry_type) where job_id is not null do nothing;
`

const QSelectWalletBalance = `--sql 666bdfcc-cd51-4edc-9716-5938da2425b4
select coalesce(sum(amount_cents), 0)::int
from wallet_entries
where user_id = $1::text;
`
