package sqlinline

// QSelectAdminPrincipal reports whether the principal is an active admin.
const QSelectAdminPrincipal = `--sql 3f1c9a2e-6d8b-4f05-9c71-2a4be08d51c6
select exists(
  select 1 from admins
  where principal = $1 and revoked_at is null
)`
