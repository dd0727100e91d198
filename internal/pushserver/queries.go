package pushserver

const (
	createTableQuery = `
CREATE TABLE IF NOT EXISTS push_subscriptions (
    id          BIGSERIAL PRIMARY KEY,
    owner_id    TEXT        NOT NULL,
    user_type   TEXT        NOT NULL DEFAULT 'admin',
    endpoint    TEXT        NOT NULL UNIQUE,
    p256dh      TEXT        NOT NULL,
    auth        TEXT        NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_push_subscriptions_owner ON push_subscriptions (owner_id);
CREATE INDEX IF NOT EXISTS idx_push_subscriptions_user_type ON push_subscriptions (user_type);`

	upsertSubscriptionQuery = `
INSERT INTO push_subscriptions (owner_id, user_type, endpoint, p256dh, auth, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (endpoint) DO UPDATE
SET owner_id = EXCLUDED.owner_id,
    user_type = EXCLUDED.user_type,
    p256dh = EXCLUDED.p256dh,
    auth = EXCLUDED.auth
RETURNING created_at`

	deleteByEndpointQuery = `
DELETE FROM push_subscriptions
WHERE endpoint = $1
RETURNING owner_id, user_type`

	deleteForOwnerQuery = `
DELETE FROM push_subscriptions
WHERE owner_id = $1 AND endpoint = $2
RETURNING owner_id, user_type`

	selectByEndpointForUpdateQuery = `
SELECT owner_id, user_type
FROM push_subscriptions
WHERE endpoint = $1
FOR UPDATE`

	listByOwnerQuery = `
SELECT owner_id, user_type, endpoint, p256dh, auth, created_at
FROM push_subscriptions
WHERE owner_id = $1
ORDER BY created_at`

	listByUserTypeQuery = `
SELECT owner_id, user_type, endpoint, p256dh, auth, created_at
FROM push_subscriptions
WHERE user_type = $1
ORDER BY created_at`
)
