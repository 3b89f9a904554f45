package outbox

const insertMessage = `
INSERT INTO outbox_messages (id, type, content, created_at, status)
VALUES ($1, $2, ($3)::jsonb, $4, $5)`

const getPending = `
SELECT id, type, content, created_at, processed_at, status, error
FROM outbox_messages
WHERE status = 'Pending'
ORDER BY created_at
LIMIT $1`

const markProcessed = `
UPDATE outbox_messages
SET status = 'Processed', processed_at = now()
WHERE id = $1 AND status = 'Pending'`

const markFailed = `
UPDATE outbox_messages
SET status = 'Failed', error = $2
WHERE id = $1 AND status = 'Pending'`

const purgeProcessed = `
DELETE FROM outbox_messages
WHERE status = 'Processed' AND processed_at < now() - make_interval(days => $1)`
