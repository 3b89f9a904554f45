package inbox

const insertMessage = `
INSERT INTO inbox_messages (id, message_id, type, content, received_at, processed_at, status)
VALUES ($1, $2, $3, ($4)::jsonb, $5, $6, $7)`

const hasProcessed = `
SELECT EXISTS (
    SELECT 1 FROM inbox_messages
    WHERE message_id = $1 AND status = 'Processed'
)`

const getPending = `
SELECT id, message_id, type, content, received_at, processed_at, status, error
FROM inbox_messages
WHERE status = 'Pending'
ORDER BY received_at
LIMIT $1`

const purgeProcessed = `
DELETE FROM inbox_messages
WHERE status = 'Processed' AND processed_at < now() - make_interval(days => $1)`
