package repo

const insertAccount = `
INSERT INTO accounts (id, user_id, balance, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)`

const getAccountByUserID = `
SELECT id, user_id, balance, created_at, updated_at
FROM accounts
WHERE user_id = $1`

const getAccountForUpdate = `
SELECT id, user_id, balance, created_at, updated_at
FROM accounts
WHERE user_id = $1
FOR UPDATE`

const addToBalance = `
UPDATE accounts
SET balance = balance + $2, updated_at = now()
WHERE id = $1`

const insertTransaction = `
INSERT INTO transactions (id, account_id, user_id, amount, type, status, description, order_id, external_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const existsTransactionWithExternalID = `
SELECT EXISTS (
    SELECT 1 FROM transactions
    WHERE external_id = $1
)`

const updateTransactionStatus = `
UPDATE transactions
SET status = $2,
    completed_at = CASE WHEN $2 IN ('Completed', 'Failed') THEN now() ELSE completed_at END
WHERE id = $1`

const getTransactionsByUser = `
SELECT id, account_id, user_id, amount, type, status, description, order_id, external_id, created_at, completed_at
FROM transactions
WHERE user_id = $1
ORDER BY created_at DESC`

const getPaymentsByUser = `
SELECT id, account_id, user_id, amount, type, status, description, order_id, external_id, created_at, completed_at
FROM transactions
WHERE user_id = $1 AND type = 'Payment'
ORDER BY created_at DESC`
