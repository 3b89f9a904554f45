package repo

const insertOrder = `
INSERT INTO orders (id, user_id, price, description, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)`

const getOrderByID = `
SELECT id, user_id, price, description, status, created_at, updated_at
FROM orders
WHERE id = $1`

const getOrdersByUser = `
SELECT id, user_id, price, description, status, created_at, updated_at
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC`

const updateOrderStatus = `
UPDATE orders
SET status = $2, updated_at = now()
WHERE id = $1`
