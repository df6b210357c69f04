package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"shopfloor/internal/storage"
)

func (c *conn) GetProductionOrder(ctx context.Context, id int64) (*storage.ProductionOrder, error) {
	const op = "storage.mysql.GetProductionOrder"

	stmt := `
		SELECT id, code, product_id, quantity_ordered, quantity_completed, status, bom_id
		FROM production_orders
		WHERE id = ?`

	var (
		po    storage.ProductionOrder
		bomID sql.NullInt64
	)
	err := c.q.QueryRowContext(ctx, stmt, id).Scan(
		&po.ID,
		&po.Code,
		&po.ProductID,
		&po.QuantityOrdered,
		&po.QuantityCompleted,
		&po.Status,
		&bomID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, fmt.Sprintf("production order %d", id)))
	}
	if bomID.Valid {
		po.BOMID = &bomID.Int64
	}

	return &po, nil
}

func (c *conn) UpdateProductionOrder(ctx context.Context, po storage.ProductionOrder) error {
	const op = "storage.mysql.UpdateProductionOrder"

	stmt := `
		UPDATE production_orders
		SET status = ?, quantity_completed = ?, updated_at = NOW()
		WHERE id = ?`

	res, err := c.q.ExecContext(ctx, stmt, po.Status, po.QuantityCompleted, po.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL не считает строку измененной, если значения совпали
		if _, err := c.GetProductionOrder(ctx, po.ID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}
