package mysql

import (
	"context"
	"fmt"

	"shopfloor/internal/storage"
)

func (c *conn) GetActiveRouting(ctx context.Context, productID int64) (*storage.Routing, error) {
	const op = "storage.mysql.GetActiveRouting"

	stmt := `
		SELECT id, product_id, code, COALESCE(name, ''), is_active
		FROM routings
		WHERE product_id = ? AND is_active = 1
		ORDER BY id
		LIMIT 1`

	var r storage.Routing
	err := c.q.QueryRowContext(ctx, stmt, productID).Scan(&r.ID, &r.ProductID, &r.Code, &r.Name, &r.IsActive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, fmt.Sprintf("active routing for product %d", productID)))
	}
	return &r, nil
}

func (c *conn) ListRoutingOperations(ctx context.Context, routingID int64) ([]storage.RoutingOperation, error) {
	const op = "storage.mysql.ListRoutingOperations"

	stmt := `
		SELECT id, routing_id, work_center_id, sequence, operation_code, COALESCE(operation_name, ''),
		       setup_time_minutes, run_time_minutes, wait_time_minutes, move_time_minutes
		FROM routing_operations
		WHERE routing_id = ?
		ORDER BY sequence`

	rows, err := c.q.QueryContext(ctx, stmt, routingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	steps := make([]storage.RoutingOperation, 0)
	for rows.Next() {
		var s storage.RoutingOperation
		if err := rows.Scan(
			&s.ID,
			&s.RoutingID,
			&s.WorkCenterID,
			&s.Sequence,
			&s.OperationCode,
			&s.OperationName,
			&s.SetupTimeMinutes,
			&s.RunTimeMinutes,
			&s.WaitTimeMinutes,
			&s.MoveTimeMinutes,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return steps, nil
}

func (c *conn) ListRoutingOperationMaterials(ctx context.Context, routingOperationID int64) ([]storage.RoutingOperationMaterial, error) {
	const op = "storage.mysql.ListRoutingOperationMaterials"

	stmt := `
		SELECT id, routing_operation_id, component_id, quantity, quantity_per, COALESCE(unit, ''),
		       scrap_factor, is_cost_only, is_optional
		FROM routing_operation_materials
		WHERE routing_operation_id = ?
		ORDER BY id`

	rows, err := c.q.QueryContext(ctx, stmt, routingOperationID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]storage.RoutingOperationMaterial, 0)
	for rows.Next() {
		var m storage.RoutingOperationMaterial
		if err := rows.Scan(
			&m.ID,
			&m.RoutingOperationID,
			&m.ComponentID,
			&m.Quantity,
			&m.QuantityPer,
			&m.Unit,
			&m.ScrapFactor,
			&m.IsCostOnly,
			&m.IsOptional,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
