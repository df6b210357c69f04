package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"shopfloor/internal/storage"
)

func (c *conn) ListOperationMaterials(ctx context.Context, operationID int64) ([]storage.OperationMaterial, error) {
	const op = "storage.mysql.ListOperationMaterials"

	stmt := `
		SELECT id, production_order_operation_id, component_id, routing_operation_material_id,
		       quantity_required, quantity_allocated, quantity_consumed, COALESCE(unit, ''), status
		FROM production_order_operation_materials
		WHERE production_order_operation_id = ?
		ORDER BY id`

	rows, err := c.q.QueryContext(ctx, stmt, operationID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]storage.OperationMaterial, 0)
	for rows.Next() {
		var (
			m          storage.OperationMaterial
			templateID sql.NullInt64
		)
		if err := rows.Scan(
			&m.ID,
			&m.OperationID,
			&m.ComponentID,
			&templateID,
			&m.QuantityRequired,
			&m.QuantityAllocated,
			&m.QuantityConsumed,
			&m.Unit,
			&m.Status,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if templateID.Valid {
			m.RoutingOperationMaterialID = &templateID.Int64
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (c *conn) CreateOperationMaterial(ctx context.Context, m storage.OperationMaterial) (int64, error) {
	const op = "storage.mysql.CreateOperationMaterial"

	stmt := `
		INSERT INTO production_order_operation_materials (
			production_order_operation_id, component_id, routing_operation_material_id,
			quantity_required, quantity_allocated, quantity_consumed, unit, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := c.q.ExecContext(ctx, stmt,
		m.OperationID,
		m.ComponentID,
		m.RoutingOperationMaterialID,
		m.QuantityRequired,
		m.QuantityAllocated,
		m.QuantityConsumed,
		m.Unit,
		m.Status,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (c *conn) UpdateOperationMaterial(ctx context.Context, m storage.OperationMaterial) error {
	const op = "storage.mysql.UpdateOperationMaterial"

	stmt := `
		UPDATE production_order_operation_materials
		SET quantity_allocated = ?, quantity_consumed = ?, status = ?
		WHERE id = ?`

	if _, err := c.q.ExecContext(ctx, stmt, m.QuantityAllocated, m.QuantityConsumed, m.Status, m.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *conn) ListBOMLines(ctx context.Context, bomID int64, stages []storage.ConsumeStage) ([]storage.BOMLine, error) {
	const op = "storage.mysql.ListBOMLines"

	if len(stages) == 0 {
		return []storage.BOMLine{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(stages)), ", ")
	stmt := `
		SELECT id, bom_id, component_id, quantity, COALESCE(unit, ''), consume_stage, scrap_factor, is_cost_only
		FROM bom_lines
		WHERE bom_id = ? AND is_cost_only = 0 AND consume_stage IN (` + placeholders + `)
		ORDER BY id`

	args := make([]any, 0, len(stages)+1)
	args = append(args, bomID)
	for _, s := range stages {
		args = append(args, string(s))
	}

	rows, err := c.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]storage.BOMLine, 0)
	for rows.Next() {
		var l storage.BOMLine
		if err := rows.Scan(
			&l.ID,
			&l.BOMID,
			&l.ComponentID,
			&l.Quantity,
			&l.Unit,
			&l.ConsumeStage,
			&l.ScrapFactor,
			&l.IsCostOnly,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (c *conn) GetComponent(ctx context.Context, id int64) (*storage.Component, error) {
	const op = "storage.mysql.GetComponent"

	var comp storage.Component
	err := c.q.QueryRowContext(ctx,
		`SELECT id, sku, name, COALESCE(unit, '') FROM products WHERE id = ?`, id,
	).Scan(&comp.ID, &comp.SKU, &comp.Name, &comp.Unit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, fmt.Sprintf("component %d", id)))
	}
	return &comp, nil
}

func (c *conn) AvailableQuantity(ctx context.Context, productID int64) (decimal.Decimal, error) {
	const op = "storage.mysql.AvailableQuantity"

	var available decimal.Decimal
	err := c.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(on_hand_quantity - allocated_quantity), 0)
		FROM inventory
		WHERE product_id = ?`, productID,
	).Scan(&available)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return available, nil
}

// ConsumeInventory перечитывает остатки под блокировкой и списывает по складам
// в порядке location_id.
func (c *conn) ConsumeInventory(ctx context.Context, productID int64, qty, release decimal.Decimal) (decimal.Decimal, error) {
	const op = "storage.mysql.ConsumeInventory"

	rows, err := c.q.QueryContext(ctx, `
		SELECT id, product_id, location_id, on_hand_quantity, allocated_quantity
		FROM inventory
		WHERE product_id = ?
		ORDER BY location_id, id`+c.forUpdate(), productID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	inventory := make([]storage.InventoryRow, 0)
	for rows.Next() {
		var r storage.InventoryRow
		if err := rows.Scan(&r.ID, &r.ProductID, &r.LocationID, &r.OnHand, &r.Allocated); err != nil {
			rows.Close()
			return decimal.Zero, fmt.Errorf("%s: %w", op, err)
		}
		inventory = append(inventory, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	changed, deducted := storage.PlanConsumption(inventory, qty, release)
	for _, r := range changed {
		_, err := c.q.ExecContext(ctx, `
			UPDATE inventory SET on_hand_quantity = ?, allocated_quantity = ?
			WHERE id = ?`, r.OnHand, r.Allocated, r.ID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: склад %d: %w", op, r.LocationID, err)
		}
	}

	return deducted, nil
}

func (c *conn) OpenSupply(ctx context.Context, productID int64) ([]storage.IncomingSupply, error) {
	const op = "storage.mysql.OpenSupply"

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(storage.OpenPurchaseStatuses)), ", ")
	stmt := `
		SELECT po.id, po.code, pol.quantity_ordered - pol.quantity_received, po.expected_date
		FROM purchase_order_lines pol
		JOIN purchase_orders po ON po.id = pol.purchase_order_id
		WHERE pol.product_id = ?
		  AND po.status IN (` + placeholders + `)
		  AND pol.quantity_ordered - pol.quantity_received > 0
		ORDER BY po.expected_date IS NULL, po.expected_date, po.id`

	args := []any{productID}
	for _, s := range storage.OpenPurchaseStatuses {
		args = append(args, string(s))
	}

	rows, err := c.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]storage.IncomingSupply, 0)
	for rows.Next() {
		var (
			s        storage.IncomingSupply
			expected sql.NullTime
		)
		if err := rows.Scan(&s.PurchaseOrderID, &s.PurchaseOrderCode, &s.Quantity, &expected); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.ExpectedDate = timePtr(expected)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
