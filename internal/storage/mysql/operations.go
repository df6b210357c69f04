package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"shopfloor/internal/storage"
)

const operationColumns = `
	id, production_order_id, routing_operation_id, sequence, operation_code,
	COALESCE(operation_name, ''), work_center_id, resource_kind, resource_id,
	scheduled_start, scheduled_end, status, planned_setup_minutes, planned_run_minutes,
	actual_start, actual_end, actual_setup_minutes, actual_run_minutes,
	quantity_completed, quantity_scrapped, COALESCE(scrap_reason, ''),
	COALESCE(operator_name, ''), COALESCE(notes, '')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (storage.Operation, error) {
	var (
		op             storage.Operation
		routingOpID    sql.NullInt64
		resourceKind   sql.NullString
		resourceID     sql.NullInt64
		scheduledStart sql.NullTime
		scheduledEnd   sql.NullTime
		actualStart    sql.NullTime
		actualEnd      sql.NullTime
	)

	err := row.Scan(
		&op.ID,
		&op.ProductionOrderID,
		&routingOpID,
		&op.Sequence,
		&op.OperationCode,
		&op.OperationName,
		&op.WorkCenterID,
		&resourceKind,
		&resourceID,
		&scheduledStart,
		&scheduledEnd,
		&op.Status,
		&op.PlannedSetupMin,
		&op.PlannedRunMin,
		&actualStart,
		&actualEnd,
		&op.ActualSetupMin,
		&op.ActualRunMin,
		&op.QuantityCompleted,
		&op.QuantityScrapped,
		&op.ScrapReason,
		&op.OperatorName,
		&op.Notes,
	)
	if err != nil {
		return op, err
	}

	if routingOpID.Valid {
		op.RoutingOperationID = &routingOpID.Int64
	}
	if resourceKind.Valid && resourceID.Valid {
		op.Resource = &storage.ResourceRef{Kind: storage.ResourceKind(resourceKind.String), ID: resourceID.Int64}
	}
	op.ScheduledStart = timePtr(scheduledStart)
	op.ScheduledEnd = timePtr(scheduledEnd)
	op.ActualStart = timePtr(actualStart)
	op.ActualEnd = timePtr(actualEnd)

	return op, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func resourceArgs(ref *storage.ResourceRef) (any, any) {
	if ref == nil {
		return nil, nil
	}
	return string(ref.Kind), ref.ID
}

func (c *conn) queryOperations(ctx context.Context, op string, stmt string, args ...any) ([]storage.Operation, error) {
	rows, err := c.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	ops := make([]storage.Operation, 0)
	for rows.Next() {
		o, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ops = append(ops, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: ошибка сканирования строк %w", op, err)
	}
	return ops, nil
}

func (c *conn) GetOperation(ctx context.Context, id int64) (*storage.Operation, error) {
	const op = "storage.mysql.GetOperation"

	stmt := `SELECT ` + operationColumns + ` FROM production_order_operations WHERE id = ?`

	o, err := scanOperation(c.q.QueryRowContext(ctx, stmt, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, fmt.Sprintf("operation %d", id)))
	}
	return &o, nil
}

func (c *conn) ListOperations(ctx context.Context, productionOrderID int64) ([]storage.Operation, error) {
	const op = "storage.mysql.ListOperations"

	stmt := `SELECT ` + operationColumns + `
		FROM production_order_operations
		WHERE production_order_id = ?
		ORDER BY sequence, id`

	return c.queryOperations(ctx, op, stmt, productionOrderID)
}

func (c *conn) CreateOperation(ctx context.Context, o storage.Operation) (int64, error) {
	const op = "storage.mysql.CreateOperation"

	stmt := `
		INSERT INTO production_order_operations (
			production_order_id, routing_operation_id, sequence, operation_code, operation_name,
			work_center_id, resource_kind, resource_id, scheduled_start, scheduled_end, status,
			planned_setup_minutes, planned_run_minutes, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`

	kind, resourceID := resourceArgs(o.Resource)
	res, err := c.q.ExecContext(ctx, stmt,
		o.ProductionOrderID,
		o.RoutingOperationID,
		o.Sequence,
		o.OperationCode,
		o.OperationName,
		o.WorkCenterID,
		kind,
		resourceID,
		o.ScheduledStart,
		o.ScheduledEnd,
		o.Status,
		o.PlannedSetupMin,
		o.PlannedRunMin,
		o.Notes,
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

func (c *conn) UpdateOperation(ctx context.Context, o storage.Operation) error {
	const op = "storage.mysql.UpdateOperation"

	stmt := `
		UPDATE production_order_operations SET
			resource_kind = ?, resource_id = ?, scheduled_start = ?, scheduled_end = ?, status = ?,
			actual_start = ?, actual_end = ?, actual_setup_minutes = ?, actual_run_minutes = ?,
			quantity_completed = ?, quantity_scrapped = ?, scrap_reason = ?, operator_name = ?,
			notes = ?, updated_at = NOW()
		WHERE id = ?`

	kind, resourceID := resourceArgs(o.Resource)
	_, err := c.q.ExecContext(ctx, stmt,
		kind,
		resourceID,
		o.ScheduledStart,
		o.ScheduledEnd,
		o.Status,
		o.ActualStart,
		o.ActualEnd,
		o.ActualSetupMin,
		o.ActualRunMin,
		o.QuantityCompleted,
		o.QuantityScrapped,
		o.ScrapReason,
		o.OperatorName,
		o.Notes,
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteOperations: материалы удаляются явно, не полагаясь на ON DELETE CASCADE.
func (c *conn) DeleteOperations(ctx context.Context, productionOrderID int64) (int, error) {
	const op = "storage.mysql.DeleteOperations"

	_, err := c.q.ExecContext(ctx, `
		DELETE m FROM production_order_operation_materials m
		JOIN production_order_operations o ON o.id = m.production_order_operation_id
		WHERE o.production_order_id = ?`, productionOrderID)
	if err != nil {
		return 0, fmt.Errorf("%s: удаление материалов: %w", op, err)
	}

	res, err := c.q.ExecContext(ctx, `DELETE FROM production_order_operations WHERE production_order_id = ?`, productionOrderID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}

var terminalStatuses = []storage.OperationStatus{storage.OpComplete, storage.OpSkipped, storage.OpCancelled}

func (c *conn) FindBookings(ctx context.Context, f storage.BookingFilter) ([]storage.Operation, error) {
	const op = "storage.mysql.FindBookings"

	var sb strings.Builder
	sb.WriteString(`SELECT ` + operationColumns + `
		FROM production_order_operations
		WHERE resource_kind = ? AND resource_id = ?
		  AND scheduled_start IS NOT NULL AND scheduled_end IS NOT NULL
		  AND status NOT IN (?, ?, ?)`)
	args := []any{string(f.Resource.Kind), f.Resource.ID}
	for _, s := range terminalStatuses {
		args = append(args, s)
	}

	if f.EndsAfter != nil {
		sb.WriteString(` AND scheduled_end > ?`)
		args = append(args, *f.EndsAfter)
	}
	if f.StartsBefore != nil {
		sb.WriteString(` AND scheduled_start < ?`)
		args = append(args, *f.StartsBefore)
	}
	if f.ExcludeID != 0 {
		sb.WriteString(` AND id <> ?`)
		args = append(args, f.ExcludeID)
	}
	sb.WriteString(` ORDER BY scheduled_start, id`)

	return c.queryOperations(ctx, op, sb.String(), args...)
}

func (c *conn) FindRunning(ctx context.Context, ref storage.ResourceRef, excludeID int64) ([]storage.Operation, error) {
	const op = "storage.mysql.FindRunning"

	stmt := `SELECT ` + operationColumns + `
		FROM production_order_operations
		WHERE resource_kind = ? AND resource_id = ? AND status = ? AND id <> ?
		ORDER BY id`

	return c.queryOperations(ctx, op, stmt, string(ref.Kind), ref.ID, storage.OpRunning, excludeID)
}
