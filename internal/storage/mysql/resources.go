package mysql

import (
	"context"
	"fmt"

	"shopfloor/internal/storage"
)

// Станки и принтеры хранятся в разных таблицах с одинаковым набором колонок.
func resourceTable(kind storage.ResourceKind) (string, error) {
	switch kind {
	case storage.ResourceMachine:
		return "resources", nil
	case storage.ResourcePrinter:
		return "printers", nil
	}
	return "", fmt.Errorf("unknown resource kind %q", kind)
}

func (c *conn) GetResource(ctx context.Context, ref storage.ResourceRef) (*storage.Resource, error) {
	const op = "storage.mysql.GetResource"

	table, err := resourceTable(ref.Kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stmt := `
		SELECT id, work_center_id, code, name, status, is_active, physical_class
		FROM ` + table + `
		WHERE id = ?`

	res := storage.Resource{Ref: storage.ResourceRef{Kind: ref.Kind}}
	err = c.q.QueryRowContext(ctx, stmt, ref.ID).Scan(
		&res.Ref.ID,
		&res.WorkCenterID,
		&res.Code,
		&res.Name,
		&res.Status,
		&res.IsActive,
		&res.PhysicalClass,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, "resource "+ref.String()))
	}

	return &res, nil
}
