package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/shopspring/decimal"

	"shopfloor/internal/storage"
)

var errReadOnly = errors.New("memory: write in read-only view")

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*memTx)(nil)
)

type memTx struct {
	state    state
	readOnly bool
}

func (tx *memTx) writable() error {
	if tx.readOnly {
		return errReadOnly
	}
	return nil
}

func (tx *memTx) LockProductionOrder(_ context.Context, id int64) error {
	if _, ok := tx.state.orders[id]; !ok {
		return fmt.Errorf("production order %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (tx *memTx) LockResource(_ context.Context, ref storage.ResourceRef) error {
	if _, ok := tx.state.resources[ref]; !ok {
		return fmt.Errorf("resource %s: %w", ref, storage.ErrNotFound)
	}
	return nil
}

func (tx *memTx) GetProductionOrder(_ context.Context, id int64) (*storage.ProductionOrder, error) {
	po, ok := tx.state.orders[id]
	if !ok {
		return nil, fmt.Errorf("production order %d: %w", id, storage.ErrNotFound)
	}
	return &po, nil
}

func (tx *memTx) UpdateProductionOrder(_ context.Context, po storage.ProductionOrder) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if _, ok := tx.state.orders[po.ID]; !ok {
		return fmt.Errorf("production order %d: %w", po.ID, storage.ErrNotFound)
	}
	tx.state.orders[po.ID] = po
	return nil
}

func (tx *memTx) GetResource(_ context.Context, ref storage.ResourceRef) (*storage.Resource, error) {
	r, ok := tx.state.resources[ref]
	if !ok {
		return nil, fmt.Errorf("resource %s: %w", ref, storage.ErrNotFound)
	}
	return &r, nil
}

func (tx *memTx) GetOperation(_ context.Context, id int64) (*storage.Operation, error) {
	op, ok := tx.state.operations[id]
	if !ok {
		return nil, fmt.Errorf("operation %d: %w", id, storage.ErrNotFound)
	}
	return &op, nil
}

func (tx *memTx) ListOperations(_ context.Context, productionOrderID int64) ([]storage.Operation, error) {
	out := make([]storage.Operation, 0)
	for _, op := range tx.state.operations {
		if op.ProductionOrderID == productionOrderID {
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (tx *memTx) CreateOperation(_ context.Context, op storage.Operation) (int64, error) {
	if err := tx.writable(); err != nil {
		return 0, err
	}
	for _, existing := range tx.state.operations {
		if existing.ProductionOrderID == op.ProductionOrderID && existing.Sequence == op.Sequence {
			return 0, fmt.Errorf("duplicate sequence %d for production order %d", op.Sequence, op.ProductionOrderID)
		}
	}
	op.ID = tx.state.nextID(0)
	tx.state.operations[op.ID] = op
	return op.ID, nil
}

func (tx *memTx) UpdateOperation(_ context.Context, op storage.Operation) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if _, ok := tx.state.operations[op.ID]; !ok {
		return fmt.Errorf("operation %d: %w", op.ID, storage.ErrNotFound)
	}
	tx.state.operations[op.ID] = op
	return nil
}

func (tx *memTx) DeleteOperations(_ context.Context, productionOrderID int64) (int, error) {
	if err := tx.writable(); err != nil {
		return 0, err
	}
	deleted := 0
	for id, op := range tx.state.operations {
		if op.ProductionOrderID != productionOrderID {
			continue
		}
		for mid, m := range tx.state.materials {
			if m.OperationID == id {
				delete(tx.state.materials, mid)
			}
		}
		delete(tx.state.operations, id)
		deleted++
	}
	return deleted, nil
}

func (tx *memTx) FindBookings(_ context.Context, f storage.BookingFilter) ([]storage.Operation, error) {
	out := make([]storage.Operation, 0)
	for _, op := range tx.state.operations {
		if op.Resource == nil || *op.Resource != f.Resource || !op.Booked() || op.Status.Terminal() {
			continue
		}
		if f.ExcludeID != 0 && op.ID == f.ExcludeID {
			continue
		}
		if f.EndsAfter != nil && !op.ScheduledEnd.After(*f.EndsAfter) {
			continue
		}
		if f.StartsBefore != nil && !op.ScheduledStart.Before(*f.StartsBefore) {
			continue
		}
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledStart.Equal(*out[j].ScheduledStart) {
			return out[i].ScheduledStart.Before(*out[j].ScheduledStart)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (tx *memTx) FindRunning(_ context.Context, ref storage.ResourceRef, excludeID int64) ([]storage.Operation, error) {
	out := make([]storage.Operation, 0)
	for _, op := range tx.state.operations {
		if op.Status != storage.OpRunning || op.Resource == nil || *op.Resource != ref || op.ID == excludeID {
			continue
		}
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetActiveRouting — активная карта изделия с наименьшим id.
func (tx *memTx) GetActiveRouting(_ context.Context, productID int64) (*storage.Routing, error) {
	var found *storage.Routing
	for _, r := range tx.state.routings {
		if r.ProductID != productID || !r.IsActive {
			continue
		}
		if found == nil || r.ID < found.ID {
			r := r
			found = &r
		}
	}
	if found == nil {
		return nil, fmt.Errorf("active routing for product %d: %w", productID, storage.ErrNotFound)
	}
	return found, nil
}

func (tx *memTx) ListRoutingOperations(_ context.Context, routingID int64) ([]storage.RoutingOperation, error) {
	out := make([]storage.RoutingOperation, 0)
	for _, ro := range tx.state.routingOps {
		if ro.RoutingID == routingID {
			out = append(out, ro)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (tx *memTx) ListRoutingOperationMaterials(_ context.Context, routingOperationID int64) ([]storage.RoutingOperationMaterial, error) {
	out := make([]storage.RoutingOperationMaterial, 0)
	for _, m := range tx.state.routingMaterials {
		if m.RoutingOperationID == routingOperationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memTx) ListOperationMaterials(_ context.Context, operationID int64) ([]storage.OperationMaterial, error) {
	out := make([]storage.OperationMaterial, 0)
	for _, m := range tx.state.materials {
		if m.OperationID == operationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memTx) CreateOperationMaterial(_ context.Context, m storage.OperationMaterial) (int64, error) {
	if err := tx.writable(); err != nil {
		return 0, err
	}
	if _, ok := tx.state.operations[m.OperationID]; !ok {
		return 0, fmt.Errorf("operation %d: %w", m.OperationID, storage.ErrNotFound)
	}
	m.ID = tx.state.nextID(0)
	tx.state.materials[m.ID] = m
	return m.ID, nil
}

func (tx *memTx) UpdateOperationMaterial(_ context.Context, m storage.OperationMaterial) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if _, ok := tx.state.materials[m.ID]; !ok {
		return fmt.Errorf("operation material %d: %w", m.ID, storage.ErrNotFound)
	}
	tx.state.materials[m.ID] = m
	return nil
}

func (tx *memTx) ListBOMLines(_ context.Context, bomID int64, stages []storage.ConsumeStage) ([]storage.BOMLine, error) {
	out := make([]storage.BOMLine, 0)
	for _, l := range tx.state.bomLines {
		if l.BOMID != bomID || l.IsCostOnly || !slices.Contains(stages, l.ConsumeStage) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memTx) GetComponent(_ context.Context, id int64) (*storage.Component, error) {
	c, ok := tx.state.components[id]
	if !ok {
		return nil, fmt.Errorf("component %d: %w", id, storage.ErrNotFound)
	}
	return &c, nil
}

func inventoryRows(s state, productID int64) []storage.InventoryRow {
	out := make([]storage.InventoryRow, 0)
	for _, row := range s.inventory {
		if row.ProductID == productID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LocationID != out[j].LocationID {
			return out[i].LocationID < out[j].LocationID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (tx *memTx) AvailableQuantity(_ context.Context, productID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, row := range inventoryRows(tx.state, productID) {
		total = total.Add(row.OnHand.Sub(row.Allocated))
	}
	return total, nil
}

func (tx *memTx) ConsumeInventory(_ context.Context, productID int64, qty, release decimal.Decimal) (decimal.Decimal, error) {
	if err := tx.writable(); err != nil {
		return decimal.Zero, err
	}

	changed, deducted := storage.PlanConsumption(inventoryRows(tx.state, productID), qty, release)
	for _, row := range changed {
		tx.state.inventory[row.ID] = row
	}
	return deducted, nil
}

func (tx *memTx) OpenSupply(_ context.Context, productID int64) ([]storage.IncomingSupply, error) {
	out := make([]storage.IncomingSupply, 0)
	for _, l := range tx.state.purchaseLines {
		if l.ProductID != productID {
			continue
		}
		po, ok := tx.state.purchaseOrders[l.PurchaseOrderID]
		if !ok || !po.Status.Open() {
			continue
		}
		remaining := l.QuantityOrdered.Sub(l.QuantityReceived)
		if !remaining.IsPositive() {
			continue
		}
		out = append(out, storage.IncomingSupply{
			PurchaseOrderID:   po.ID,
			PurchaseOrderCode: po.Code,
			Quantity:          remaining,
			ExpectedDate:      po.ExpectedDate,
		})
	}
	sort.Slice(out, func(i, j int) bool { return storage.SupplyLess(out[i], out[j]) })
	return out, nil
}
