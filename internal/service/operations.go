package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopfloor/internal/storage"
)

// OperationService — машина состояний операций заказа:
// pending → queued → running → {complete, skipped}; cancelled из любого нетерминального.
type OperationService struct {
	store storage.Store
	log   *slog.Logger
	Now   func() time.Time
}

func NewOperationService(store storage.Store, log *slog.Logger) *OperationService {
	return &OperationService{store: store, log: log, Now: time.Now}
}

type OperationSummary struct {
	storage.Operation
	// QuantityInput — сколько годных может поступить на операцию, nil если
	// предыдущая операция еще не закончена.
	QuantityInput *decimal.Decimal `json:"quantity_input"`
}

type OrderSummary struct {
	storage.ProductionOrder
	CurrentOperationSequence *int `json:"current_operation_sequence"`
}

type TransitionResult struct {
	Order     OrderSummary       `json:"production_order"`
	Operation storage.Operation  `json:"operation"`
	Next      *storage.Operation `json:"next_operation"`
}

type StartRequest struct {
	ProductionOrderID int64
	OperationID       int64
	Resource          *storage.ResourceRef
	OperatorName      string
	Notes             string
}

type CompleteRequest struct {
	ProductionOrderID int64
	OperationID       int64
	QuantityCompleted decimal.Decimal
	QuantityScrapped  decimal.Decimal
	ActualRunMinutes  *decimal.Decimal
	ScrapReason       string
	Notes             string
}

func loadOperation(ctx context.Context, tx storage.Tx, poID, opID int64, op string) (*storage.ProductionOrder, *storage.Operation, error) {
	po, err := tx.GetProductionOrder(ctx, poID)
	if err != nil {
		return nil, nil, notFoundOr(err, op, "production order %d not found", poID)
	}
	operation, err := tx.GetOperation(ctx, opID)
	if err != nil {
		return nil, nil, notFoundOr(err, op, "operation %d not found", opID)
	}
	if operation.ProductionOrderID != poID {
		return nil, nil, notFound("operation %d does not belong to production order %d", opID, poID)
	}
	return po, operation, nil
}

func (s *OperationService) List(ctx context.Context, poID int64) (*OrderSummary, []OperationSummary, error) {
	const op = "service.operations.List"

	var (
		summary *OrderSummary
		out     []OperationSummary
	)
	err := s.store.View(ctx, func(tx storage.Tx) error {
		po, err := tx.GetProductionOrder(ctx, poID)
		if err != nil {
			return notFoundOr(err, op, "production order %d not found", poID)
		}
		ops, err := tx.ListOperations(ctx, poID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		summary = &OrderSummary{ProductionOrder: *po, CurrentOperationSequence: currentSequence(ops)}
		out = make([]OperationSummary, 0, len(ops))
		for i := range ops {
			item := OperationSummary{Operation: ops[i]}
			if qty, known := inputQuantity(*po, ops, i); known {
				item.QuantityInput = &qty
			}
			out = append(out, item)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return summary, out, nil
}

// Materials — материалы операции вместе с израсходованными.
func (s *OperationService) Materials(ctx context.Context, poID, opID int64) ([]storage.OperationMaterial, error) {
	const op = "service.operations.Materials"

	var materials []storage.OperationMaterial
	err := s.store.View(ctx, func(tx storage.Tx) error {
		if _, _, err := loadOperation(ctx, tx, poID, opID, op); err != nil {
			return err
		}
		var err error
		materials, err = tx.ListOperationMaterials(ctx, opID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return materials, nil
}

func (s *OperationService) Start(ctx context.Context, req StartRequest) (*TransitionResult, error) {
	const op = "service.operations.Start"

	var result *TransitionResult
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.LockProductionOrder(ctx, req.ProductionOrderID); err != nil {
			return notFoundOr(err, op, "production order %d not found", req.ProductionOrderID)
		}
		po, operation, err := loadOperation(ctx, tx, req.ProductionOrderID, req.OperationID, op)
		if err != nil {
			return err
		}

		switch {
		case operation.Status == storage.OpRunning:
			return &Error{
				Kind:           KindInvalidState,
				Message:        fmt.Sprintf("operation %d is already started", operation.ID),
				OperationID:    operation.ID,
				CurrentStatus:  string(operation.Status),
				RequiredStatus: "pending or queued",
			}
		case operation.Status.Terminal():
			return &Error{
				Kind:           KindInvalidState,
				Message:        fmt.Sprintf("operation %d is already %s", operation.ID, operation.Status),
				OperationID:    operation.ID,
				CurrentStatus:  string(operation.Status),
				RequiredStatus: "pending or queued",
			}
		}

		ops, err := tx.ListOperations(ctx, po.ID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if blocking := firstUnfinishedBefore(ops, operation.Sequence); blocking != nil {
			return &Error{
				Kind: KindSequenceViolation,
				Message: fmt.Sprintf("previous operation %d (sequence %d, %s) is not complete: status %s",
					blocking.ID, blocking.Sequence, blocking.OperationCode, blocking.Status),
				OperationID:         operation.ID,
				BlockingOperationID: blocking.ID,
				CurrentStatus:       string(blocking.Status),
				RequiredStatus:      "complete or skipped",
			}
		}

		if req.Resource != nil {
			if err := checkResourceFree(ctx, tx, *req.Resource, operation.ID, op); err != nil {
				return err
			}
			ref := *req.Resource
			operation.Resource = &ref
		}

		now := s.Now()
		operation.Status = storage.OpRunning
		operation.ActualStart = &now
		if req.OperatorName != "" {
			operation.OperatorName = req.OperatorName
		}
		operation.Notes = appendNote(operation.Notes, req.Notes)

		if err := tx.UpdateOperation(ctx, *operation); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		// первая запущенная операция переводит заказ в работу
		if po.Status == storage.OrderDraft || po.Status == storage.OrderReleased {
			po.Status = storage.OrderInProgress
			if err := tx.UpdateProductionOrder(ctx, *po); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}

		result, err = buildResult(ctx, tx, po.ID, operation.ID, op)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("operation started",
		slog.Int64("production_order_id", req.ProductionOrderID),
		slog.Int64("operation_id", req.OperationID),
		slog.String("operator", req.OperatorName),
	)

	return result, nil
}

func checkResourceFree(ctx context.Context, tx storage.Tx, ref storage.ResourceRef, opID int64, op string) error {
	res, err := getResource(ctx, tx, ref, op)
	if err != nil {
		return err
	}
	if err := tx.LockResource(ctx, ref); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !res.CanRun() {
		return &Error{
			Kind:          KindResourceConflict,
			Message:       fmt.Sprintf("resource %s is not available (status %s, active %t)", res.Code, res.Status, res.IsActive),
			OperationID:   opID,
			CurrentStatus: string(res.Status),
		}
	}

	running, err := tx.FindRunning(ctx, ref, opID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(running) > 0 {
		return &Error{
			Kind:                KindResourceConflict,
			Message:             fmt.Sprintf("resource %s is busy with operation %d", res.Code, running[0].ID),
			OperationID:         opID,
			BlockingOperationID: running[0].ID,
			Conflicts:           running,
		}
	}
	return nil
}

func (s *OperationService) Complete(ctx context.Context, req CompleteRequest) (*TransitionResult, error) {
	const op = "service.operations.Complete"

	if req.QuantityCompleted.IsNegative() || req.QuantityScrapped.IsNegative() {
		return nil, validation("quantities must not be negative")
	}
	if req.ActualRunMinutes != nil && req.ActualRunMinutes.IsNegative() {
		return nil, validation("actual_run_minutes must not be negative")
	}

	var (
		result   *TransitionResult
		finished bool
	)
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.LockProductionOrder(ctx, req.ProductionOrderID); err != nil {
			return notFoundOr(err, op, "production order %d not found", req.ProductionOrderID)
		}
		po, operation, err := loadOperation(ctx, tx, req.ProductionOrderID, req.OperationID, op)
		if err != nil {
			return err
		}
		if operation.Status != storage.OpRunning {
			return &Error{
				Kind:           KindInvalidState,
				Message:        fmt.Sprintf("operation %d is not running (status %s)", operation.ID, operation.Status),
				OperationID:    operation.ID,
				CurrentStatus:  string(operation.Status),
				RequiredStatus: string(storage.OpRunning),
			}
		}

		ops, err := tx.ListOperations(ctx, po.ID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		idx := indexOf(ops, operation.ID)

		maxQty, known := inputQuantity(*po, ops, idx)
		if !known {
			blocking := firstUnfinishedBefore(ops, operation.Sequence)
			e := &Error{
				Kind:        KindSequenceViolation,
				Message:     fmt.Sprintf("previous operation of %d is not complete", operation.ID),
				OperationID: operation.ID,
			}
			if blocking != nil {
				e.BlockingOperationID = blocking.ID
			}
			return e
		}

		total := req.QuantityCompleted.Add(req.QuantityScrapped)
		if total.GreaterThan(maxQty) {
			return &Error{
				Kind: KindQuantityViolation,
				Message: fmt.Sprintf("quantity %s (completed %s + scrapped %s) exceeds maximum %s",
					total, req.QuantityCompleted, req.QuantityScrapped, maxQty),
				OperationID: operation.ID,
				Maximum:     &maxQty,
				Requested:   &total,
			}
		}

		now := s.Now()
		operation.Status = storage.OpComplete
		operation.ActualEnd = &now
		operation.QuantityCompleted = decimal.NewNullDecimal(req.QuantityCompleted)
		operation.QuantityScrapped = decimal.NewNullDecimal(req.QuantityScrapped)
		operation.ScrapReason = req.ScrapReason
		operation.Notes = appendNote(operation.Notes, req.Notes)
		switch {
		case req.ActualRunMinutes != nil:
			operation.ActualRunMin = decimal.NewNullDecimal(*req.ActualRunMinutes)
		case operation.ActualStart != nil:
			elapsed := decimal.NewFromFloat(now.Sub(*operation.ActualStart).Minutes()).Round(2)
			operation.ActualRunMin = decimal.NewNullDecimal(elapsed)
		}

		if err := tx.UpdateOperation(ctx, *operation); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := s.consumeMaterials(ctx, tx, operation.ID); err != nil {
			return err
		}

		if isLast(ops, operation.ID) {
			po.Status = storage.OrderComplete
			po.QuantityCompleted = req.QuantityCompleted
			if err := tx.UpdateProductionOrder(ctx, *po); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			finished = true
		}

		result, err = buildResult(ctx, tx, po.ID, operation.ID, op)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("operation completed",
		slog.Int64("production_order_id", req.ProductionOrderID),
		slog.Int64("operation_id", req.OperationID),
		slog.String("quantity_completed", req.QuantityCompleted.String()),
		slog.String("quantity_scrapped", req.QuantityScrapped.String()),
		slog.Bool("order_complete", finished),
	)

	return result, nil
}

// consumeMaterials списывает материалы операции. Остатки перечитываются под
// блокировкой внутри транзакции завершения, а не берутся из проверки доступности.
func (s *OperationService) consumeMaterials(ctx context.Context, tx storage.Tx, opID int64) error {
	const op = "service.operations.consumeMaterials"

	materials, err := tx.ListOperationMaterials(ctx, opID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, m := range materials {
		if m.Status == storage.MaterialConsumed {
			continue
		}
		remaining := m.QuantityRequired.Sub(m.QuantityConsumed)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}

		deducted, err := tx.ConsumeInventory(ctx, m.ComponentID, remaining, m.QuantityAllocated)
		if err != nil {
			return fmt.Errorf("%s: material %d: %w", op, m.ID, err)
		}
		if deducted.LessThan(remaining) {
			s.log.Warn("inventory shortfall on consumption",
				slog.Int64("operation_id", opID),
				slog.Int64("component_id", m.ComponentID),
				slog.String("required", remaining.String()),
				slog.String("deducted", deducted.String()),
			)
		}

		m.QuantityConsumed = m.QuantityConsumed.Add(deducted)
		m.QuantityAllocated = decimal.Zero
		m.Status = storage.MaterialConsumed
		if err := tx.UpdateOperationMaterial(ctx, m); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (s *OperationService) Skip(ctx context.Context, poID, opID int64, reason string) (*TransitionResult, error) {
	const op = "service.operations.Skip"

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validation("skip reason is required")
	}

	var result *TransitionResult
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.LockProductionOrder(ctx, poID); err != nil {
			return notFoundOr(err, op, "production order %d not found", poID)
		}
		_, operation, err := loadOperation(ctx, tx, poID, opID, op)
		if err != nil {
			return err
		}
		if operation.Status != storage.OpPending && operation.Status != storage.OpQueued {
			return &Error{
				Kind:           KindInvalidState,
				Message:        fmt.Sprintf("operation %d cannot be skipped from status %s", operation.ID, operation.Status),
				OperationID:    operation.ID,
				CurrentStatus:  string(operation.Status),
				RequiredStatus: "pending or queued",
			}
		}

		operation.Status = storage.OpSkipped
		operation.Notes = appendNote(operation.Notes, reason)
		if err := tx.UpdateOperation(ctx, *operation); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		result, err = buildResult(ctx, tx, poID, operation.ID, op)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("operation skipped", slog.Int64("operation_id", opID), slog.String("reason", reason))
	return result, nil
}

func (s *OperationService) Cancel(ctx context.Context, poID, opID int64, reason string) (*TransitionResult, error) {
	const op = "service.operations.Cancel"

	var result *TransitionResult
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.LockProductionOrder(ctx, poID); err != nil {
			return notFoundOr(err, op, "production order %d not found", poID)
		}
		_, operation, err := loadOperation(ctx, tx, poID, opID, op)
		if err != nil {
			return err
		}
		if operation.Status.Terminal() {
			return &Error{
				Kind:           KindInvalidState,
				Message:        fmt.Sprintf("operation %d is already %s", operation.ID, operation.Status),
				OperationID:    operation.ID,
				CurrentStatus:  string(operation.Status),
				RequiredStatus: "pending, queued or running",
			}
		}

		operation.Status = storage.OpCancelled
		operation.Notes = appendNote(operation.Notes, strings.TrimSpace(reason))
		if err := tx.UpdateOperation(ctx, *operation); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		result, err = buildResult(ctx, tx, poID, operation.ID, op)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("operation cancelled", slog.Int64("operation_id", opID))
	return result, nil
}

func buildResult(ctx context.Context, tx storage.Tx, poID, opID int64, op string) (*TransitionResult, error) {
	po, err := tx.GetProductionOrder(ctx, poID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ops, err := tx.ListOperations(ctx, poID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	idx := indexOf(ops, opID)
	if idx < 0 {
		return nil, fmt.Errorf("%s: operation %d vanished from order %d", op, opID, poID)
	}

	return &TransitionResult{
		Order:     OrderSummary{ProductionOrder: *po, CurrentOperationSequence: currentSequence(ops)},
		Operation: ops[idx],
		Next:      nextOpen(ops, ops[idx].Sequence),
	}, nil
}

// firstUnfinishedBefore — операция с наименьшим sequence до seq, которая еще
// не завершена и не пропущена.
func firstUnfinishedBefore(ops []storage.Operation, seq int) *storage.Operation {
	for i := range ops {
		if ops[i].Sequence >= seq {
			break
		}
		if !ops[i].Status.Done() {
			return &ops[i]
		}
	}
	return nil
}

// inputQuantity — максимум годных на входе операции ops[idx]: количество заказа
// для первой, иначе годные ближайшей завершенной предыдущей. Пропущенные
// операции не ограничивают. known=false, если предыдущая еще в работе.
func inputQuantity(po storage.ProductionOrder, ops []storage.Operation, idx int) (decimal.Decimal, bool) {
	for i := idx - 1; i >= 0; i-- {
		switch ops[i].Status {
		case storage.OpComplete:
			if ops[i].QuantityCompleted.Valid {
				return ops[i].QuantityCompleted.Decimal, true
			}
			return decimal.Zero, true
		case storage.OpSkipped:
			continue
		default:
			return decimal.Zero, false
		}
	}
	return po.QuantityOrdered, true
}

func currentSequence(ops []storage.Operation) *int {
	for _, o := range ops {
		if !o.Status.Done() {
			seq := o.Sequence
			return &seq
		}
	}
	return nil
}

func nextOpen(ops []storage.Operation, after int) *storage.Operation {
	for i := range ops {
		if ops[i].Sequence > after && !ops[i].Status.Terminal() {
			next := ops[i]
			return &next
		}
	}
	return nil
}

func isLast(ops []storage.Operation, opID int64) bool {
	return len(ops) > 0 && ops[len(ops)-1].ID == opID
}

func indexOf(ops []storage.Operation, opID int64) int {
	for i := range ops {
		if ops[i].ID == opID {
			return i
		}
	}
	return -1
}

func appendNote(notes, add string) string {
	add = strings.TrimSpace(add)
	switch {
	case add == "":
		return notes
	case notes == "":
		return add
	default:
		return notes + "\n" + add
	}
}
