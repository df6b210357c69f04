package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"shopfloor/internal/storage"
)

// GenerationService строит операции заказа по активной технологической карте
// изделия и выпускает заказ в производство.
type GenerationService struct {
	store storage.Store
	log   *slog.Logger
	// StrictUnits запрещает генерацию, если единицу шаблона нельзя перевести
	// в единицу хранения компонента.
	StrictUnits bool
}

func NewGenerationService(store storage.Store, log *slog.Logger, strictUnits bool) *GenerationService {
	return &GenerationService{store: store, log: log, StrictUnits: strictUnits}
}

type GenerateResult struct {
	ProductionOrderID int64               `json:"production_order_id"`
	Status            storage.OrderStatus `json:"status"`
	OperationsCreated int                 `json:"operations_created"`
	MaterialsCreated  int                 `json:"materials_created"`
	Deleted           int                 `json:"operations_deleted"`
}

// Generate создает операции заказа. Если операции уже есть, без force
// возвращает InvalidState, с force удаляет их вместе с материалами.
func (s *GenerationService) Generate(ctx context.Context, poID int64, force bool) (*GenerateResult, error) {
	const op = "service.generation.Generate"

	var res *GenerateResult
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.LockProductionOrder(ctx, poID); err != nil {
			return notFoundOr(err, op, "production order %d not found", poID)
		}
		po, err := tx.GetProductionOrder(ctx, poID)
		if err != nil {
			return notFoundOr(err, op, "production order %d not found", poID)
		}

		existing, err := tx.ListOperations(ctx, poID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		res = &GenerateResult{ProductionOrderID: poID}
		if len(existing) > 0 {
			if !force {
				return &Error{
					Kind:          KindInvalidState,
					Message:       fmt.Sprintf("production order %d already has %d operations, use force to regenerate", poID, len(existing)),
					CurrentStatus: string(po.Status),
				}
			}
			res.Deleted, err = tx.DeleteOperations(ctx, poID)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}

		if err := s.generate(ctx, tx, po, res); err != nil {
			return err
		}

		if po.Status == storage.OrderDraft && res.OperationsCreated > 0 {
			po.Status = storage.OrderReleased
			if err := tx.UpdateProductionOrder(ctx, *po); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
		res.Status = po.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("operations generated",
		slog.Int64("production_order_id", poID),
		slog.Int("created", res.OperationsCreated),
		slog.Int("materials", res.MaterialsCreated),
		slog.Int("deleted", res.Deleted),
	)

	return res, nil
}

// Release переводит заказ из draft в released. Операции создаются только если
// их еще нет.
func (s *GenerationService) Release(ctx context.Context, poID int64) (*GenerateResult, error) {
	const op = "service.generation.Release"

	var res *GenerateResult
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.LockProductionOrder(ctx, poID); err != nil {
			return notFoundOr(err, op, "production order %d not found", poID)
		}
		po, err := tx.GetProductionOrder(ctx, poID)
		if err != nil {
			return notFoundOr(err, op, "production order %d not found", poID)
		}
		if po.Status != storage.OrderDraft {
			return &Error{
				Kind:           KindInvalidState,
				Message:        fmt.Sprintf("production order %d cannot be released from status %s", poID, po.Status),
				CurrentStatus:  string(po.Status),
				RequiredStatus: string(storage.OrderDraft),
			}
		}

		existing, err := tx.ListOperations(ctx, poID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		res = &GenerateResult{ProductionOrderID: poID}
		if len(existing) == 0 {
			if err := s.generate(ctx, tx, po, res); err != nil {
				return err
			}
		}

		po.Status = storage.OrderReleased
		if err := tx.UpdateProductionOrder(ctx, *po); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		res.Status = po.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("production order released",
		slog.Int64("production_order_id", poID),
		slog.Int("operations_created", res.OperationsCreated),
	)

	return res, nil
}

func (s *GenerationService) generate(ctx context.Context, tx storage.Tx, po *storage.ProductionOrder, res *GenerateResult) error {
	const op = "service.generation.generate"

	routing, err := tx.GetActiveRouting(ctx, po.ProductID)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("no active routing for product, nothing to generate",
			slog.Int64("production_order_id", po.ID),
			slog.Int64("product_id", po.ProductID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	steps, err := tx.ListRoutingOperations(ctx, routing.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, step := range steps {
		routingOpID := step.ID
		operation := storage.Operation{
			ProductionOrderID:  po.ID,
			RoutingOperationID: &routingOpID,
			Sequence:           step.Sequence,
			OperationCode:      step.OperationCode,
			OperationName:      step.OperationName,
			WorkCenterID:       step.WorkCenterID,
			Status:             storage.OpPending,
			PlannedSetupMin:    step.SetupTimeMinutes,
			PlannedRunMin:      step.RunTimeMinutes.Mul(po.QuantityOrdered),
		}
		opID, err := tx.CreateOperation(ctx, operation)
		if err != nil {
			return fmt.Errorf("%s: create operation seq %d: %w", op, step.Sequence, err)
		}
		res.OperationsCreated++

		n, err := s.copyMaterials(ctx, tx, po, step.ID, opID)
		if err != nil {
			return err
		}
		res.MaterialsCreated += n
	}

	return nil
}

func (s *GenerationService) copyMaterials(ctx context.Context, tx storage.Tx, po *storage.ProductionOrder, routingOpID, opID int64) (int, error) {
	const op = "service.generation.copyMaterials"

	templates, err := tx.ListRoutingOperationMaterials(ctx, routingOpID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	created := 0
	for _, t := range templates {
		if t.IsCostOnly || t.IsOptional {
			continue
		}

		qty, unit, err := s.nativeQuantity(ctx, tx, t, t.RequiredQuantity(po.QuantityOrdered))
		if err != nil {
			return created, err
		}

		templateID := t.ID
		if _, err := tx.CreateOperationMaterial(ctx, storage.OperationMaterial{
			OperationID:                opID,
			ComponentID:                t.ComponentID,
			RoutingOperationMaterialID: &templateID,
			QuantityRequired:           qty,
			QuantityAllocated:          decimal.Zero,
			QuantityConsumed:           decimal.Zero,
			Unit:                       unit,
			Status:                     storage.MaterialPending,
		}); err != nil {
			return created, fmt.Errorf("%s: %w", op, err)
		}
		created++
	}
	return created, nil
}

// nativeQuantity переводит потребность в единицу хранения компонента, чтобы
// ее можно было сравнивать с остатками.
func (s *GenerationService) nativeQuantity(ctx context.Context, tx storage.Tx, t storage.RoutingOperationMaterial, qty decimal.Decimal) (decimal.Decimal, string, error) {
	const op = "service.generation.nativeQuantity"

	component, err := tx.GetComponent(ctx, t.ComponentID)
	if errors.Is(err, storage.ErrNotFound) {
		return decimal.Zero, "", validation("component %d referenced by routing material %d not found", t.ComponentID, t.ID)
	}
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("%s: %w", op, err)
	}

	if t.Unit == "" || component.Unit == "" || SameUnit(t.Unit, component.Unit) {
		unit := component.Unit
		if unit == "" {
			unit = t.Unit
		}
		return qty, unit, nil
	}

	if converted, ok := ConvertUnit(qty, t.Unit, component.Unit); ok {
		return converted, component.Unit, nil
	}

	if s.StrictUnits {
		return decimal.Zero, "", validation("routing material %d unit %s is not convertible to component %s unit %s",
			t.ID, t.Unit, component.SKU, component.Unit)
	}
	s.log.Warn("material unit differs from component unit",
		slog.Int64("routing_operation_material_id", t.ID),
		slog.String("component", component.SKU),
		slog.String("template_unit", t.Unit),
		slog.String("component_unit", component.Unit),
	)
	return qty, t.Unit, nil
}

// ProductRouting — активная карта изделия и ее шаги по порядку.
func (s *GenerationService) ProductRouting(ctx context.Context, productID int64) (*storage.Routing, []storage.RoutingOperation, error) {
	const op = "service.generation.ProductRouting"

	var (
		routing *storage.Routing
		steps   []storage.RoutingOperation
	)
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		routing, err = tx.GetActiveRouting(ctx, productID)
		if err != nil {
			return notFoundOr(err, op, "no active routing for product %d", productID)
		}
		steps, err = tx.ListRoutingOperations(ctx, routing.ID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return routing, steps, nil
}
