package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"shopfloor/internal/storage"
)

type SourceName string

const (
	SourceRouting SourceName = "routing"
	SourceBOM     SourceName = "bom"
	SourceNone    SourceName = "none"
)

// MaterialSource — откуда берется потребность операции. Значение выбирает
// только resolveSource, уровни никогда не смешиваются.
type MaterialSource interface {
	Name() SourceName
}

// RoutingInstances — материалы, созданные для операции из техкарты.
type RoutingInstances struct {
	Materials []storage.OperationMaterial
}

// BOMFallback — строки спецификации заказа на стадиях операции.
type BOMFallback struct {
	Lines        []storage.BOMLine
	QtyToProduce decimal.Decimal
}

type NoMaterials struct{}

func (RoutingInstances) Name() SourceName { return SourceRouting }
func (BOMFallback) Name() SourceName      { return SourceBOM }
func (NoMaterials) Name() SourceName      { return SourceNone }

type MaterialIssue struct {
	ComponentID       int64                   `json:"component_id"`
	ComponentSKU      string                  `json:"component_sku"`
	ComponentName     string                  `json:"component_name"`
	QuantityRequired  decimal.Decimal         `json:"quantity_required"`
	QuantityAllocated decimal.Decimal         `json:"quantity_allocated"`
	QuantityNeeded    decimal.Decimal         `json:"quantity_needed"`
	QuantityAvailable decimal.Decimal         `json:"quantity_available"`
	QuantityShort     decimal.Decimal         `json:"quantity_short"`
	Unit              string                  `json:"unit"`
	ComponentUnit     string                  `json:"component_unit"`
	UnitMismatch      bool                    `json:"unit_mismatch"`
	ConsumeStage      storage.ConsumeStage    `json:"consume_stage,omitempty"`
	IsBlocking        bool                    `json:"is_blocking"`
	IncomingSupply    *storage.IncomingSupply `json:"incoming_supply"`
}

type BlockingReport struct {
	OperationID    int64           `json:"operation_id"`
	OperationCode  string          `json:"operation_code"`
	OperationName  string          `json:"operation_name"`
	CanStart       bool            `json:"can_start"`
	Source         SourceName      `json:"source"`
	BlockingIssues []MaterialIssue `json:"blocking_issues"`
	MaterialIssues []MaterialIssue `json:"material_issues"`
}

type CanStartReport struct {
	CanStart       bool            `json:"can_start"`
	BlockingIssues []MaterialIssue `json:"blocking_issues"`
}

// AvailabilityService проверяет, хватает ли материалов для запуска операции.
// Чтения идут вне транзакции: результат — подсказка, а не резерв.
type AvailabilityService struct {
	store       storage.Store
	stages      StageMap
	log         *slog.Logger
	concurrency int
}

func NewAvailabilityService(store storage.Store, stages StageMap, log *slog.Logger, concurrency int) *AvailabilityService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &AvailabilityService{store: store, stages: stages, log: log, concurrency: concurrency}
}

// requirement — одна строка потребности после выбора уровня.
type requirement struct {
	componentID int64
	required    decimal.Decimal
	allocated   decimal.Decimal
	unit        string
	stage       storage.ConsumeStage
}

type stockInfo struct {
	component *storage.Component
	available decimal.Decimal
	supply    *storage.IncomingSupply
}

func (s *AvailabilityService) CheckBlocking(ctx context.Context, poID, opID int64) (*BlockingReport, error) {
	const op = "service.availability.CheckBlocking"

	var (
		operation *storage.Operation
		source    MaterialSource
	)
	err := s.store.View(ctx, func(tx storage.Tx) error {
		po, o, err := loadOperation(ctx, tx, poID, opID, op)
		if err != nil {
			return err
		}
		operation = o
		source, err = s.resolveSource(ctx, tx, po, o)
		return err
	})
	if err != nil {
		return nil, err
	}

	report := &BlockingReport{
		OperationID:    operation.ID,
		OperationCode:  operation.OperationCode,
		OperationName:  operation.OperationName,
		CanStart:       true,
		Source:         source.Name(),
		BlockingIssues: []MaterialIssue{},
		MaterialIssues: []MaterialIssue{},
	}

	reqs := requirements(source)
	if len(reqs) == 0 {
		return report, nil
	}

	stock, err := s.lookupStock(ctx, reqs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i, r := range reqs {
		info := stock[i]
		if info.component == nil {
			s.log.Warn("component referenced by material not found",
				slog.Int64("operation_id", opID),
				slog.Int64("component_id", r.componentID),
			)
			continue
		}

		issue := evaluate(r, info)
		report.MaterialIssues = append(report.MaterialIssues, issue)
		if issue.IsBlocking {
			report.BlockingIssues = append(report.BlockingIssues, issue)
			report.CanStart = false
		}
	}

	return report, nil
}

func (s *AvailabilityService) CanStart(ctx context.Context, poID, opID int64) (*CanStartReport, error) {
	report, err := s.CheckBlocking(ctx, poID, opID)
	if err != nil {
		return nil, err
	}
	return &CanStartReport{CanStart: report.CanStart, BlockingIssues: report.BlockingIssues}, nil
}

// resolveSource: материалы техкарты, если есть хоть один неизрасходованный;
// иначе строки BOM по стадиям кода операции; иначе ничего.
func (s *AvailabilityService) resolveSource(ctx context.Context, tx storage.Tx, po *storage.ProductionOrder, operation *storage.Operation) (MaterialSource, error) {
	const op = "service.availability.resolveSource"

	materials, err := tx.ListOperationMaterials(ctx, operation.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	open := make([]storage.OperationMaterial, 0, len(materials))
	for _, m := range materials {
		if m.Status != storage.MaterialConsumed {
			open = append(open, m)
		}
	}
	if len(open) > 0 {
		return RoutingInstances{Materials: open}, nil
	}

	if po.BOMID == nil {
		return NoMaterials{}, nil
	}

	lines, err := tx.ListBOMLines(ctx, *po.BOMID, s.stages.Stages(operation.OperationCode))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(lines) == 0 {
		return NoMaterials{}, nil
	}

	return BOMFallback{
		Lines:        lines,
		QtyToProduce: po.QuantityOrdered.Sub(po.QuantityCompleted),
	}, nil
}

func requirements(source MaterialSource) []requirement {
	switch src := source.(type) {
	case RoutingInstances:
		out := make([]requirement, 0, len(src.Materials))
		for _, m := range src.Materials {
			out = append(out, requirement{
				componentID: m.ComponentID,
				required:    m.QuantityRequired,
				allocated:   m.QuantityAllocated,
				unit:        m.Unit,
			})
		}
		return out
	case BOMFallback:
		// заказ уже выполнен полностью, потребности нет
		if !src.QtyToProduce.IsPositive() {
			return nil
		}
		out := make([]requirement, 0, len(src.Lines))
		for _, l := range src.Lines {
			if l.IsCostOnly {
				continue
			}
			out = append(out, requirement{
				componentID: l.ComponentID,
				required:    l.Quantity.Mul(src.QtyToProduce).Mul(storage.ScrapMultiplier(l.ScrapFactor)),
				allocated:   decimal.Zero,
				unit:        l.Unit,
				stage:       l.ConsumeStage,
			})
		}
		return out
	}
	return nil
}

// lookupStock параллельно читает остатки, карточку компонента и ближайший
// приход по каждой строке потребности.
func (s *AvailabilityService) lookupStock(ctx context.Context, reqs []requirement) ([]stockInfo, error) {
	out := make([]stockInfo, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, r := range reqs {
		g.Go(func() error {
			return s.store.View(gctx, func(tx storage.Tx) error {
				component, err := tx.GetComponent(gctx, r.componentID)
				if errors.Is(err, storage.ErrNotFound) {
					return nil
				}
				if err != nil {
					return err
				}
				available, err := tx.AvailableQuantity(gctx, r.componentID)
				if err != nil {
					return err
				}
				supply, err := tx.OpenSupply(gctx, r.componentID)
				if err != nil {
					return err
				}

				info := stockInfo{component: component, available: available}
				if len(supply) > 0 {
					first := supply[0]
					info.supply = &first
				}
				out[i] = info
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func evaluate(r requirement, info stockInfo) MaterialIssue {
	required, allocated, unit := r.required, r.allocated, r.unit
	mismatch := false
	if nativeUnit := info.component.Unit; unit != "" && nativeUnit != "" && !SameUnit(unit, nativeUnit) {
		req, ok1 := ConvertUnit(required, unit, nativeUnit)
		alloc, ok2 := ConvertUnit(allocated, unit, nativeUnit)
		if ok1 && ok2 {
			required, allocated, unit = req, alloc, nativeUnit
		} else {
			mismatch = true
		}
	}

	needed := required.Sub(allocated)
	short := decimal.Max(decimal.Zero, needed.Sub(info.available))

	return MaterialIssue{
		ComponentID:       r.componentID,
		ComponentSKU:      info.component.SKU,
		ComponentName:     info.component.Name,
		QuantityRequired:  required,
		QuantityAllocated: allocated,
		QuantityNeeded:    needed,
		QuantityAvailable: info.available,
		QuantityShort:     short,
		Unit:              unit,
		ComponentUnit:     info.component.Unit,
		UnitMismatch:      mismatch,
		ConsumeStage:      r.stage,
		IsBlocking:        short.IsPositive(),
		IncomingSupply:    info.supply,
	}
}
