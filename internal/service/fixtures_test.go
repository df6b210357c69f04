package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shopfloor/internal/storage"
	"shopfloor/internal/storage/memory"
)

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store

	ops   *OperationService
	sched *SchedulingService
	gen   *GenerationService
	avail *AvailabilityService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	log := discardLogger()
	clock := func() time.Time { return testNow }

	f := &fixture{
		store: store,
		ops:   NewOperationService(store, log),
		sched: NewSchedulingService(store, log),
		gen:   NewGenerationService(store, log, false),
		avail: NewAvailabilityService(store, DefaultStageMap(), log, 2),
	}
	f.ops.Now = clock
	f.sched.Now = clock
	return f
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func hm(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func (f *fixture) order(qty int64, status storage.OrderStatus) int64 {
	return f.store.PutOrder(storage.ProductionOrder{
		Code:            "PO-1",
		ProductID:       500,
		QuantityOrdered: decimal.NewFromInt(qty),
		Status:          status,
	})
}

func (f *fixture) orderWithBOM(qty int64, bomID int64) int64 {
	return f.store.PutOrder(storage.ProductionOrder{
		Code:            "PO-BOM",
		ProductID:       500,
		QuantityOrdered: decimal.NewFromInt(qty),
		Status:          storage.OrderReleased,
		BOMID:           &bomID,
	})
}

func (f *fixture) operation(poID int64, seq int, code string) int64 {
	return f.store.PutOperation(storage.Operation{
		ProductionOrderID: poID,
		Sequence:          seq,
		OperationCode:     code,
		WorkCenterID:      1,
		Status:            storage.OpPending,
	})
}

func (f *fixture) resource(ref storage.ResourceRef, status storage.ResourceStatus) storage.ResourceRef {
	f.store.PutResource(storage.Resource{
		Ref:          ref,
		WorkCenterID: 1,
		Code:         ref.String(),
		Name:         "Resource " + ref.String(),
		Status:       status,
		IsActive:     true,
	})
	return ref
}

func (f *fixture) component(sku, unit string) int64 {
	return f.store.PutComponent(storage.Component{SKU: sku, Name: sku, Unit: unit})
}

func (f *fixture) stock(componentID int64, onHand, allocated float64) {
	f.store.PutInventory(storage.InventoryRow{
		ProductID:  componentID,
		LocationID: 1,
		OnHand:     dec(onHand),
		Allocated:  dec(allocated),
	})
}
