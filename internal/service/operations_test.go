package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor/internal/storage"
)

func startReq(po, op int64) StartRequest {
	return StartRequest{ProductionOrderID: po, OperationID: op}
}

func completeReq(po, op int64, good, scrap float64) CompleteRequest {
	return CompleteRequest{
		ProductionOrderID: po,
		OperationID:       op,
		QuantityCompleted: dec(good),
		QuantityScrapped:  dec(scrap),
	}
}

func TestStart_SequenceEnforcement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	po := f.order(10, storage.OrderReleased)
	first := f.operation(po, 10, "PRINT")
	second := f.operation(po, 20, "CUT")

	_, err := f.ops.Start(ctx, startReq(po, second))
	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindSequenceViolation, e.Kind)
	assert.Equal(t, first, e.BlockingOperationID)

	res, err := f.ops.Start(ctx, StartRequest{ProductionOrderID: po, OperationID: first, OperatorName: "Иванов", Notes: "смена 1"})
	require.NoError(t, err)
	assert.Equal(t, storage.OpRunning, res.Operation.Status)
	require.NotNil(t, res.Operation.ActualStart)
	assert.Equal(t, testNow, *res.Operation.ActualStart)
	assert.Equal(t, "Иванов", res.Operation.OperatorName)
	assert.Equal(t, storage.OrderInProgress, res.Order.Status)
	require.NotNil(t, res.Next)
	assert.Equal(t, second, res.Next.ID)

	_, err = f.ops.Start(ctx, startReq(po, first))
	assert.Equal(t, KindInvalidState, KindOf(err), "повторный старт")
}

func TestStart_SkippedPredecessorUnblocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	po := f.order(10, storage.OrderReleased)
	first := f.operation(po, 10, "PRINT")
	second := f.operation(po, 20, "CUT")

	_, err := f.ops.Skip(ctx, po, first, "нет печати")
	require.NoError(t, err)

	res, err := f.ops.Start(ctx, startReq(po, second))
	require.NoError(t, err)
	assert.Equal(t, storage.OpRunning, res.Operation.Status)
}

func TestStart_CancelledPredecessorBlocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	po := f.order(10, storage.OrderReleased)
	first := f.operation(po, 10, "PRINT")
	second := f.operation(po, 20, "CUT")

	_, err := f.ops.Cancel(ctx, po, first, "")
	require.NoError(t, err)

	_, err = f.ops.Start(ctx, startReq(po, second))
	assert.Equal(t, KindSequenceViolation, KindOf(err))
}

func TestStart_ResourceMutualExclusion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r := f.resource(storage.Machine(3), storage.ResourceAvailable)
	poA := f.order(10, storage.OrderReleased)
	poB := f.order(10, storage.OrderReleased)
	a := f.operation(poA, 10, "CUT")
	b := f.operation(poB, 10, "CUT")

	_, err := f.ops.Start(ctx, StartRequest{ProductionOrderID: poA, OperationID: a, Resource: &r})
	require.NoError(t, err)

	_, err = f.ops.Start(ctx, StartRequest{ProductionOrderID: poB, OperationID: b, Resource: &r})
	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindResourceConflict, e.Kind)
	assert.Equal(t, a, e.BlockingOperationID)

	// после завершения A ресурс свободен
	_, err = f.ops.Complete(ctx, completeReq(poA, a, 10, 0))
	require.NoError(t, err)

	_, err = f.ops.Start(ctx, StartRequest{ProductionOrderID: poB, OperationID: b, Resource: &r})
	require.NoError(t, err)
}

func TestStart_ResourceNotRunnable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r := f.resource(storage.Printer(4), storage.ResourceMaintenance)
	po := f.order(10, storage.OrderReleased)
	op := f.operation(po, 10, "PRINT")

	_, err := f.ops.Start(ctx, StartRequest{ProductionOrderID: po, OperationID: op, Resource: &r})
	assert.Equal(t, KindResourceConflict, KindOf(err))

	missing := storage.Printer(40)
	_, err = f.ops.Start(ctx, StartRequest{ProductionOrderID: po, OperationID: op, Resource: &missing})
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestStart_WrongOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	po := f.order(10, storage.OrderReleased)
	other := f.order(10, storage.OrderReleased)
	op := f.operation(po, 10, "PRINT")

	_, err := f.ops.Start(ctx, startReq(other, op))
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.ops.Start(ctx, startReq(po, 12345))
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestComplete_QuantityConservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	po := f.order(10, storage.OrderReleased)
	first := f.operation(po, 10, "PRINT")
	second := f.operation(po, 20, "CUT")

	_, err := f.ops.Start(ctx, startReq(po, first))
	require.NoError(t, err)

	_, err = f.ops.Complete(ctx, completeReq(po, first, 9, 2))
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindQuantityViolation, e.Kind, "11 больше количества заказа")
	assert.True(t, e.Maximum.Equal(dec(10)))
	assert.True(t, e.Requested.Equal(dec(11)))

	res, err := f.ops.Complete(ctx, completeReq(po, first, 8, 2))
	require.NoError(t, err)
	assert.Equal(t, storage.OpComplete, res.Operation.Status)
	assert.True(t, res.Operation.QuantityCompleted.Decimal.Equal(dec(8)))
	assert.Equal(t, storage.OrderInProgress, res.Order.Status)
	require.NotNil(t, res.Order.CurrentOperationSequence)
	assert.Equal(t, 20, *res.Order.CurrentOperationSequence)

	_, err = f.ops.Start(ctx, startReq(po, second))
	require.NoError(t, err)

	_, err = f.ops.Complete(ctx, completeReq(po, second, 9, 0))
	e, ok = AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindQuantityViolation, e.Kind)
	assert.True(t, e.Maximum.Equal(dec(8)), "вход ограничен годными предыдущей операции")

	res, err = f.ops.Complete(ctx, completeReq(po, second, 7, 1))
	require.NoError(t, err)
	assert.Equal(t, storage.OrderComplete, res.Order.Status)
	assert.True(t, res.Order.QuantityCompleted.Equal(dec(7)))
	assert.Nil(t, res.Order.CurrentOperationSequence)
	assert.Nil(t, res.Next)
}

func TestComplete_SkippedPredecessorPassesQuantity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	po := f.order(10, storage.OrderReleased)
	first := f.operation(po, 10, "PRINT")
	second := f.operation(po, 20, "CUT")
	third := f.operation(po, 30, "PACK")

	_, err := f.ops.Start(ctx, startReq(po, first))
	require.NoError(t, err)
	_, err = f.ops.Complete(ctx, completeReq(po, first, 6, 0))
	require.NoError(t, err)
	_, err = f.ops.Skip(ctx, po, second, "не требуется")
	require.NoError(t, err)
	_, err = f.ops.Start(ctx, startReq(po, third))
	require.NoError(t, err)

	_, err = f.ops.Complete(ctx, completeReq(po, third, 7, 0))
	assert.Equal(t, KindQuantityViolation, KindOf(err))

	_, err = f.ops.Complete(ctx, completeReq(po, third, 6, 0))
	require.NoError(t, err)
}

func TestComplete_InvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	po := f.order(10, storage.OrderReleased)
	op := f.operation(po, 10, "PRINT")

	_, err := f.ops.Complete(ctx, completeReq(po, op, -1, 0))
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.ops.Complete(ctx, completeReq(po, op, 1, 0))
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindInvalidState, e.Kind, "операция не запущена")
	assert.Equal(t, string(storage.OpPending), e.CurrentStatus)
}

func TestComplete_RunMinutes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	po := f.order(10, storage.OrderReleased)
	op := f.operation(po, 10, "PRINT")

	_, err := f.ops.Start(ctx, startReq(po, op))
	require.NoError(t, err)

	f.ops.Now = func() time.Time { return testNow.Add(95*time.Minute + 30*time.Second) }
	res, err := f.ops.Complete(ctx, completeReq(po, op, 10, 0))
	require.NoError(t, err)
	require.True(t, res.Operation.ActualRunMin.Valid)
	assert.Equal(t, "95.5", res.Operation.ActualRunMin.Decimal.String())
}

func TestComplete_ConsumesMaterials(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	po := f.order(10, storage.OrderReleased)
	op := f.operation(po, 10, "PRINT")
	ink := f.component("INK-01", "L")

	f.store.PutInventory(storage.InventoryRow{ProductID: ink, LocationID: 1, OnHand: dec(3), Allocated: dec(2)})
	f.store.PutInventory(storage.InventoryRow{ProductID: ink, LocationID: 2, OnHand: dec(10)})
	f.store.PutOperationMaterial(storage.OperationMaterial{
		OperationID:       op,
		ComponentID:       ink,
		QuantityRequired:  dec(5),
		QuantityAllocated: dec(2),
		Unit:              "L",
		Status:            storage.MaterialAllocated,
	})

	_, err := f.ops.Start(ctx, startReq(po, op))
	require.NoError(t, err)
	_, err = f.ops.Complete(ctx, completeReq(po, op, 10, 0))
	require.NoError(t, err)

	rows := f.store.Inventory(ink)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].OnHand.IsZero())
	assert.True(t, rows[0].Allocated.IsZero())
	assert.True(t, rows[1].OnHand.Equal(dec(8)))

	var materials []storage.OperationMaterial
	require.NoError(t, f.store.View(ctx, func(tx storage.Tx) error {
		var err error
		materials, err = tx.ListOperationMaterials(ctx, op)
		return err
	}))
	require.Len(t, materials, 1)
	assert.Equal(t, storage.MaterialConsumed, materials[0].Status)
	assert.True(t, materials[0].QuantityConsumed.Equal(dec(5)))
	assert.True(t, materials[0].QuantityAllocated.IsZero())
}

func TestComplete_ShortfallStillCompletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	po := f.order(1, storage.OrderReleased)
	op := f.operation(po, 10, "PRINT")
	ink := f.component("INK-02", "L")
	f.stock(ink, 1, 0)
	f.store.PutOperationMaterial(storage.OperationMaterial{
		OperationID: op, ComponentID: ink, QuantityRequired: dec(4), Unit: "L", Status: storage.MaterialPending,
	})

	_, err := f.ops.Start(ctx, startReq(po, op))
	require.NoError(t, err)
	_, err = f.ops.Complete(ctx, completeReq(po, op, 1, 0))
	require.NoError(t, err)

	rows := f.store.Inventory(ink)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].OnHand.IsZero(), "остаток не уходит в минус")
}

func TestSkipAndCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	po := f.order(10, storage.OrderReleased)
	first := f.operation(po, 10, "PRINT")
	second := f.operation(po, 20, "CUT")

	_, err := f.ops.Skip(ctx, po, first, "  ")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.ops.Start(ctx, startReq(po, first))
	require.NoError(t, err)

	_, err = f.ops.Skip(ctx, po, first, "поздно")
	assert.Equal(t, KindInvalidState, KindOf(err), "запущенную операцию пропустить нельзя")

	res, err := f.ops.Cancel(ctx, po, first, "брак станка")
	require.NoError(t, err)
	assert.Equal(t, storage.OpCancelled, res.Operation.Status)
	assert.Contains(t, res.Operation.Notes, "брак станка")

	_, err = f.ops.Cancel(ctx, po, first, "")
	assert.Equal(t, KindInvalidState, KindOf(err))

	res, err = f.ops.Skip(ctx, po, second, "делаем на стороне")
	require.NoError(t, err)
	assert.Equal(t, storage.OpSkipped, res.Operation.Status)
	assert.Equal(t, "делаем на стороне", res.Operation.Notes)
}

func TestList_QuantityInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	po := f.order(10, storage.OrderReleased)
	first := f.operation(po, 10, "PRINT")
	f.operation(po, 20, "CUT")

	summary, ops, err := f.ops.List(ctx, po)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	require.NotNil(t, summary.CurrentOperationSequence)
	assert.Equal(t, 10, *summary.CurrentOperationSequence)
	require.NotNil(t, ops[0].QuantityInput)
	assert.True(t, ops[0].QuantityInput.Equal(decimal.NewFromInt(10)))
	assert.Nil(t, ops[1].QuantityInput)

	_, err = f.ops.Start(ctx, startReq(po, first))
	require.NoError(t, err)
	_, err = f.ops.Complete(ctx, completeReq(po, first, 4, 1))
	require.NoError(t, err)

	_, ops, err = f.ops.List(ctx, po)
	require.NoError(t, err)
	require.NotNil(t, ops[1].QuantityInput)
	assert.True(t, ops[1].QuantityInput.Equal(dec(4)))

	_, _, err = f.ops.List(ctx, 404)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestScheduleOperation_AnyStatusBecomesQueued(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r := f.resource(storage.Machine(1), storage.ResourceAvailable)
	po := f.order(10, storage.OrderReleased)
	op := f.operation(po, 10, "CUT")

	_, err := f.ops.Start(ctx, startReq(po, op))
	require.NoError(t, err)

	scheduled, err := f.sched.ScheduleOperation(ctx, po, op, r, Interval{hm(10, 0), hm(11, 0)})
	require.NoError(t, err)
	assert.Equal(t, storage.OpQueued, scheduled.Status)
	require.NotNil(t, scheduled.Resource)
	assert.Equal(t, r, *scheduled.Resource)

	_, err = f.ops.Skip(ctx, po, op, "не нужна")
	require.NoError(t, err)

	scheduled, err = f.sched.ScheduleOperation(ctx, po, op, r, Interval{hm(12, 0), hm(13, 0)})
	require.NoError(t, err)
	assert.Equal(t, storage.OpQueued, scheduled.Status)
}

func TestMaterials(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	po := f.order(1, storage.OrderReleased)
	op := f.operation(po, 10, "PRINT")
	other := f.order(1, storage.OrderReleased)
	pla := f.component("PLA", "G")
	f.store.PutOperationMaterial(storage.OperationMaterial{
		OperationID: op, ComponentID: pla, QuantityRequired: dec(3), Unit: "G", Status: storage.MaterialConsumed,
	})

	materials, err := f.ops.Materials(ctx, po, op)
	require.NoError(t, err)
	require.Len(t, materials, 1)
	assert.Equal(t, storage.MaterialConsumed, materials[0].Status)

	_, err = f.ops.Materials(ctx, other, op)
	assert.Equal(t, KindNotFound, KindOf(err))
}
