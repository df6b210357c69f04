package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor/internal/storage"
)

func TestInTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	po := s.PutOrder(storage.ProductionOrder{Code: "PO-1", Status: storage.OrderDraft})

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.CreateOperation(ctx, storage.Operation{ProductionOrderID: po, Sequence: 10}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.View(ctx, func(tx storage.Tx) error {
		ops, err := tx.ListOperations(ctx, po)
		require.NoError(t, err)
		assert.Empty(t, ops)
		return nil
	})
	require.NoError(t, err)
}

func TestView_ReadOnly(t *testing.T) {
	ctx := context.Background()
	s := New()
	po := s.PutOrder(storage.ProductionOrder{Code: "PO-1", Status: storage.OrderDraft})

	err := s.View(ctx, func(tx storage.Tx) error {
		_, err := tx.CreateOperation(ctx, storage.Operation{ProductionOrderID: po, Sequence: 10})
		return err
	})
	assert.ErrorIs(t, err, errReadOnly)
}

func TestView_SnapshotUnaffectedByLaterWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	po := s.PutOrder(storage.ProductionOrder{Code: "PO-1", Status: storage.OrderDraft})

	err := s.View(ctx, func(tx storage.Tx) error {
		err := s.InTx(ctx, func(w storage.Tx) error {
			order, err := w.GetProductionOrder(ctx, po)
			if err != nil {
				return err
			}
			order.Status = storage.OrderReleased
			return w.UpdateProductionOrder(ctx, *order)
		})
		require.NoError(t, err)
		s.PutOperation(storage.Operation{ProductionOrderID: po, Sequence: 10})

		order, err := tx.GetProductionOrder(ctx, po)
		require.NoError(t, err)
		assert.Equal(t, storage.OrderDraft, order.Status)

		ops, err := tx.ListOperations(ctx, po)
		require.NoError(t, err)
		assert.Empty(t, ops)
		return nil
	})
	require.NoError(t, err)

	err = s.View(ctx, func(tx storage.Tx) error {
		order, err := tx.GetProductionOrder(ctx, po)
		require.NoError(t, err)
		assert.Equal(t, storage.OrderReleased, order.Status)

		ops, err := tx.ListOperations(ctx, po)
		require.NoError(t, err)
		assert.Len(t, ops, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestConcurrentViewsAndWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	po := s.PutOrder(storage.ProductionOrder{Code: "PO-1"})

	const writers = 10
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := s.InTx(ctx, func(tx storage.Tx) error {
				_, err := tx.CreateOperation(ctx, storage.Operation{ProductionOrderID: po, Sequence: (i + 1) * 10})
				return err
			})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			err := s.View(ctx, func(tx storage.Tx) error {
				_, err := tx.ListOperations(ctx, po)
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	err := s.View(ctx, func(tx storage.Tx) error {
		ops, err := tx.ListOperations(ctx, po)
		require.NoError(t, err)
		assert.Len(t, ops, writers)
		return nil
	})
	require.NoError(t, err)
}

func TestInTx_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := New().InTx(ctx, func(storage.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCreateOperation_DuplicateSequence(t *testing.T) {
	ctx := context.Background()
	s := New()
	po := s.PutOrder(storage.ProductionOrder{Code: "PO-1"})

	err := s.InTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.CreateOperation(ctx, storage.Operation{ProductionOrderID: po, Sequence: 10}); err != nil {
			return err
		}
		_, err := tx.CreateOperation(ctx, storage.Operation{ProductionOrderID: po, Sequence: 10})
		return err
	})
	assert.Error(t, err)
}

func TestFindBookings_Window(t *testing.T) {
	ctx := context.Background()
	s := New()
	ref := storage.Machine(1)
	s.PutResource(storage.Resource{Ref: ref, Status: storage.ResourceAvailable, IsActive: true})

	at := func(h int) *time.Time {
		v := time.Date(2026, 3, 2, h, 0, 0, 0, time.UTC)
		return &v
	}
	book := func(seq int, from, to int, status storage.OperationStatus) int64 {
		return s.PutOperation(storage.Operation{
			ProductionOrderID: 1, Sequence: seq, Status: status,
			Resource: &ref, ScheduledStart: at(from), ScheduledEnd: at(to),
		})
	}
	late := book(20, 14, 16, storage.OpQueued)
	early := book(10, 8, 10, storage.OpQueued)
	book(30, 11, 12, storage.OpCancelled)
	other := storage.Printer(1)
	s.PutOperation(storage.Operation{
		ProductionOrderID: 1, Sequence: 40, Status: storage.OpQueued,
		Resource: &other, ScheduledStart: at(9), ScheduledEnd: at(15),
	})

	err := s.View(ctx, func(tx storage.Tx) error {
		all, err := tx.FindBookings(ctx, storage.BookingFilter{Resource: ref})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, early, all[0].ID)
		assert.Equal(t, late, all[1].ID)

		window, err := tx.FindBookings(ctx, storage.BookingFilter{Resource: ref, EndsAfter: at(10), StartsBefore: at(15)})
		require.NoError(t, err)
		require.Len(t, window, 1, "бронь 8-10 касается окна концом")
		assert.Equal(t, late, window[0].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestConsumeInventory(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutInventory(storage.InventoryRow{ProductID: 5, LocationID: 2, OnHand: decimal.NewFromInt(4)})
	s.PutInventory(storage.InventoryRow{ProductID: 5, LocationID: 1, OnHand: decimal.NewFromInt(1), Allocated: decimal.NewFromInt(1)})

	var deducted decimal.Decimal
	err := s.InTx(ctx, func(tx storage.Tx) error {
		var err error
		deducted, err = tx.ConsumeInventory(ctx, 5, decimal.NewFromInt(10), decimal.NewFromInt(1))
		return err
	})
	require.NoError(t, err)
	assert.True(t, deducted.Equal(decimal.NewFromInt(5)), "списано не больше остатка")

	rows := s.Inventory(5)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.True(t, row.OnHand.IsZero())
		assert.True(t, row.Allocated.IsZero())
	}
}
