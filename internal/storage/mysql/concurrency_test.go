package mysql

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor/internal/service"
	"shopfloor/internal/storage"
)

const parallelCalls = 8

func createTestOperation(t *testing.T, s *Storage, poID int64, seq int) int64 {
	t.Helper()

	var id int64
	err := s.InTx(context.Background(), func(tx storage.Tx) error {
		var err error
		id, err = tx.CreateOperation(context.Background(), storage.Operation{
			ProductionOrderID: poID,
			Sequence:          seq,
			OperationCode:     "PRINT",
			WorkCenterID:      1,
			Status:            storage.OpPending,
		})
		return err
	})
	require.NoError(t, err)
	return id
}

// runParallel стартует все вызовы одновременно и возвращает ошибки по порядку.
func runParallel(n int, call func(i int) error) []error {
	errs := make([]error, n)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = call(i)
		}()
	}
	close(start)
	wg.Wait()
	return errs
}

func countOutcomes(t *testing.T, errs []error, want service.Kind) int {
	t.Helper()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.Equal(t, want, service.KindOf(err), "unexpected error: %v", err)
	}
	return successes
}

func TestScheduleOperation_ConcurrentOverlapLocksResource(t *testing.T) {
	ctx := context.Background()
	s := NewWithDB(testDB)
	sched := service.NewSchedulingService(s, slog.New(slog.NewTextHandler(io.Discard, nil)))

	printer := storage.Printer(createTestMachine(t, "printers"))

	// разные заказы: блокировка заказа их не сериализует, только блокировка ресурса
	type target struct{ po, op int64 }
	targets := make([]target, parallelCalls)
	for i := range targets {
		po := createTestOrder(t, 1, nil)
		targets[i] = target{po: po, op: createTestOperation(t, s, po, 10)}
	}

	errs := runParallel(parallelCalls, func(i int) error {
		_, err := sched.ScheduleOperation(ctx, targets[i].po, targets[i].op, printer, service.Interval{Start: at(10, i), End: at(11, 0)})
		return err
	})

	assert.Equal(t, 1, countOutcomes(t, errs, service.KindResourceConflict))

	bookings, err := sched.ResourceSchedule(ctx, printer, nil, nil)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestStart_ConcurrentSameOperation(t *testing.T) {
	ctx := context.Background()
	s := NewWithDB(testDB)
	ops := service.NewOperationService(s, slog.New(slog.NewTextHandler(io.Discard, nil)))

	po := createTestOrder(t, 5, nil)
	op := createTestOperation(t, s, po, 10)

	errs := runParallel(parallelCalls, func(int) error {
		_, err := ops.Start(ctx, service.StartRequest{ProductionOrderID: po, OperationID: op})
		return err
	})

	assert.Equal(t, 1, countOutcomes(t, errs, service.KindInvalidState))
}
