package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shopfloor/internal/storage"
)

// SchedulingService объединяет справочник ресурсов, поиск конфликтов и
// назначение операций на ресурс.
type SchedulingService struct {
	store storage.Store
	log   *slog.Logger
	Now   func() time.Time
}

func NewSchedulingService(store storage.Store, log *slog.Logger) *SchedulingService {
	return &SchedulingService{store: store, log: log, Now: time.Now}
}

func (s *SchedulingService) Resource(ctx context.Context, ref storage.ResourceRef) (*storage.Resource, error) {
	const op = "service.scheduler.Resource"

	var res *storage.Resource
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		res, err = getResource(ctx, tx, ref, op)
		return err
	})
	return res, err
}

func getResource(ctx context.Context, tx storage.Tx, ref storage.ResourceRef, op string) (*storage.Resource, error) {
	if !ref.Valid() {
		return nil, validation("invalid resource reference %s", ref)
	}
	res, err := tx.GetResource(ctx, ref)
	if err != nil {
		return nil, notFoundOr(err, op, "resource %s not found", ref)
	}
	return res, nil
}

// ResourceSchedule — брони ресурса по возрастанию начала. from/to задают окно:
// бронь попадает, если заканчивается после from и начинается до to.
func (s *SchedulingService) ResourceSchedule(ctx context.Context, ref storage.ResourceRef, from, to *time.Time) ([]storage.Operation, error) {
	const op = "service.scheduler.ResourceSchedule"

	var bookings []storage.Operation
	err := s.store.View(ctx, func(tx storage.Tx) error {
		if _, err := getResource(ctx, tx, ref, op); err != nil {
			return err
		}
		var err error
		bookings, err = tx.FindBookings(ctx, storage.BookingFilter{Resource: ref, EndsAfter: from, StartsBefore: to})
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	return bookings, err
}

func (s *SchedulingService) FindConflicts(ctx context.Context, ref storage.ResourceRef, iv Interval, excludeID int64) ([]storage.Operation, error) {
	const op = "service.scheduler.FindConflicts"

	if !iv.Valid() {
		return nil, validation("start must be before end")
	}

	var conflicts []storage.Operation
	err := s.store.View(ctx, func(tx storage.Tx) error {
		if _, err := getResource(ctx, tx, ref, op); err != nil {
			return err
		}
		var err error
		conflicts, err = findConflicts(ctx, tx, ref, iv, excludeID)
		return err
	})
	return conflicts, err
}

func (s *SchedulingService) FindRunning(ctx context.Context, ref storage.ResourceRef, excludeID int64) ([]storage.Operation, error) {
	const op = "service.scheduler.FindRunning"

	var running []storage.Operation
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		running, err = tx.FindRunning(ctx, ref, excludeID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	return running, err
}

// ScheduleOperation бронирует ресурс под операцию. При любом пересечении
// ничего не пишет и возвращает ResourceConflict со всем списком конфликтов.
func (s *SchedulingService) ScheduleOperation(ctx context.Context, poID, opID int64, ref storage.ResourceRef, iv Interval) (*storage.Operation, error) {
	const op = "service.scheduler.ScheduleOperation"

	if !iv.Valid() {
		return nil, validation("scheduled_start must be before scheduled_end")
	}

	var scheduled *storage.Operation
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.LockProductionOrder(ctx, poID); err != nil {
			return notFoundOr(err, op, "production order %d not found", poID)
		}
		_, operation, err := loadOperation(ctx, tx, poID, opID, op)
		if err != nil {
			return err
		}
		if _, err := getResource(ctx, tx, ref, op); err != nil {
			return err
		}
		if err := tx.LockResource(ctx, ref); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		conflicts, err := findConflicts(ctx, tx, ref, iv, operation.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &Error{
				Kind:        KindResourceConflict,
				Message:     fmt.Sprintf("scheduling conflict with %d existing operation(s)", len(conflicts)),
				OperationID: operation.ID,
				Conflicts:   conflicts,
			}
		}

		start, end := iv.Start, iv.End
		operation.Resource = &ref
		operation.ScheduledStart = &start
		operation.ScheduledEnd = &end
		// статус становится queued из любого предыдущего, повторное планирование разрешено
		operation.Status = storage.OpQueued

		if err := tx.UpdateOperation(ctx, *operation); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		scheduled = operation
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("operation scheduled",
		slog.Int64("operation_id", opID),
		slog.String("resource", ref.String()),
		slog.Time("start", iv.Start),
		slog.Time("end", iv.End),
	)

	return scheduled, nil
}

// NextAvailableSlot ищет первое окно длиной duration на ресурсе начиная с after
// (по умолчанию — сейчас): до первой брони, между бронями или после последней.
func (s *SchedulingService) NextAvailableSlot(ctx context.Context, ref storage.ResourceRef, duration time.Duration, after *time.Time) (time.Time, error) {
	const op = "service.scheduler.NextAvailableSlot"

	if duration <= 0 {
		return time.Time{}, validation("duration must be positive")
	}

	from := s.Now()
	if after != nil {
		from = *after
	}

	var bookings []storage.Operation
	err := s.store.View(ctx, func(tx storage.Tx) error {
		if _, err := getResource(ctx, tx, ref, op); err != nil {
			return err
		}
		var err error
		bookings, err = tx.FindBookings(ctx, storage.BookingFilter{Resource: ref, EndsAfter: &from})
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	return nextSlot(bookings, from, duration), nil
}

// nextSlot: bookings отсортированы по началу. cursor — самый поздний конец
// уже просмотренных броней, поэтому вложенные брони не дают ложных окон.
func nextSlot(bookings []storage.Operation, after time.Time, duration time.Duration) time.Time {
	cursor := after
	for _, b := range bookings {
		iv, ok := bookingInterval(b)
		if !ok {
			continue
		}
		if iv.Start.Sub(cursor) >= duration {
			return cursor
		}
		if iv.End.After(cursor) {
			cursor = iv.End
		}
	}
	return cursor
}
