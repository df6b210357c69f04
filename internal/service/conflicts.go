package service

import (
	"context"
	"fmt"
	"time"

	"shopfloor/internal/storage"
)

// Interval — полуоткрытый интервал [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps: s1 < e2 && s2 < e1. Касание концами конфликтом не считается.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i Interval) Minutes() float64 {
	return i.End.Sub(i.Start).Minutes()
}

func bookingInterval(op storage.Operation) (Interval, bool) {
	if !op.Booked() {
		return Interval{}, false
	}
	return Interval{Start: *op.ScheduledStart, End: *op.ScheduledEnd}, true
}

// findConflicts ищет нетерминальные брони ресурса, пересекающиеся с iv.
// Вызывается внутри той же транзакции, что и запись брони.
func findConflicts(ctx context.Context, tx storage.Tx, ref storage.ResourceRef, iv Interval, excludeID int64) ([]storage.Operation, error) {
	const op = "service.conflicts.findConflicts"

	bookings, err := tx.FindBookings(ctx, storage.BookingFilter{
		Resource:     ref,
		EndsAfter:    &iv.Start,
		StartsBefore: &iv.End,
		ExcludeID:    excludeID,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conflicts := make([]storage.Operation, 0, len(bookings))
	for _, b := range bookings {
		if b.Status.Terminal() || b.ID == excludeID {
			continue
		}
		biv, ok := bookingInterval(b)
		if !ok || !biv.Overlaps(iv) {
			continue
		}
		conflicts = append(conflicts, b)
	}

	return conflicts, nil
}
