package nextslot

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	"shopfloor/http-server/respond"
	"shopfloor/internal/storage"
)

type SlotFinder interface {
	NextAvailableSlot(ctx context.Context, ref storage.ResourceRef, duration time.Duration, after *time.Time) (time.Time, error)
}

type Response struct {
	Resource      storage.ResourceRef `json:"resource"`
	NextAvailable time.Time           `json:"next_available"`
	SuggestedEnd  time.Time           `json:"suggested_end"`
}

// NextSlot — GET /api/resources/{id}/next-slot?duration_minutes=90&after=...
func NextSlot(log *slog.Logger, finder SlotFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.schedule.nextslot.NextSlot"

		log := respond.Logger(log, r, op)

		ref, err := respond.ResourceRef(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		minutes, err := strconv.ParseFloat(r.URL.Query().Get("duration_minutes"), 64)
		if err != nil || minutes <= 0 {
			http.Error(w, "duration_minutes must be a positive number", http.StatusBadRequest)
			return
		}
		duration := time.Duration(minutes * float64(time.Minute))

		after, err := respond.OptionalTime(r.URL.Query().Get("after"))
		if err != nil {
			http.Error(w, "invalid after", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		slot, err := finder.NextAvailableSlot(ctx, ref, duration, after)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, Response{Resource: ref, NextAvailable: slot, SuggestedEnd: slot.Add(duration)})
	}
}
