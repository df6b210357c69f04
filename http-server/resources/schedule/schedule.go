package schedule

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"shopfloor/http-server/respond"
	"shopfloor/internal/storage"
)

type ScheduleProvider interface {
	Resource(ctx context.Context, ref storage.ResourceRef) (*storage.Resource, error)
	ResourceSchedule(ctx context.Context, ref storage.ResourceRef, from, to *time.Time) ([]storage.Operation, error)
}

type Response struct {
	Resource *storage.Resource   `json:"resource"`
	Bookings []storage.Operation `json:"bookings"`
}

// GetResourceSchedule — брони ресурса в окне start_date..end_date (оба необязательны).
func GetResourceSchedule(log *slog.Logger, provider ScheduleProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resources.schedule.GetResourceSchedule"

		log := respond.Logger(log, r, op)

		ref, err := respond.ResourceRef(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		from, err := respond.OptionalTime(r.URL.Query().Get("start_date"))
		if err != nil {
			http.Error(w, "invalid start_date", http.StatusBadRequest)
			return
		}
		to, err := respond.OptionalTime(r.URL.Query().Get("end_date"))
		if err != nil {
			http.Error(w, "invalid end_date", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := provider.Resource(ctx, ref)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		bookings, err := provider.ResourceSchedule(ctx, ref, from, to)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, Response{Resource: res, Bookings: bookings})
	}
}
