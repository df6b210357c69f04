package operation

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"shopfloor/http-server/respond"
	"shopfloor/internal/service"
	"shopfloor/internal/storage"
)

type OperationScheduler interface {
	ScheduleOperation(ctx context.Context, poID, opID int64, ref storage.ResourceRef, iv service.Interval) (*storage.Operation, error)
}

type Request struct {
	ResourceID     int64  `json:"resource_id"`
	IsPrinter      bool   `json:"is_printer"`
	ResourceKind   string `json:"resource_kind"`
	ScheduledStart string `json:"scheduled_start"`
	ScheduledEnd   string `json:"scheduled_end"`
}

type Response struct {
	Success   bool               `json:"success"`
	Operation *storage.Operation `json:"operation"`
}

// ScheduleOperation бронирует ресурс. При пересечении — 409 со списком конфликтов.
func ScheduleOperation(log *slog.Logger, scheduler OperationScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.schedule.operation.ScheduleOperation"

		log := respond.Logger(log, r, op)

		poID, opID, err := respond.OrderOperationIDs(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "ошибка парсинга JSON", http.StatusBadRequest)
			return
		}
		if req.ResourceID <= 0 {
			http.Error(w, "resource_id is required", http.StatusBadRequest)
			return
		}

		ref := storage.RefFromRequest(req.ResourceID, req.IsPrinter)
		if req.ResourceKind != "" {
			kind, err := storage.ParseResourceKind(req.ResourceKind)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			ref.Kind = kind
		}

		start, err := respond.ParseTime(req.ScheduledStart)
		if err != nil {
			http.Error(w, "invalid scheduled_start", http.StatusBadRequest)
			return
		}
		end, err := respond.ParseTime(req.ScheduledEnd)
		if err != nil {
			http.Error(w, "invalid scheduled_end", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		scheduled, err := scheduler.ScheduleOperation(ctx, poID, opID, ref, service.Interval{Start: start, End: end})
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, Response{Success: true, Operation: scheduled})
	}
}
