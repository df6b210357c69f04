package schedule_excel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"shopfloor/http-server/respond"
	"shopfloor/internal/storage"
)

type ScheduleExcelGenerator interface {
	GenerateScheduleExcel(ctx context.Context, ref storage.ResourceRef, from, to *time.Time) ([]byte, error)
}

func GenerateScheduleExcel(log *slog.Logger, gen ScheduleExcelGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.report.GenerateScheduleExcel"

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

		// на Excel можно побольше времени
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		excelBytes, err := gen.GenerateScheduleExcel(ctx, ref, from, to)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		fileName := fmt.Sprintf("Schedule_%s_%d_%s.xlsx", ref.Kind, ref.ID, time.Now().Format("2006-01-02_150405"))

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
		w.Write(excelBytes)
	}
}
