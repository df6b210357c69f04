package canstart

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"shopfloor/http-server/respond"
	"shopfloor/internal/service"
)

type StartChecker interface {
	CanStart(ctx context.Context, poID, opID int64) (*service.CanStartReport, error)
}

func CanStart(log *slog.Logger, checker StartChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocking.canstart.CanStart"

		log := respond.Logger(log, r, op)

		poID, opID, err := respond.OrderOperationIDs(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		report, err := checker.CanStart(ctx, poID, opID)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, report)
	}
}
