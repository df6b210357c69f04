package release

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"shopfloor/http-server/respond"
	"shopfloor/internal/service"
)

type OrderReleaser interface {
	Release(ctx context.Context, poID int64) (*service.GenerateResult, error)
}

func ReleaseOrder(log *slog.Logger, releaser OrderReleaser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.orders.release.ReleaseOrder"

		log := respond.Logger(log, r, op)

		poID, err := respond.IDParam(r, "po_id")
		if err != nil {
			http.Error(w, "Invalid production order ID", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		res, err := releaser.Release(ctx, poID)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, res)
	}
}
