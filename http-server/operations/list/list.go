package list

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"shopfloor/http-server/respond"
	"shopfloor/internal/service"
)

type OperationLister interface {
	List(ctx context.Context, poID int64) (*service.OrderSummary, []service.OperationSummary, error)
}

type Response struct {
	ProductionOrder *service.OrderSummary      `json:"production_order"`
	Operations      []service.OperationSummary `json:"operations"`
}

func ListOperations(log *slog.Logger, lister OperationLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.operations.list.ListOperations"

		log := respond.Logger(log, r, op)

		poID, err := respond.IDParam(r, "po_id")
		if err != nil {
			http.Error(w, "Invalid production order ID", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		order, ops, err := lister.List(ctx, poID)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, Response{ProductionOrder: order, Operations: ops})
	}
}
