package complete

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"shopfloor/http-server/respond"
	"shopfloor/internal/service"
)

type OperationCompleter interface {
	Complete(ctx context.Context, req service.CompleteRequest) (*service.TransitionResult, error)
}

type Request struct {
	QuantityCompleted *decimal.Decimal `json:"quantity_completed"`
	QuantityScrapped  *decimal.Decimal `json:"quantity_scrapped"`
	ActualRunMinutes  *decimal.Decimal `json:"actual_run_minutes"`
	ScrapReason       string           `json:"scrap_reason"`
	Notes             string           `json:"notes"`
}

func CompleteOperation(log *slog.Logger, completer OperationCompleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.operations.complete.CompleteOperation"

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
		if req.QuantityCompleted == nil {
			http.Error(w, "quantity_completed is required", http.StatusBadRequest)
			return
		}

		scrapped := decimal.Zero
		if req.QuantityScrapped != nil {
			scrapped = *req.QuantityScrapped
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := completer.Complete(ctx, service.CompleteRequest{
			ProductionOrderID: poID,
			OperationID:       opID,
			QuantityCompleted: *req.QuantityCompleted,
			QuantityScrapped:  scrapped,
			ActualRunMinutes:  req.ActualRunMinutes,
			ScrapReason:       req.ScrapReason,
			Notes:             req.Notes,
		})
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, res)
	}
}
