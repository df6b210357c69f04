package cancel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"shopfloor/http-server/respond"
	"shopfloor/internal/service"
)

type OperationCanceller interface {
	Cancel(ctx context.Context, poID, opID int64, reason string) (*service.TransitionResult, error)
}

func CancelOperation(log *slog.Logger, canceller OperationCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.operations.cancel.CancelOperation"

		log := respond.Logger(log, r, op)

		poID, opID, err := respond.OrderOperationIDs(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "ошибка парсинга JSON", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := canceller.Cancel(ctx, poID, opID, req.Reason)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, res)
	}
}
