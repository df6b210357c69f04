package start

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
	"shopfloor/internal/storage"
)

type OperationStarter interface {
	Start(ctx context.Context, req service.StartRequest) (*service.TransitionResult, error)
}

type Request struct {
	ResourceID   *int64 `json:"resource_id"`
	IsPrinter    bool   `json:"is_printer"`
	ResourceKind string `json:"resource_kind"`
	OperatorName string `json:"operator_name"`
	Notes        string `json:"notes"`
}

func StartOperation(log *slog.Logger, starter OperationStarter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.operations.start.StartOperation"

		log := respond.Logger(log, r, op)

		poID, opID, err := respond.OrderOperationIDs(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// тело необязательно: запуск без ресурса и оператора допустим
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "ошибка парсинга JSON", http.StatusBadRequest)
			return
		}

		startReq := service.StartRequest{
			ProductionOrderID: poID,
			OperationID:       opID,
			OperatorName:      req.OperatorName,
			Notes:             req.Notes,
		}
		if req.ResourceID != nil {
			ref := storage.RefFromRequest(*req.ResourceID, req.IsPrinter)
			if req.ResourceKind != "" {
				kind, err := storage.ParseResourceKind(req.ResourceKind)
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				ref.Kind = kind
			}
			startReq.Resource = &ref
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := starter.Start(ctx, startReq)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, res)
	}
}
