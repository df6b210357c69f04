package skip

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"

	"shopfloor/http-server/respond"
	"shopfloor/internal/service"
)

type OperationSkipper interface {
	Skip(ctx context.Context, poID, opID int64, reason string) (*service.TransitionResult, error)
}

func SkipOperation(log *slog.Logger, skipper OperationSkipper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.operations.skip.SkipOperation"

		log := respond.Logger(log, r, op)

		poID, opID, err := respond.OrderOperationIDs(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "ошибка парсинга JSON", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Reason) == "" {
			http.Error(w, "reason is required", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := skipper.Skip(ctx, poID, opID, req.Reason)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, res)
	}
}
