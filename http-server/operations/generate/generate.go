package generate

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"shopfloor/http-server/respond"
	"shopfloor/internal/service"
)

type OperationGenerator interface {
	Generate(ctx context.Context, poID int64, force bool) (*service.GenerateResult, error)
}

// GenerateOperations — POST .../operations/generate?force=true пересоздает
// операции заказа по техкарте.
func GenerateOperations(log *slog.Logger, gen OperationGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.operations.generate.GenerateOperations"

		log := respond.Logger(log, r, op)

		poID, err := respond.IDParam(r, "po_id")
		if err != nil {
			http.Error(w, "Invalid production order ID", http.StatusBadRequest)
			return
		}

		force, err := respond.OptionalBool(r.URL.Query().Get("force"))
		if err != nil {
			http.Error(w, "invalid force", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		res, err := gen.Generate(ctx, poID, force)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, res)
	}
}
