package materials

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"shopfloor/http-server/respond"
	"shopfloor/internal/storage"
)

type MaterialProvider interface {
	Materials(ctx context.Context, poID, opID int64) ([]storage.OperationMaterial, error)
}

type Response struct {
	OperationID int64                       `json:"operation_id"`
	Materials   []storage.OperationMaterial `json:"materials"`
}

func GetMaterials(log *slog.Logger, provider MaterialProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.operations.materials.GetMaterials"

		log := respond.Logger(log, r, op)

		poID, opID, err := respond.OrderOperationIDs(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		materials, err := provider.Materials(ctx, poID, opID)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, Response{OperationID: opID, Materials: materials})
	}
}
