package routing

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"shopfloor/http-server/respond"
	"shopfloor/internal/storage"
)

type RoutingProvider interface {
	ProductRouting(ctx context.Context, productID int64) (*storage.Routing, []storage.RoutingOperation, error)
}

type Response struct {
	Routing    *storage.Routing           `json:"routing"`
	Operations []storage.RoutingOperation `json:"operations"`
}

func GetProductRouting(log *slog.Logger, provider RoutingProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.products.routing.GetProductRouting"

		log := respond.Logger(log, r, op)

		productID, err := respond.IDParam(r, "id")
		if err != nil {
			http.Error(w, "Invalid product ID", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		routing, steps, err := provider.ProductRouting(ctx, productID)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, Response{Routing: routing, Operations: steps})
	}
}
