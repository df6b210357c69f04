package get

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"shopfloor/http-server/respond"
	"shopfloor/internal/storage"
)

type ResourceProvider interface {
	Resource(ctx context.Context, ref storage.ResourceRef) (*storage.Resource, error)
	FindRunning(ctx context.Context, ref storage.ResourceRef, excludeID int64) ([]storage.Operation, error)
}

type Response struct {
	Resource *storage.Resource `json:"resource"`
	CanRun   bool              `json:"can_run"`
	// Running — операции, которые сейчас идут на ресурсе (обычно не больше одной).
	Running []storage.Operation `json:"running"`
}

func GetResource(log *slog.Logger, provider ResourceProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resources.get.GetResource"

		log := respond.Logger(log, r, op)

		ref, err := respond.ResourceRef(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := provider.Resource(ctx, ref)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		running, err := provider.FindRunning(ctx, ref, 0)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, Response{Resource: res, CanRun: res.CanRun() && len(running) == 0, Running: running})
	}
}
