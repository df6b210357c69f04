package issues

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"shopfloor/http-server/respond"
	"shopfloor/internal/service"
)

type BlockingChecker interface {
	CheckBlocking(ctx context.Context, poID, opID int64) (*service.BlockingReport, error)
}

// BlockingIssues отдает полный разбор материалов операции: все строки
// потребности, блокирующие строки и уровень, из которого они взяты.
func BlockingIssues(log *slog.Logger, checker BlockingChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocking.issues.BlockingIssues"

		log := respond.Logger(log, r, op)

		poID, opID, err := respond.OrderOperationIDs(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		report, err := checker.CheckBlocking(ctx, poID, opID)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, report)
	}
}
