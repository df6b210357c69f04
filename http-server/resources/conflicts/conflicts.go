package conflicts

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	"shopfloor/http-server/respond"
	"shopfloor/internal/service"
	"shopfloor/internal/storage"
)

type ConflictFinder interface {
	FindConflicts(ctx context.Context, ref storage.ResourceRef, iv service.Interval, excludeID int64) ([]storage.Operation, error)
}

type Response struct {
	HasConflicts bool                `json:"has_conflicts"`
	Conflicts    []storage.Operation `json:"conflicts"`
}

func CheckConflicts(log *slog.Logger, finder ConflictFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resources.conflicts.CheckConflicts"

		log := respond.Logger(log, r, op)

		ref, err := respond.ResourceRef(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		q := r.URL.Query()
		start, err := respond.ParseTime(q.Get("start"))
		if err != nil {
			http.Error(w, "invalid start", http.StatusBadRequest)
			return
		}
		end, err := respond.ParseTime(q.Get("end"))
		if err != nil {
			http.Error(w, "invalid end", http.StatusBadRequest)
			return
		}

		var exclude int64
		if s := q.Get("exclude_operation_id"); s != "" {
			exclude, err = strconv.ParseInt(s, 10, 64)
			if err != nil {
				http.Error(w, "invalid exclude_operation_id", http.StatusBadRequest)
				return
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		found, err := finder.FindConflicts(ctx, ref, service.Interval{Start: start, End: end}, exclude)
		if err != nil {
			respond.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, Response{HasConflicts: len(found) > 0, Conflicts: found})
	}
}
