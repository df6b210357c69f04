// Package respond переводит ошибки сервисов в HTTP-ответы и разбирает общие
// параметры запросов.
package respond

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"shopfloor/internal/service"
	"shopfloor/internal/storage"
)

type ErrorBody struct {
	Error               string              `json:"error"`
	Kind                service.Kind        `json:"kind"`
	OperationID         int64               `json:"operation_id,omitempty"`
	BlockingOperationID int64               `json:"blocking_operation_id,omitempty"`
	CurrentStatus       string              `json:"current_status,omitempty"`
	RequiredStatus      string              `json:"required_status,omitempty"`
	Maximum             *decimal.Decimal    `json:"maximum,omitempty"`
	Requested           *decimal.Decimal    `json:"requested,omitempty"`
	Conflicts           []storage.Operation `json:"conflicts,omitempty"`
}

// StatusFor: NotFound → 404, ResourceConflict → 409, прочие бизнес-ошибки → 400.
func StatusFor(kind service.Kind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindResourceConflict:
		return http.StatusConflict
	case "":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Logger — дочерний логгер обработчика с op и request_id.
func Logger(log *slog.Logger, r *http.Request, op string) *slog.Logger {
	return log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Error пишет ответ по ошибке сервиса. Неожиданные сбои логируются и
// отдаются как 500 без подробностей.
func Error(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	e, ok := service.AsError(err)
	if !ok {
		log.Error("внутренняя ошибка", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Внутренняя ошибка сервера"})
		return
	}

	log.Info("request rejected", slog.String("kind", string(e.Kind)), slog.String("error", e.Message))

	render.Status(r, StatusFor(e.Kind))
	render.JSON(w, r, ErrorBody{
		Error:               e.Message,
		Kind:                e.Kind,
		OperationID:         e.OperationID,
		BlockingOperationID: e.BlockingOperationID,
		CurrentStatus:       e.CurrentStatus,
		RequiredStatus:      e.RequiredStatus,
		Maximum:             e.Maximum,
		Requested:           e.Requested,
		Conflicts:           e.Conflicts,
	})
}

// IDParam читает положительный целый параметр пути.
func IDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// OrderOperationIDs — пара {po_id}/{op_id} из пути.
func OrderOperationIDs(r *http.Request) (int64, int64, error) {
	poID, err := IDParam(r, "po_id")
	if err != nil {
		return 0, 0, err
	}
	opID, err := IDParam(r, "op_id")
	if err != nil {
		return 0, 0, err
	}
	return poID, opID, nil
}

// ResourceRef собирает ссылку на ресурс из {id} и query: kind=machine|printer
// или is_printer=true для старых клиентов.
func ResourceRef(r *http.Request) (storage.ResourceRef, error) {
	id, err := IDParam(r, "id")
	if err != nil {
		return storage.ResourceRef{}, err
	}

	q := r.URL.Query()
	if kind := q.Get("kind"); kind != "" {
		k, err := storage.ParseResourceKind(kind)
		if err != nil {
			return storage.ResourceRef{}, err
		}
		return storage.ResourceRef{Kind: k, ID: id}, nil
	}

	isPrinter, err := OptionalBool(q.Get("is_printer"))
	if err != nil {
		return storage.ResourceRef{}, errors.New("invalid is_printer")
	}
	return storage.RefFromRequest(id, isPrinter), nil
}

func OptionalBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// ParseTime принимает RFC3339, локальное время без зоны (как UTC) или дату.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

// OptionalTime: пустая строка — nil.
func OptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
