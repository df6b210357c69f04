package start

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"shopfloor/internal/service"
	"shopfloor/internal/storage"
)

type MockOperationStarter struct {
	mock.Mock
}

func (m *MockOperationStarter) Start(ctx context.Context, req service.StartRequest) (*service.TransitionResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*service.TransitionResult)
	return res, args.Error(1)
}

func serve(starter OperationStarter, body string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Post("/api/production-orders/{po_id}/operations/{op_id}/start", StartOperation(slog.Default(), starter))

	req := httptest.NewRequest(http.MethodPost, "/api/production-orders/1/operations/2/start", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// Тест: пустое тело — запуск без ресурса
func TestStartOperation_EmptyBody(t *testing.T) {
	starter := new(MockOperationStarter)
	starter.On("Start", mock.Anything, service.StartRequest{ProductionOrderID: 1, OperationID: 2}).
		Return(&service.TransitionResult{Operation: storage.Operation{ID: 2, Status: storage.OpRunning}}, nil)

	rr := serve(starter, "")

	assert.Equal(t, http.StatusOK, rr.Code)
	starter.AssertExpectations(t)
}

func TestStartOperation_WithPrinter(t *testing.T) {
	printer := storage.Printer(12)
	starter := new(MockOperationStarter)
	starter.On("Start", mock.Anything, service.StartRequest{
		ProductionOrderID: 1,
		OperationID:       2,
		Resource:          &printer,
		OperatorName:      "Петров",
	}).Return(&service.TransitionResult{}, nil)

	rr := serve(starter, `{"resource_id": 12, "is_printer": true, "operator_name": "Петров"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	starter.AssertExpectations(t)
}

// Тест: нарушение последовательности — 400 с блокирующей операцией
func TestStartOperation_SequenceViolation(t *testing.T) {
	starter := new(MockOperationStarter)
	starter.On("Start", mock.Anything, mock.Anything).Return(nil, &service.Error{
		Kind:                service.KindSequenceViolation,
		Message:             "previous operation 1 is not complete",
		BlockingOperationID: 1,
	})

	rr := serve(starter, `{}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `"blocking_operation_id":1`)
	assert.Contains(t, rr.Body.String(), `"kind":"sequence_violation"`)
}

func TestStartOperation_ResourceBusy(t *testing.T) {
	starter := new(MockOperationStarter)
	starter.On("Start", mock.Anything, mock.Anything).Return(nil, &service.Error{
		Kind:    service.KindResourceConflict,
		Message: "resource M-1 is busy with operation 5",
	})

	rr := serve(starter, `{"resource_id": 1}`)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestStartOperation_NotFound(t *testing.T) {
	starter := new(MockOperationStarter)
	starter.On("Start", mock.Anything, mock.Anything).Return(nil, &service.Error{
		Kind:    service.KindNotFound,
		Message: "operation 2 does not belong to production order 1",
	})

	rr := serve(starter, ``)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
