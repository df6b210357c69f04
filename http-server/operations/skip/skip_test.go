package skip

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

type MockOperationSkipper struct {
	mock.Mock
}

func (m *MockOperationSkipper) Skip(ctx context.Context, poID, opID int64, reason string) (*service.TransitionResult, error) {
	args := m.Called(ctx, poID, opID, reason)
	res, _ := args.Get(0).(*service.TransitionResult)
	return res, args.Error(1)
}

func serve(skipper OperationSkipper, body string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Post("/api/production-orders/{po_id}/operations/{op_id}/skip", SkipOperation(slog.Default(), skipper))

	req := httptest.NewRequest(http.MethodPost, "/api/production-orders/1/operations/2/skip", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestSkipOperation_Success(t *testing.T) {
	skipper := new(MockOperationSkipper)
	skipper.On("Skip", mock.Anything, int64(1), int64(2), "нет заготовки").
		Return(&service.TransitionResult{Operation: storage.Operation{ID: 2, Status: storage.OpSkipped}}, nil)

	rr := serve(skipper, `{"reason": "нет заготовки"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"skipped"`)
	skipper.AssertExpectations(t)
}

// Тест: причина обязательна, сервис не вызывается
func TestSkipOperation_MissingReason(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty reason", `{"reason": ""}`},
		{"blank reason", `{"reason": "   "}`},
		{"no reason field", `{}`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skipper := new(MockOperationSkipper)

			rr := serve(skipper, tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			skipper.AssertNotCalled(t, "Skip")
		})
	}
}

func TestSkipOperation_InvalidState(t *testing.T) {
	skipper := new(MockOperationSkipper)
	skipper.On("Skip", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, &service.Error{
		Kind:          service.KindInvalidState,
		Message:       "operation 2 cannot be skipped from status running",
		CurrentStatus: "running",
	})

	rr := serve(skipper, `{"reason": "брак"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `"kind":"invalid_state"`)
}
