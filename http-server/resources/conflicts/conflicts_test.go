package conflicts

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"shopfloor/internal/service"
	"shopfloor/internal/storage"
)

type MockConflictFinder struct {
	mock.Mock
}

func (m *MockConflictFinder) FindConflicts(ctx context.Context, ref storage.ResourceRef, iv service.Interval, excludeID int64) ([]storage.Operation, error) {
	args := m.Called(ctx, ref, iv, excludeID)
	res, _ := args.Get(0).([]storage.Operation)
	return res, args.Error(1)
}

func serve(finder ConflictFinder, target string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Get("/api/resources/{id}/conflicts", CheckConflicts(slog.Default(), finder))

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCheckConflicts(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	finder := new(MockConflictFinder)
	finder.On("FindConflicts", mock.Anything, storage.Printer(3), service.Interval{Start: start, End: end}, int64(11)).
		Return([]storage.Operation{{ID: 8}}, nil)

	rr := serve(finder, "/api/resources/3/conflicts?kind=printer&start=2026-03-02T10:00:00Z&end=2026-03-02T12:00:00Z&exclude_operation_id=11")

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp Response
	err := render.DecodeJSON(strings.NewReader(rr.Body.String()), &resp)
	assert.NoError(t, err)
	assert.True(t, resp.HasConflicts)
	assert.Len(t, resp.Conflicts, 1)
	finder.AssertExpectations(t)
}

func TestCheckConflicts_None(t *testing.T) {
	finder := new(MockConflictFinder)
	finder.On("FindConflicts", mock.Anything, storage.Machine(3), mock.Anything, int64(0)).
		Return([]storage.Operation{}, nil)

	rr := serve(finder, "/api/resources/3/conflicts?start=2026-03-02&end=2026-03-03")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"has_conflicts":false`)
}

func TestCheckConflicts_BadInput(t *testing.T) {
	finder := new(MockConflictFinder)

	for _, target := range []string{
		"/api/resources/x/conflicts?start=2026-03-02&end=2026-03-03",
		"/api/resources/3/conflicts?end=2026-03-03",
		"/api/resources/3/conflicts?start=2026-03-02&end=2026-03-03&exclude_operation_id=abc",
		"/api/resources/3/conflicts?kind=robot&start=2026-03-02&end=2026-03-03",
	} {
		rr := serve(finder, target)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
	finder.AssertNotCalled(t, "FindConflicts")
}

func TestCheckConflicts_InvalidInterval(t *testing.T) {
	finder := new(MockConflictFinder)
	finder.On("FindConflicts", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &service.Error{Kind: service.KindValidation, Message: "start must be before end"})

	rr := serve(finder, "/api/resources/3/conflicts?start=2026-03-03&end=2026-03-02")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "start must be before end")
}
