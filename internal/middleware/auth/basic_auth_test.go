package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasicAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		login      string
		user, pass string
		setAuth    bool
		want       int
	}{
		{"valid", "admin", "admin", "secret", true, http.StatusNoContent},
		{"wrong password", "admin", "admin", "nope", true, http.StatusUnauthorized},
		{"wrong user", "admin", "root", "secret", true, http.StatusUnauthorized},
		{"no header", "admin", "", "", false, http.StatusUnauthorized},
		{"not configured", "", "", "", true, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := BasicAuth(tt.login, "secret")(ok)

			req := httptest.NewRequest(http.MethodPost, "/api/admin/production-orders/1/operations/generate", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Basic")
			}
		})
	}
}
