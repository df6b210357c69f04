package auth

import (
	"crypto/subtle"
	"net/http"
)

// BasicAuth закрывает админские маршруты (генерация операций). Пустой логин
// в конфиге закрывает их полностью.
func BasicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if username == "" {
				http.Error(w, "admin access is not configured", http.StatusForbidden)
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok || !equal(user, username) || !equal(pass, password) {
				requireAuth(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Shopfloor Admin"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
