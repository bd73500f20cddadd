package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:5173"

// corsRouter mirrors the server wiring: GET-only routes on a mux router,
// CORS wrapping the router from outside.
func corsRouter() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/api/dm/users", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	return CORS(testOrigin)(router)
}

func TestCORSAnswersPreflightForGetOnlyRoute(t *testing.T) {
	handler := corsRouter()

	// A browser preflight for a request carrying Authorization: OPTIONS
	// matches no registered route, so the middleware must answer it before
	// routing happens.
	req := httptest.NewRequest(http.MethodOptions, "/api/dm/users", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodGet)
}

func TestCORSHeadersOnActualRequest(t *testing.T) {
	handler := corsRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/dm/users", nil)
	req.Header.Set("Origin", testOrigin)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
}
