package dms

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/ws"
)

// RegisterDMRoutes registers all DM-related HTTP and WebSocket routes.
func RegisterDMRoutes(router *mux.Router, handler *DMHandler, gateway *ws.Gateway, requireAuth func(http.Handler) http.Handler) {
	api := router.PathPrefix("/api/dm").Subrouter()
	api.Use(requireAuth)

	api.HandleFunc("/users", logged(handler.ListUsers)).Methods(http.MethodGet)
	api.HandleFunc("/messages/{roomId}", logged(handler.GetMessages)).Methods(http.MethodGet)
	api.HandleFunc("/conversations", logged(handler.ListConversations)).Methods(http.MethodGet)

	// The websocket handshake authenticates itself (token in the query or
	// header), so it stays outside the auth middleware.
	router.HandleFunc("/ws/dm", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[DM] WebSocket %s", r.URL.Path)
		gateway.ServeWS(w, r)
	})

	router.HandleFunc("/api/health", handler.Health).Methods(http.MethodGet)
}

func logged(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[DM] %s %s", r.Method, r.URL.Path)
		next(w, r)
	}
}
