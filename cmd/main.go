package main

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/api/dms"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/auth"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/config"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/directory"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/middleware"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/presence"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/rooms"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/storage"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/storage/memory"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/storage/valkeystore"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var store storage.Store
	switch cfg.Store {
	case "valkey":
		vs, err := valkeystore.NewDMStore(cfg.ValkeyAddr)
		if err != nil {
			log.Fatal(err)
		}
		defer vs.Close()
		store = vs
	default:
		log.Println("Using in-memory store")
		store = memory.NewDMStore()
	}

	verifier := &auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}
	hub := ws.NewHub(presence.NewRegistry())
	go hub.Run()

	gateway := &ws.Gateway{
		Hub:      hub,
		Store:    store,
		Verifier: verifier,
		Resolver: &rooms.Resolver{Store: store},
	}
	dmHandler := &dms.DMHandler{
		Store:     store,
		Directory: &directory.StoreDirectory{Store: store},
	}

	router := mux.NewRouter()
	dms.RegisterDMRoutes(router, dmHandler, gateway, middleware.RequireAuth(verifier))

	// CORS wraps the router rather than registering as mux middleware:
	// preflight OPTIONS requests match no GET route, so they must be
	// answered before routing.
	handler := middleware.CORS(cfg.ClientURL)(router)

	log.Printf("Server started at %s", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, handler))
}
