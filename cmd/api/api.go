package api

import (
	"log"
	"net/http"
	"os"

	"github.com/finman-app/finman-server/db"
	"github.com/finman-app/finman-server/service/analytics"
	"github.com/finman-app/finman-server/service/events"
	"github.com/finman-app/finman-server/service/transactions"
	"github.com/finman-app/finman-server/service/user"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type APIServer struct {
	address string
	db      *gorm.DB
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	userHandler := user.NewHandler(s.db)
	userHandler.RegisterRoutes(subrouter)

	transactionStore := db.NewTransactionStore(s.db)
	hub := events.NewHub()

	transactionHandler := transactions.NewTransactionHandler(transactionStore, hub)
	transactionHandler.RegisterRoutes(subrouter)

	analyticsHandler := analytics.NewAnalyticsHandler(transactionStore)
	analyticsHandler.RegisterRoutes(subrouter)

	eventsHandler := events.NewHandler(hub)
	eventsHandler.RegisterRoutes(subrouter)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, handlers.LoggingHandler(os.Stdout, cors(router)))
}
