package api

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"chat-routing-backend/internal/database"
	"chat-routing-backend/internal/queue"
	"chat-routing-backend/internal/websocket"
)

// RouteRegistrar mounts a group of routes on the server's mux. Registrars
// run in the order they were passed to NewAPIServer.
type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	db                  *database.Database
	routeRegistrars     []RouteRegistrar
	handler             *websocket.Handler
	metrics             *metrics
}

func NewAPIServer(listenAddr string, rqm *queue.RequestQueueManager, db *database.Database, handler *websocket.Handler, registrars ...RouteRegistrar) *APIServer {
	return &APIServer{
		listenAddr:          listenAddr,
		requestQueueManager: rqm,
		db:                  db,
		handler:             handler,
		routeRegistrars:     registrars,
		metrics:             newMetrics(prometheus.DefaultRegisterer, listenAddr, rqm),
	}
}

// Run mounts every registered route plus /metrics and serves until the
// listener fails. Write timeout stays unset: websocket upgrades hold the
// connection open indefinitely.
func (s *APIServer) Run() {
	mux := http.NewServeMux()
	for _, register := range s.routeRegistrars {
		register(mux, s)
	}
	mux.Handle("/metrics", s.metrics.metricsHandler())

	srv := &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.metrics.instrument(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("server listening on %s", s.listenAddr)
	if err := srv.ListenAndServe(); err != nil {
		log.Printf("server stopped: %v", err)
	}
}

func (s *APIServer) Database() *database.Database {
	return s.db
}

func (s *APIServer) Handler() *websocket.Handler {
	return s.handler
}
