package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/feirasmart/marketplace/internal/service/order"
)

// NewRouter собирает HTTP-роутер ядра заказов.
func NewRouter(svc *order.Service, logger *log.Entry) *chi.Mux {
	if logger == nil {
		logger = log.WithField("component", "http")
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(requestLogger(logger))
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(30 * time.Second))

	handler := &orderHandler{svc: svc, logger: logger}

	router.Route("/api/orders", func(r chi.Router) {
		r.Use(requireActor)
		r.Post("/", handler.create)
		r.Get("/", handler.list)
		r.Get("/{orderID}", handler.get)
		r.Patch("/{orderID}/status", handler.updateStatus)
	})

	return router
}

// NewServer оборачивает роутер в http.Server с консервативными таймаутами.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
