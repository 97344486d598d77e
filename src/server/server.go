package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"tradejournal/src/auth"
	"tradejournal/src/handler"
	"tradejournal/src/journal"
)

const RequestIDHeader = "X-Request-Id"

// Routes collects what the router serves. A nil Bot leaves the webhook
// unmounted, an empty APIToken leaves /api unmounted.
type Routes struct {
	Bot           handler.UpdateHandler
	WebhookPath   string
	WebhookSecret string
	Journal       *journal.Journal
	APIToken      string
}

func NewRouter(routes Routes) http.Handler {
	// Router with middleware
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(requestLogger)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	if routes.Bot != nil {
		path := routes.WebhookPath
		if path == "" {
			path = "/webhook"
		}
		r.Post(path, handler.WebhookHandler(routes.Bot, routes.WebhookSecret))
	}

	if routes.Journal != nil && routes.APIToken != "" {
		r.Route("/api", func(r chi.Router) {
			r.Use(auth.RequireToken(routes.APIToken))
			r.Get("/ledgers", handler.ListLedgersHandler(routes.Journal))
			r.Get("/ledgers/{symbol}", handler.GetLedgerHandler(routes.Journal))
		})
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)

		logger.WithFields(map[string]interface{}{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"elapsed":    time.Since(started).String(),
		}).Debug("HTTP request")
	})
}

// Run serves h on port until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, port string, h http.Handler, shutdownTimeout time.Duration) error {
	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Server crashed")
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
