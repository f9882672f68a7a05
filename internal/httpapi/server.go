// Package httpapi exposes the bot's pairing status over HTTP.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"maurine-bot/internal/observability"
)

// QRNotAvailable is the body of /qr before any pairing code exists.
const QRNotAvailable = "QR code not available yet."

// TokenSource returns the latest pairing token, if any.
type TokenSource interface {
	Token() (string, bool)
}

type qrResponse struct {
	QRCodeData string `json:"qrCodeData"`
}

type Server struct {
	tokens   TokenSource
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

func New(tokens TokenSource, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	return &Server{
		tokens:   tokens,
		gatherer: gatherer,
		logger:   logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(allowAllOrigins)

	r.Get("/qr", s.handleQR)
	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", observability.Handler(s.gatherer))
	}
	return r
}

func (s *Server) handleQR(w http.ResponseWriter, _ *http.Request) {
	token, ok := s.tokens.Token()
	if !ok {
		s.logger.Debug().Msg("qr requested before a pairing code was issued")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(QRNotAvailable))
		return
	}
	respondJSON(w, http.StatusOK, qrResponse{QRCodeData: token})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// allowAllOrigins permits cross-origin requests from any site and answers
// preflight requests directly.
func allowAllOrigins(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS")
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
