// Package webhook is the HTTP entry point: it verifies inbound signatures,
// runs the extraction pipeline, and feeds chat action callbacks to the
// review coordinator.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joescharf/triage/internal/chat"
	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/review"
)

// signatureHeader carries "sha256=<hex hmac>" over the raw request body.
const signatureHeader = "X-Signature-256"

// maxBodyBytes bounds inbound payload size (transcripts included).
const maxBodyBytes = 4 << 20

// Extractor produces action items from a transcript.
type Extractor interface {
	ActionItems(ctx context.Context, transcript, summary string) ([]models.ActionItem, error)
}

// Archiver persists a transcript. Failures are logged, never fatal to the
// pipeline.
type Archiver interface {
	SaveTranscript(call models.Call, transcript, summary string) (string, error)
}

// Config holds the webhook server's settings.
type Config struct {
	Secret    string // shared HMAC secret for inbound webhooks
	TeamID    string // tracker team receiving created issues
	ProjectID string // optional tracker project
}

// Server provides the webhook HTTP handlers.
type Server struct {
	cfg         Config
	coordinator *review.Coordinator
	extractor   Extractor
	archiver    Archiver // nil disables archival
	chat        chat.Messenger
	channel     string
	logger      *slog.Logger

	// actionTimeout bounds background action processing after the callback
	// has been acknowledged.
	actionTimeout time.Duration

	// syncActions processes action callbacks before returning. Tests only.
	syncActions bool
}

// NewServer creates the webhook server.
func NewServer(cfg Config, coordinator *review.Coordinator, extractor Extractor, archiver Archiver, messenger chat.Messenger, channel string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:           cfg,
		coordinator:   coordinator,
		extractor:     extractor,
		archiver:      archiver,
		chat:          messenger,
		channel:       channel,
		logger:        logger,
		actionTimeout: 25 * time.Second,
	}
}

// Router returns the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(s.verifySignature)
		r.Post("/webhooks/recording", s.handleRecording)
		r.Post("/webhooks/actions", s.handleAction)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// verifySignature authenticates the raw body against the shared secret and
// rebuffers it for downstream handlers.
func (s *Server) verifySignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}
		_ = r.Body.Close()

		sig := strings.TrimPrefix(r.Header.Get(signatureHeader), "sha256=")
		if !validSignature(s.cfg.Secret, body, sig) {
			s.logger.Warn("webhook signature rejected", "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		r.Body = io.NopCloser(strings.NewReader(string(body)))
		next.ServeHTTP(w, r)
	})
}

func validSignature(secret string, body []byte, gotHex string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := mac.Sum(nil)
	got, err := hex.DecodeString(gotHex)
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}

// Sign computes the signature header value for a body. Shared with tests
// and callers that need to produce valid webhooks.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func requestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			t1 := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(t1).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}
		return http.HandlerFunc(fn)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
