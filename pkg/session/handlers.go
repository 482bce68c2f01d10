// pkg/session/handlers.go
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/joeydtaylor/steeze-federate/pkg/audit"
	"github.com/joeydtaylor/steeze-federate/pkg/catalog"
	"github.com/joeydtaylor/steeze-federate/pkg/codec"
	"github.com/joeydtaylor/steeze-federate/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-federate/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-federate/pkg/revocation"
	"github.com/joeydtaylor/steeze-federate/pkg/transport/httpx"
)

// Revoker is the slice of the revocation engine the handlers need.
type Revoker interface {
	RevokeAll(ctx context.Context, identity auth.Identity, bearer string) (time.Time, []revocation.StepResult, error)
}

// Handler exposes the session surface consumed by the presentation layer.
type Handler struct {
	svc     *Service
	revoker Revoker
	authmw  *auth.Middleware
	log     *zap.Logger
}

// NewHandler wires the HTTP surface.
func NewHandler(svc *Service, revoker Revoker, authmw *auth.Middleware, log *zap.Logger) *Handler {
	return &Handler{svc: svc, revoker: revoker, authmw: authmw, log: log}
}

// Register mounts the session routes.
func (h *Handler) Register(r httpx.Router) {
	r.Get("/session", http.HandlerFunc(h.getSession))
	r.Delete("/session", http.HandlerFunc(h.deleteSession))
	r.Post("/session/revoke", http.HandlerFunc(h.revokeSession))
}

type sessionResponse struct {
	FederationURL string `json:"federationUrl"`
	ExpiresAt     int64  `json:"expiresAt"`
}

type messageResponse struct {
	Message   string `json:"message"`
	RevokedAt string `json:"revokedAt,omitempty"`
}

// errorResponse keeps the raw error detail out of the user-safe message.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	product := r.URL.Query().Get("product")
	if product == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "product query parameter is required"})
		return
	}

	art, err := h.svc.GetOrMint(r.Context(), identity, catalog.ProductKey(product))
	if err != nil {
		h.log.Error("session issuance failed",
			zap.String("operation", "session.getOrMint"),
			zap.String("subject", identity.Subject),
			zap.String("product", product),
			zap.Error(err),
		)
		if errors.Is(err, catalog.ErrProductNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Message: "unknown product", Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "could not issue session", Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		FederationURL: art.FederationURL,
		ExpiresAt:     art.ExpiresAt,
	})
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	if _, err := h.svc.Terminate(r.Context(), identity); err != nil {
		h.log.Error("session termination failed",
			zap.String("operation", "session.terminate"),
			zap.String("subject", identity.Subject),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "could not terminate sessions", Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "sessions terminated"})
}

func (h *Handler) revokeSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	revokedAt, _, err := h.revoker.RevokeAll(r.Context(), identity, auth.BearerToken(r))
	if err != nil {
		metrics.Revocations.WithLabelValues("failed").Inc()
		h.log.Error("revocation failed",
			zap.String("operation", "session.revokeAll"),
			zap.String("subject", identity.Subject),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "could not revoke sessions", Error: err.Error()})
		return
	}

	metrics.Revocations.WithLabelValues("ok").Inc()
	if err := h.svc.emitter.Emit(r.Context(), audit.NewEvent(audit.EventSessionRevoked, identity, "")); err != nil {
		h.log.Warn("audit emit failed", zap.String("operation", "session.revokeAll"), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Message:   "sessions revoked",
		RevokedAt: revokedAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	if !h.authmw.IsAuthenticated(r.Context()) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "authentication required"})
		return auth.Identity{}, false
	}
	return h.authmw.GetIdentity(r.Context()), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", codec.JSONStrict.ContentType())
	w.WriteHeader(status)
	_ = codec.Write(w, codec.JSONStrict, v)
}
