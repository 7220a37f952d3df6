package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"zeroauth/internal/session/models"
	id "zeroauth/pkg/domain"
	dErrors "zeroauth/pkg/domain-errors"
	"zeroauth/pkg/platform/httputil"
	"zeroauth/pkg/requestcontext"
)

// Service defines the session operations exposed over HTTP.
type Service interface {
	CreateSession(ctx context.Context, req *models.CreateSessionRequest, callbackBase string) (*models.CreateSessionResult, error)
	GetSession(ctx context.Context, sessionID id.SessionID) (*models.SessionResult, error)
	SubmitProof(ctx context.Context, sessionID id.SessionID, proof *models.ProofPayload) error
	RevokeSession(ctx context.Context, sessionID id.SessionID) error
}

// Handler serves the /api/v1/sessions endpoints.
type Handler struct {
	service       Service
	logger        *slog.Logger
	publicBaseURL string
}

// New creates a session Handler. When publicBaseURL is empty the callback
// base is derived from the request Host as https://<host>.
func New(service Service, logger *slog.Logger, publicBaseURL string) *Handler {
	return &Handler{
		service:       service,
		logger:        logger,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Register registers the session routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", h.HandleCreateSession)
		r.Get("/{id}", h.HandleGetSession)
		r.Post("/{id}/proof", h.HandleSubmitProof)
		r.Delete("/{id}", h.HandleRevokeSession)
	})
}

// HandleCreateSession opens a session and returns its QR payload.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateSessionRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.service.CreateSession(ctx, req, h.callbackBase(r))
	if err != nil {
		h.writeServiceError(ctx, w, "create session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleGetSession returns the full session record for polling.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionIDParam(w, r)
	if !ok {
		return
	}

	res, err := h.service.GetSession(ctx, sessionID)
	if err != nil {
		h.writeServiceError(ctx, w, "get session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleSubmitProof accepts a holder's proof for verification.
func (h *Handler) HandleSubmitProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionIDParam(w, r)
	if !ok {
		return
	}
	// Field validation runs in the service after the session lookup, so an
	// unknown session reports 404 whatever the body holds.
	req, ok := httputil.DecodeJSON[models.SubmitProofRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.SubmitProof(ctx, sessionID, &req.ProofPayload); err != nil {
		h.writeServiceError(ctx, w, "submit proof", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.SuccessResult{Success: true})
}

// HandleRevokeSession cancels a session.
func (h *Handler) HandleRevokeSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.RevokeSession(ctx, sessionID); err != nil {
		h.writeServiceError(ctx, w, "revoke session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.SuccessResult{Success: true})
}

// sessionIDParam parses the {id} path segment. Ids that are not UUIDs cannot
// name a session and are reported as not found.
func (h *Handler) sessionIDParam(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "session not found"))
		return id.SessionID{}, false
	}
	return sessionID, true
}

func (h *Handler) callbackBase(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	return "https://" + r.Host
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if !dErrors.IsClientError(err) {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
