package handler

import (
	"net/http"

	"github.com/carematch/carematch-api/internal/application/user"
	"github.com/carematch/carematch-api/internal/domain"
	"github.com/carematch/carematch-api/internal/transport/http/middleware"
)

// UserHandler serves the authenticated account surface.
type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{User: u})
}

func (h *UserHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.CompleteProfileRequest
	if !decode(w, r, &req) {
		return
	}
	updated, err := h.svc.CompleteProfile(r.Context(), u.UserID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{User: updated})
}

func (h *UserHandler) LinkPhone(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.LinkPhoneRequest
	if !decode(w, r, &req) {
		return
	}
	updated, err := h.svc.LinkPhone(r.Context(), u.UserID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{User: updated})
}
