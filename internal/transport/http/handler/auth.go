package handler

import (
	"encoding/json"
	"net/http"

	"github.com/carematch/carematch-api/internal/application/auth"
	"github.com/carematch/carematch-api/internal/domain"
	"github.com/carematch/carematch-api/internal/pkg/validate"
)

// AuthHandler exposes the three login flows plus registration and refresh.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthEnvelope{Token: result.Token, User: result.User})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.svc.LoginWithPassword(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Token: result.Token, User: result.User})
}

func (h *AuthHandler) SendPhoneCode(w http.ResponseWriter, r *http.Request) {
	var req domain.SendPhoneCodeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.SendPhoneCode(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification code sent"})
}

func (h *AuthHandler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyPhoneCodeRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.svc.VerifyPhoneAndLogin(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Token: result.Token, User: result.User})
}

func (h *AuthHandler) WeChatLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.WeChatLoginRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.svc.LoginWithWeChat(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Token: result.Token, User: result.User})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "token required")
		return
	}
	token, err := h.svc.Refresh(r.Context(), req.Token)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Token: token})
}

// decode parses and validates a JSON request body, writing the error response
// itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
