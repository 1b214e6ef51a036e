package library

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/carelib/carelib/internal/httputil"
)

// AdminHandler guards the operator endpoints with a single bcrypt-hashed
// password. There are no admin accounts; the clinic shares one credential.
type AdminHandler struct {
	passwordHash string
	library      *Handler
}

func NewAdminHandler(passwordHash string, library *Handler) *AdminHandler {
	return &AdminHandler{passwordHash: passwordHash, library: library}
}

func (h *AdminHandler) authorized(password string) bool {
	if h.passwordHash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(password)) == nil
}

type reloadRequest struct {
	Password string `json:"password"`
}

type reloadResponse struct {
	Categories int `json:"categories"`
	Items      int `json:"items"`
}

// Reload refetches and reparses the dataset. On failure the previous
// snapshot keeps serving and the parse error is returned to the operator.
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	var req reloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.authorized(req.Password) {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	if err := h.library.loader.Load(r.Context()); err != nil {
		httputil.WriteError(w, http.StatusBadGateway, "catalog reload failed: "+err.Error())
		return
	}
	cat, _ := h.library.loader.Current()
	httputil.WriteJSON(w, http.StatusOK, reloadResponse{
		Categories: len(cat.Categories),
		Items:      len(cat.Items),
	})
}

// Analytics reports the aggregated watch events. The password rides in a
// header so the endpoint stays a plain GET.
func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r.Header.Get("X-Admin-Password")) {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid password")
		return
	}
	if h.library.recorder == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "analytics is not configured")
		return
	}
	summary, err := h.library.recorder.Summarize(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to summarize watch events")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}
