package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/albizan/shortify-backend/internal/apperror"
	"github.com/albizan/shortify-backend/internal/auth"
)

// DeleteResponse acknowledges DELETE /user/delete-link/{id}.
type DeleteResponse struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// UserHandler serves the /user/* routes. Every route sits behind
// auth.RequireAuth, so the caller's id is always in the request context.
type UserHandler struct {
	auth   AuthService
	links  LinkService
	logger *slog.Logger
}

func NewUserHandler(authSvc AuthService, links LinkService, logger *slog.Logger) *UserHandler {
	return &UserHandler{auth: authSvc, links: links, logger: logger}
}

// userID returns the authenticated caller, writing a 401 if there is none.
func (h *UserHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return "", false
	}
	return id, true
}

// HandleMe returns the caller's profile: GET /user/me.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	user, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleStats returns link totals: GET /user/stats.
func (h *UserHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	stats, err := h.links.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleListLinks returns one page of links: GET /user/links?page=1&size=5.
func (h *UserHandler) HandleListLinks(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, err)
		return
	}
	size, err := queryInt(r, "size")
	if err != nil {
		writeError(w, err)
		return
	}

	links, err := h.links.List(r.Context(), userID, page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// HandleAddLink creates a link: POST /user/add-link.
func (h *UserHandler) HandleAddLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req addLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	link, err := h.links.Create(r.Context(), userID, req.Title, req.Original, *req.IsActive)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

// HandleDeleteLink removes a link: DELETE /user/delete-link/{id}.
func (h *UserHandler) HandleDeleteLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.links.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: true, ID: id})
}

// HandlePatchLink updates part of a link: PATCH /user/patch-link/{id}.
func (h *UserHandler) HandlePatchLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req patchLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	link, err := h.links.Patch(r.Context(), userID, id, req.patch())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}
