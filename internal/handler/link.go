package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/albizan/shortify-backend/internal/model"
)

// LinkService is the slice of service.LinkService the HTTP layer needs.
type LinkService interface {
	Resolve(ctx context.Context, id string) (string, error)
	Create(ctx context.Context, ownerID, title, original string, isActive bool) (*model.Link, error)
	Delete(ctx context.Context, ownerID, id string) error
	Patch(ctx context.Context, ownerID, id string, patch model.LinkPatch) (*model.Link, error)
	List(ctx context.Context, ownerID string, page, pageSize int) ([]model.Link, error)
	Stats(ctx context.Context, ownerID string) (*model.Stats, error)
}

// LinkHandler serves the public redirect.
type LinkHandler struct {
	links  LinkService
	logger *slog.Logger
}

func NewLinkHandler(links LinkService, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{links: links, logger: logger}
}

// HandleRedirect sends the visitor to the link target with a 301:
// GET /link/{id}. Disabled links answer 404 just like missing ones.
func (h *LinkHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	target, err := h.links.Resolve(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusMovedPermanently)
}
