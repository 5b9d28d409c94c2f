package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/arar-storefront/internal/catalog"
)

type PublicCatalog interface {
	ListPublished(ctx context.Context) ([]catalog.Product, error)
	GetPublishedBySlug(ctx context.Context, slug string) (catalog.Product, error)
}

type CatalogHandler struct {
	Products PublicCatalog
	Log      *zap.Logger
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/api/fragrances", h.list)
	r.Get("/api/fragrances/{slug}", h.get)
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.ListPublished(ctx)
	if err != nil {
		h.Log.Error("list fragrances", zap.Error(err))
		writeError(w, upstreamStatus(err), "Unable to load fragrances")
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.GetPublishedBySlug(ctx, chi.URLParam(r, "slug"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Fragrance not found")
		return
	}
	if err != nil {
		h.Log.Error("get fragrance", zap.Error(err))
		writeError(w, upstreamStatus(err), "Unable to load fragrance")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
