package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/arar-storefront/internal/auth"
	"github.com/ariefcatur/arar-storefront/internal/catalog"
	"github.com/ariefcatur/arar-storefront/internal/orders"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, by string, n auth.NewAdmin) (auth.Admin, error)
	Me(ctx context.Context, email string) (auth.Admin, error)
	RequireAdmin(next http.Handler) http.Handler
}

type ProductAdmin interface {
	ListAll(ctx context.Context) ([]catalog.Product, error)
	GetByID(ctx context.Context, id string) (catalog.Product, error)
	Create(ctx context.Context, p catalog.Product) (catalog.Product, error)
	Update(ctx context.Context, id string, u catalog.ProductUpdate) (catalog.Product, error)
	UpdateStock(ctx context.Context, id string, qty int) error
	UpdateStatus(ctx context.Context, id string, s catalog.Status) error
	Delete(ctx context.Context, id string) error
}

type OrderAdmin interface {
	List(ctx context.Context, status orders.Status) ([]orders.Transaction, error)
	GetByID(ctx context.Context, id string) (orders.Transaction, error)
	SetFulfilment(ctx context.Context, id string, s orders.Status) (orders.Transaction, error)
}

type DiscrepancyLister interface {
	List(ctx context.Context) ([]orders.Discrepancy, error)
}

type AdminHandler struct {
	Auth          Authenticator
	Products      ProductAdmin
	Orders        OrderAdmin
	Discrepancies DiscrepancyLister
	Log           *zap.Logger
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type stockReq struct {
	StockQuantity *int `json:"stock_quantity"`
}

type statusReq struct {
	Status catalog.Status `json:"status"`
}

type orderStatusReq struct {
	Status orders.Status `json:"status"`
}

type meResp struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(h.Auth.RequireAdmin)

			r.Get("/me", h.me)
			r.Post("/register", h.register)

			r.Get("/products", h.listProducts)
			r.Post("/products", h.createProduct)
			r.Get("/products/{id}", h.getProduct)
			r.Put("/products/{id}", h.updateProduct)
			r.Delete("/products/{id}", h.deleteProduct)
			r.Patch("/products/{id}/stock", h.updateStock)
			r.Patch("/products/{id}/status", h.updateStatus)

			r.Get("/orders", h.listOrders)
			r.Get("/orders/{id}", h.getOrder)
			r.Patch("/orders/{id}/status", h.updateOrderStatus)

			r.Get("/discrepancies", h.listDiscrepancies)
		})
	})
}

func (h *AdminHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	token, err := h.Auth.Login(ctx, req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		h.Log.Error("admin login", zap.Error(err))
		writeError(w, upstreamStatus(err), "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, loginResp{AccessToken: token, TokenType: "bearer", ExpiresIn: int(auth.TokenTTL.Seconds())})
}

func (h *AdminHandler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	a, err := h.Auth.Me(ctx, claims.Email)
	if errors.Is(err, auth.ErrInvalidToken) {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	if err != nil {
		h.fail(w, "admin me", err)
		return
	}
	writeJSON(w, http.StatusOK, meResp{ID: a.ID, Email: a.Email, FullName: a.FullName, Role: a.Role})
}

func (h *AdminHandler) register(w http.ResponseWriter, r *http.Request) {
	var req auth.NewAdmin
	if !decodeJSON(w, r, &req) {
		return
	}
	var by string
	if claims, ok := auth.FromContext(r.Context()); ok {
		by = claims.Email
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	a, err := h.Auth.Register(ctx, by, req)
	if err != nil {
		h.fail(w, "register admin", err)
		return
	}
	writeJSON(w, http.StatusCreated, meResp{ID: a.ID, Email: a.Email, FullName: a.FullName, Role: a.Role})
}

func (h *AdminHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.ListAll(ctx)
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *AdminHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if !decodeJSON(w, r, &p) {
		return
	}
	if p.Slug == "" || p.Name == "" || p.PriceAmount <= 0 {
		writeError(w, http.StatusBadRequest, "slug, name and a positive price_amount are required")
		return
	}
	p.ID = ""
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	created, err := h.Products.Create(ctx, p)
	if err != nil {
		h.fail(w, "create product", err)
		return
	}
	h.Log.Info("product created", zap.String("product_id", created.ID), zap.String("slug", created.Slug))
	writeJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var u catalog.ProductUpdate
	if !decodeJSON(w, r, &u) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	p, err := h.Products.Update(ctx, id, u)
	if err != nil {
		h.fail(w, "update product", err)
		return
	}
	h.Log.Info("product updated", zap.String("product_id", id))
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.Products.Delete(ctx, id); err != nil {
		h.fail(w, "delete product", err)
		return
	}
	h.Log.Info("product deleted", zap.String("product_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) updateStock(w http.ResponseWriter, r *http.Request) {
	var req stockReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StockQuantity == nil {
		writeError(w, http.StatusBadRequest, "stock_quantity required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.Products.UpdateStock(ctx, id, *req.StockQuantity); err != nil {
		h.fail(w, "update stock", err)
		return
	}
	h.Log.Info("stock set", zap.String("product_id", id), zap.Int("stock_quantity", *req.StockQuantity))
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "stock_quantity": *req.StockQuantity})
}

func (h *AdminHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.Products.UpdateStatus(ctx, id, req.Status); err != nil {
		h.fail(w, "update status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": req.Status})
}

func (h *AdminHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	status := orders.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	txs, err := h.Orders.List(ctx, status)
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *AdminHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	tx, err := h.Orders.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// updateOrderStatus moves a paid order through fulfilment. The status may come
// as a query parameter or a JSON body.
func (h *AdminHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	req := orderStatusReq{Status: orders.Status(r.URL.Query().Get("status"))}
	if req.Status == "" && !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	tx, err := h.Orders.SetFulfilment(ctx, id, req.Status)
	if err != nil {
		h.fail(w, "update order status", err)
		return
	}
	h.Log.Info("order status set", zap.String("transaction_id", id), zap.String("status", string(tx.Status)))
	writeJSON(w, http.StatusOK, tx)
}

func (h *AdminHandler) listDiscrepancies(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ds, err := h.Discrepancies.List(ctx)
	if err != nil {
		h.fail(w, "list discrepancies", err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *AdminHandler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrSlugTaken), errors.Is(err, auth.ErrEmailTaken), errors.Is(err, orders.ErrNotFulfillable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, catalog.ErrInvalidStock), errors.Is(err, catalog.ErrInvalidStatus), errors.Is(err, catalog.ErrInvalidPrice),
		errors.Is(err, orders.ErrInvalidStatus), errors.Is(err, auth.ErrInvalidAdmin):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.Log.Error(op, zap.Error(err))
		writeError(w, upstreamStatus(err), "Internal server error")
	}
}
