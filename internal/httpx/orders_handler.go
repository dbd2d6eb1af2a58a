package httpx

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/order-inventory/internal/catalog"
	"github.com/ariefcatur/order-inventory/internal/orders"
	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in orders.CreateOrderInput) (orders.PlacedOrder, error)
	DeleteOrder(ctx context.Context, orderID int64) (orders.DeletedOrder, error)
	ResetAllInventory(ctx context.Context) (int, error)
	AddInventory(ctx context.Context, productID int64, quantity int) (orders.InventoryRecord, error)
	GetOrder(ctx context.Context, orderID int64) (orders.OrderView, error)
	ListRecentOrders(ctx context.Context, limit int) ([]orders.OrderView, error)
	ListCustomerOrders(ctx context.Context, customerName string) ([]orders.OrderView, error)
	Stock(ctx context.Context, productID int64) (orders.InventoryRecord, error)
	ListInventory(ctx context.Context) ([]orders.InventoryRecord, error)
}

type CatalogService interface {
	List(ctx context.Context) ([]orders.ProductStock, error)
	Get(ctx context.Context, id int64) (orders.ProductStock, error)
	Create(ctx context.Context, in catalog.ProductInput) (orders.ProductStock, error)
	Update(ctx context.Context, id int64, in catalog.ProductInput) (orders.Product, error)
	Delete(ctx context.Context, id int64) error
}

type OrderCache interface {
	Get(ctx context.Context, orderID int64) (orders.OrderView, bool, error)
	Set(ctx context.Context, v orders.OrderView) error
	Delete(ctx context.Context, orderID int64) error
}

type StockSnapshots interface {
	Get(ctx context.Context, productID int64) (orders.StockLevel, bool, error)
	Forget(ctx context.Context, productID int64) error
}

type Limiter interface {
	Allow(ctx context.Context, subject string) (bool, error)
}

// OrdersHandler serves /api/orders. Cache, Snapshots and Limiter are optional.
type OrdersHandler struct {
	Orders     OrderService
	Catalog    CatalogService
	Cache      OrderCache
	Snapshots  StockSnapshots
	Limiter    Limiter
	AdminToken string
	Logger     *log.Logger
}

type createOrderReq struct {
	CustomerName string `json:"customerName"`
	ProductID    int64  `json:"productId"`
	Quantity     int    `json:"quantity"`
}

type addInventoryReq struct {
	Quantity int `json:"quantity"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	if h.Logger == nil {
		h.Logger = log.Default()
	}
	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{productID}/inventory", h.productInventory)
		r.Get("/products/{productID}/stock", h.productStock)
		r.With(h.rateLimit).Post("/create", h.createOrder)
		r.Get("/list", h.listOrders)
		r.Get("/customer/{customerName}", h.customerOrders)
		r.Get("/{orderID}", h.getOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/reset-inventory", h.resetInventory)
			r.Get("/products", h.listProducts)
			r.Post("/products", h.createProduct)
			r.Put("/products/{productID}", h.updateProduct)
			r.Delete("/products/{productID}", h.deleteProduct)
			r.Get("/inventory", h.listInventory)
			r.Post("/inventory/{productID}/add", h.addInventory)
			r.Delete("/orders/{orderID}", h.deleteOrder)
		})
	})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.List(ctx)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	respond(w, http.StatusOK, true, "", body{"products": ps})
}

func (h *OrdersHandler) productInventory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productID")
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Catalog.Get(ctx, id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	respond(w, http.StatusOK, true, "", body{"product": p})
}

func (h *OrdersHandler) productStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productID")
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Snapshots != nil {
		lvl, ok, err := h.Snapshots.Get(ctx, id)
		if err != nil {
			h.Logger.Printf("stock snapshot %d: %v", id, err)
		}
		if ok {
			respond(w, http.StatusOK, true, "", stockBody(lvl.ProductID, lvl.Stock, lvl.Version, "cache"))
			return
		}
	}

	rec, err := h.Orders.Stock(ctx, id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	respond(w, http.StatusOK, true, "", stockBody(rec.ProductID, rec.StockQuantity, rec.Version, "db"))
}

func stockBody(productID int64, stock int, version int64, source string) body {
	return body{
		"productId":    productID,
		"stock":        stock,
		"stockDisplay": orders.StockDisplay(stock),
		"version":      version,
		"source":       source,
	}
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, false, "invalid json", nil)
		return
	}

	placed, err := h.Orders.CreateOrder(r.Context(), orders.CreateOrderInput{
		CustomerName: req.CustomerName,
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	respond(w, http.StatusCreated, true, "order placed", body{"order": placed})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := orders.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, h.Logger, &orders.ValidationError{Field: "limit", Reason: "must be a number"})
			return
		}
		limit = n
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListRecentOrders(ctx, limit)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	respond(w, http.StatusOK, true, "", body{"orders": list})
}

func (h *OrdersHandler) customerOrders(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "customerName"))
	if err != nil {
		writeError(w, h.Logger, &orders.ValidationError{Field: "customerName", Reason: "malformed"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListCustomerOrders(ctx, name)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	respond(w, http.StatusOK, true, "", body{"orders": list})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) cache
	if h.Cache != nil {
		v, ok, err := h.Cache.Get(ctx, id)
		if err != nil {
			h.Logger.Printf("order cache get %d: %v", id, err)
		}
		if ok {
			respond(w, http.StatusOK, true, "", body{"order": v})
			return
		}
	}

	// 2) store
	v, err := h.Orders.GetOrder(ctx, id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Set(ctx, v); err != nil {
			h.Logger.Printf("order cache set %d: %v", id, err)
		}
	}
	respond(w, http.StatusOK, true, "", body{"order": v})
}

func (h *OrdersHandler) resetInventory(w http.ResponseWriter, r *http.Request) {
	n, err := h.Orders.ResetAllInventory(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	respond(w, http.StatusOK, true, "inventory reset to "+strconv.Itoa(orders.BaselineStock), body{"affectedRows": n})
}

func (h *OrdersHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond(w, http.StatusBadRequest, false, "invalid json", nil)
		return
	}
	p, err := h.Catalog.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	respond(w, http.StatusCreated, true, "product created", body{"product": p})
}

func (h *OrdersHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productID")
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	var in catalog.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond(w, http.StatusBadRequest, false, "invalid json", nil)
		return
	}
	p, err := h.Catalog.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	respond(w, http.StatusOK, true, "product updated", body{"product": p})
}

func (h *OrdersHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productID")
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if err := h.Catalog.Delete(r.Context(), id); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if h.Snapshots != nil {
		if err := h.Snapshots.Forget(r.Context(), id); err != nil {
			h.Logger.Printf("stock snapshot forget %d: %v", id, err)
		}
	}
	respond(w, http.StatusOK, true, "product deleted", nil)
}

func (h *OrdersHandler) listInventory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListInventory(ctx)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	respond(w, http.StatusOK, true, "", body{"inventory": list})
}

func (h *OrdersHandler) addInventory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productID")
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	var req addInventoryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, false, "invalid json", nil)
		return
	}
	rec, err := h.Orders.AddInventory(r.Context(), id, req.Quantity)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	respond(w, http.StatusOK, true, "inventory added", body{"inventory": rec})
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	deleted, err := h.Orders.DeleteOrder(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Delete(r.Context(), id); err != nil {
			h.Logger.Printf("order cache delete %d: %v", id, err)
		}
	}
	respond(w, http.StatusOK, true, "order deleted", body{"order": deleted})
}

func pathID(r *http.Request, param string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &orders.ValidationError{Field: param, Reason: "must be a positive id"}
	}
	return id, nil
}
