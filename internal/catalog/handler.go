package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rightupnext/billing/internal/platform/httpx"
	"github.com/rightupnext/billing/internal/shared"
)

// DeviceChecker reports whether a scanning device is registered for the tenant.
type DeviceChecker interface {
	DeviceAllowed(ctx context.Context, dbName, deviceID string) (bool, error)
}

// Handler wires HTTP endpoints for categories and products.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	devices   DeviceChecker
	validator *validator.Validate
}

// NewHandler constructs catalog handler. devices may be nil, then scans are not device checked.
func NewHandler(logger *slog.Logger, service *Service, devices DeviceChecker) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, devices: devices, validator: validator.New()}
}

// MountRoutes registers catalog routes on a tenant router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.handleListCategories)
		r.Post("/", h.handleCreateCategory)
		r.Put("/{id}", h.handleUpdateCategory)
		r.Delete("/{id}", h.handleDeleteCategory)
	})
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.handleListProducts)
		r.Post("/", h.handleCreateProduct)
		r.Post("/scan", h.handleScan)
		r.Get("/by-inventory/{id}", h.handleByInventory)
		r.Get("/{id}", h.handleGetProduct)
		r.Put("/{id}", h.handleUpdateProduct)
		r.Delete("/{id}", h.handleDeleteProduct)
		r.Post("/{id}/barcode", h.handleAssignBarcode)
	})
}

type categoryRequest struct {
	Name string          `json:"category_name" validate:"required,max=120"`
	CGST decimal.Decimal `json:"cgst"`
	SGST decimal.Decimal `json:"sgst"`
}

type productRequest struct {
	Name            string          `json:"product_name" validate:"max=200"`
	CategoryID      *int64          `json:"category_id" validate:"omitempty,gt=0"`
	InventoryItemID *int64          `json:"inventory_item_id" validate:"omitempty,gt=0"`
	Unit            string          `json:"unit"`
	Kilo            decimal.Decimal `json:"kilo"`
	Grams           decimal.Decimal `json:"grams"`
	MRP             decimal.Decimal `json:"mrp"`
	SaleMRP         decimal.Decimal `json:"saleMrp"`
	MfgDate         string          `json:"mfg_date"`
	ExpDate         string          `json:"exp_date"`
}

type productUpdateRequest struct {
	Name            *string          `json:"product_name" validate:"omitempty,max=200"`
	CategoryID      *int64           `json:"category_id" validate:"omitempty,gt=0"`
	InventoryItemID *int64           `json:"inventory_item_id" validate:"omitempty,gt=0"`
	Unit            *string          `json:"unit"`
	Kilo            *decimal.Decimal `json:"kilo"`
	Grams           *decimal.Decimal `json:"grams"`
	MRP             *decimal.Decimal `json:"mrp"`
	SaleMRP         *decimal.Decimal `json:"saleMrp"`
	MfgDate         *string          `json:"mfg_date"`
	ExpDate         *string          `json:"exp_date"`
}

type scanRequest struct {
	BarcodeID string `json:"barcode_id" validate:"required"`
	DeviceID  string `json:"device_id"`
}

// parseDate reads YYYY-MM-DD; empty and "N/A" mean no date.
func parseDate(field, v string) (*time.Time, error) {
	if v == "" || v == "N/A" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, shared.Validationf("%s must be YYYY-MM-DD", field)
	}
	return &t, nil
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	tenantDB, ok := h.tenant(w, r)
	if !ok {
		return
	}
	categories, err := h.service.ListCategories(r.Context(), tenantDB)
	if err != nil {
		h.fail(w, "list categories", err)
		return
	}
	httpx.JSON(w, http.StatusOK, categories)
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	tenantDB, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req categoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.service.CreateCategory(r.Context(), tenantDB, CategoryInput(req))
	if err != nil {
		h.fail(w, "create category", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req categoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.service.UpdateCategory(r.Context(), tenantDB, id, CategoryInput(req))
	if err != nil {
		h.fail(w, "update category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteCategory(r.Context(), tenantDB, id); err != nil {
		h.fail(w, "delete category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "category deleted"})
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	tenantDB, ok := h.tenant(w, r)
	if !ok {
		return
	}
	products, page, err := h.service.ListProducts(r.Context(), tenantDB, shared.ParsePageRequest(r.URL.Query()))
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products, "pagination": page})
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	tenantDB, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req productRequest
	if !h.decode(w, r, &req) {
		return
	}
	mfg, err := parseDate("mfg_date", req.MfgDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	exp, err := parseDate("exp_date", req.ExpDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.CreateProduct(r.Context(), tenantDB, ProductInput{
		Name:            req.Name,
		CategoryID:      req.CategoryID,
		InventoryItemID: req.InventoryItemID,
		Unit:            req.Unit,
		Kilo:            req.Kilo,
		Grams:           req.Grams,
		MRP:             req.MRP,
		SaleMRP:         req.SaleMRP,
		MfgDate:         mfg,
		ExpDate:         exp,
	})
	if err != nil {
		h.fail(w, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetProduct(r.Context(), tenantDB, id)
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleByInventory(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	p, err := h.service.ProductByInventory(r.Context(), tenantDB, id)
	if err != nil {
		h.fail(w, "product by inventory", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req productUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := ProductUpdate{
		Name:            req.Name,
		CategoryID:      req.CategoryID,
		InventoryItemID: req.InventoryItemID,
		Unit:            req.Unit,
		Kilo:            req.Kilo,
		Grams:           req.Grams,
		MRP:             req.MRP,
		SaleMRP:         req.SaleMRP,
	}
	var err error
	if req.MfgDate != nil {
		if in.MfgDate, err = parseDate("mfg_date", *req.MfgDate); err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.ClearMfgDate = in.MfgDate == nil
	}
	if req.ExpDate != nil {
		if in.ExpDate, err = parseDate("exp_date", *req.ExpDate); err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.ClearExpDate = in.ExpDate == nil
	}
	p, err := h.service.UpdateProduct(r.Context(), tenantDB, id, in)
	if err != nil {
		h.fail(w, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(r.Context(), tenantDB, id); err != nil {
		h.fail(w, "delete product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

func (h *Handler) handleAssignBarcode(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	assignment, err := h.service.AssignBarcode(r.Context(), tenantDB, id)
	if err != nil {
		h.fail(w, "assign barcode", err)
		return
	}
	httpx.JSON(w, http.StatusOK, assignment)
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	tenantDB, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req scanRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.DeviceID != "" && h.devices != nil {
		allowed, err := h.devices.DeviceAllowed(r.Context(), tenantDB, req.DeviceID)
		if err != nil {
			h.fail(w, "scan device check", err)
			return
		}
		if !allowed {
			httpx.Problem(w, http.StatusForbidden, "Device Not Allowed", "device "+req.DeviceID+" is not registered")
			return
		}
	}
	p, err := h.service.Scan(r.Context(), tenantDB, req.BarcodeID)
	if err != nil {
		h.fail(w, "scan barcode", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"device_id": req.DeviceID, "product": p})
}

func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantDB, err := httpx.TenantDB(r)
	if err != nil {
		httpx.RespondError(w, err)
		return "", false
	}
	return tenantDB, true
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	tenantDB, ok := h.tenant(w, r)
	if !ok {
		return "", 0, false
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return "", 0, false
	}
	return tenantDB, id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httpx.RespondError(w, shared.Validationf("%s", err.Error()))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.IsBusiness(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
