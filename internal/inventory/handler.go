package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rightupnext/billing/internal/platform/httpx"
	"github.com/rightupnext/billing/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes on a tenant router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleAdjust)
		r.Delete("/{id}", h.handleDelete)
		r.Get("/{id}/stock-card", h.handleStockCard)
	})
}

type createRequest struct {
	ItemName   string          `json:"item_name" validate:"required,max=200"`
	CategoryID *int64          `json:"category_id" validate:"omitempty,gt=0"`
	Unit       string          `json:"unit" validate:"required"`
	Kilo       decimal.Decimal `json:"kilo"`
	Grams      decimal.Decimal `json:"grams"`
}

type adjustRequest struct {
	ItemName   *string         `json:"item_name" validate:"omitempty,min=1,max=200"`
	CategoryID *int64          `json:"category_id" validate:"omitempty,gt=0"`
	Action     string          `json:"action" validate:"omitempty,oneof=add reduce"`
	Unit       string          `json:"unit"`
	Kilo       decimal.Decimal `json:"kilo"`
	Grams      decimal.Decimal `json:"grams"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	tenantDB, err := httpx.TenantDB(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.Create(r.Context(), tenantDB, CreateInput{
		Name:       req.ItemName,
		CategoryID: req.CategoryID,
		Unit:       req.Unit,
		Kilo:       req.Kilo,
		Grams:      req.Grams,
	})
	if err != nil {
		h.fail(w, "create inventory item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantDB, err := httpx.TenantDB(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, err := httpx.QueryDate(r, "start_date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	end, err := httpx.QueryDate(r, "end_date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	showAll := true
	if v := r.URL.Query().Get("show_all"); v == "false" || v == "0" {
		showAll = false
	}
	report, err := h.service.ListWithSales(r.Context(), tenantDB, SalesFilter{Start: start, End: end, ShowAll: showAll})
	if err != nil {
		h.fail(w, "list inventory", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	item, err := h.service.Get(r.Context(), tenantDB, id)
	if err != nil {
		h.fail(w, "get inventory item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req adjustRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Adjust(r.Context(), tenantDB, AdjustInput{
		InventoryID: id,
		ItemName:    req.ItemName,
		CategoryID:  req.CategoryID,
		Action:      Action(req.Action),
		Unit:        req.Unit,
		Kilo:        req.Kilo,
		Grams:       req.Grams,
	})
	if err != nil {
		h.fail(w, "adjust inventory", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.SoftDelete(r.Context(), tenantDB, id); err != nil {
		h.fail(w, "delete inventory item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "inventory item deleted"})
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.StockCard(r.Context(), tenantDB, id, limit)
	if err != nil {
		h.fail(w, "stock card", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	tenantDB, err := httpx.TenantDB(r)
	if err != nil {
		httpx.RespondError(w, err)
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
