package customers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/rightupnext/billing/internal/platform/httpx"
	"github.com/rightupnext/billing/internal/shared"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantDB, err := httpx.TenantDB(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	customers, pagination, err := h.service.List(r.Context(), tenantDB, ListCustomersRequest{
		Search: r.URL.Query().Get("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.fail(w, "list customers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customers": customers, "pagination": pagination})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantDB, err := httpx.TenantDB(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CreateCustomerRequest
	if !h.decode(w, r, &req) {
		return
	}
	customer, err := h.service.Create(r.Context(), tenantDB, req)
	if err != nil {
		h.fail(w, "create customer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	customer, err := h.service.Get(r.Context(), tenantDB, id)
	if err != nil {
		h.fail(w, "get customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req UpdateCustomerRequest
	if !h.decode(w, r, &req) {
		return
	}
	customer, err := h.service.Update(r.Context(), tenantDB, id, req)
	if err != nil {
		h.fail(w, "update customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), tenantDB, id); err != nil {
		h.fail(w, "delete customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "customer deleted"})
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
