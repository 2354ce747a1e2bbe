package invoices

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rightupnext/billing/internal/platform/httpx"
	"github.com/rightupnext/billing/internal/shared"
)

// Handler wires HTTP endpoints for invoices.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	payLimit  int
}

// NewHandler constructs invoice handler. paymentsPerMinute caps payment posts per client IP;
// zero disables the limit.
func NewHandler(logger *slog.Logger, service *Service, paymentsPerMinute int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), payLimit: paymentsPerMinute}
}

// MountRoutes registers invoice routes on a tenant router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/next-number", h.handleNextNumber)
		r.Get("/analytics", h.handleAnalytics)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
		r.Group(func(r chi.Router) {
			if h.payLimit > 0 {
				r.Use(httprate.LimitByIP(h.payLimit, time.Minute))
			}
			r.Post("/{id}/payments", h.handleAddPayment)
		})
	})
}

type invoiceRequest struct {
	InvoiceNo string     `json:"invoice_no" validate:"max=64"`
	Customer  Customer   `json:"customer"`
	Items     []LineItem `json:"items" validate:"required,min=1"`
	Charges   Charges    `json:"charges"`
	Totals    *Totals    `json:"computedtotals"`
}

type paymentRequest struct {
	PayAmount decimal.Decimal `json:"payAmount"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	tenantDB, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req invoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.service.Create(r.Context(), tenantDB, CreateInput{
		InvoiceNo: req.InvoiceNo,
		Customer:  req.Customer,
		Items:     req.Items,
		Charges:   req.Charges,
		Totals:    req.Totals,
	})
	if err != nil {
		h.fail(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": "invoice created",
		"id":      inv.ID,
		"invoice": inv,
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req invoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	summary, err := h.service.Update(r.Context(), tenantDB, id, UpdateInput{
		InvoiceNo: req.InvoiceNo,
		Customer:  req.Customer,
		Items:     req.Items,
		Charges:   req.Charges,
		Totals:    req.Totals,
	})
	if err != nil {
		h.fail(w, "update invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleAddPayment(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	summary, err := h.service.AddPayment(r.Context(), tenantDB, id, req.PayAmount)
	if err != nil {
		h.fail(w, "add payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), tenantDB, id)
	if err != nil {
		h.fail(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantDB, ok := h.tenant(w, r)
	if !ok {
		return
	}
	invoices, page, err := h.service.List(r.Context(), tenantDB, shared.ParsePageRequest(r.URL.Query()))
	if err != nil {
		h.fail(w, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices, "pagination": page})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	tenantDB, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), tenantDB, id); err != nil {
		h.fail(w, "delete invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "invoice deleted"})
}

func (h *Handler) handleNextNumber(w http.ResponseWriter, r *http.Request) {
	tenantDB, ok := h.tenant(w, r)
	if !ok {
		return
	}
	no, err := h.service.NextInvoiceNumber(r.Context(), tenantDB)
	if err != nil {
		h.fail(w, "next invoice number", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"invoiceNo": no})
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	tenantDB, ok := h.tenant(w, r)
	if !ok {
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
	out, err := h.service.Analytics(r.Context(), tenantDB, AnalyticsFilter{Start: start, End: end})
	if err != nil {
		h.fail(w, "invoice analytics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
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
