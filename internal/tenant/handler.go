package tenant

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rightupnext/billing/internal/platform/httpx"
	"github.com/rightupnext/billing/internal/shared"
)

// Handler wires tenant registration and subscription endpoints. These routes stay reachable
// when a subscription has expired so that it can be renewed.
type Handler struct {
	logger        *slog.Logger
	subscriptions *Subscriptions
	provisioner   *Provisioner
	payments      PaymentVerifier
	validator     *validator.Validate
}

// NewHandler constructs Handler. Without a payment verifier the renew route is not mounted.
func NewHandler(logger *slog.Logger, subscriptions *Subscriptions, provisioner *Provisioner, payments PaymentVerifier) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:        logger,
		subscriptions: subscriptions,
		provisioner:   provisioner,
		payments:      payments,
		validator:     validator.New(),
	}
}

// MountRoutes registers tenant routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/tenants", h.handleProvision)
	r.Route("/subscriptions/{tenant}", func(r chi.Router) {
		r.Get("/", h.handleStatus)
		if h.payments != nil {
			r.Post("/renew", h.handleRenew)
		}
		r.Get("/devices/{device}", h.handleDevice)
	})
}

type provisionRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email"`
}

type renewRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	OrderID   string          `json:"order_id" validate:"required"`
	PaymentID string          `json:"payment_id" validate:"required"`
	Signature string          `json:"signature" validate:"required"`
}

func (h *Handler) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf("%s", err.Error()))
		return
	}
	account, err := h.provisioner.Provision(r.Context(), ProvisionInput{Name: req.Name, Email: req.Email})
	if err != nil {
		h.fail(w, "provision tenant", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful",
		"db_name": account.DBName,
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.subscriptions.Status(r.Context(), chi.URLParam(r, URLParam))
	if err != nil {
		h.fail(w, "subscription status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	var req renewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf("%s", err.Error()))
		return
	}
	dbName := chi.URLParam(r, URLParam)
	proof := PaymentProof{OrderID: req.OrderID, PaymentID: req.PaymentID, Signature: req.Signature}
	if err := h.payments.VerifyPayment(r.Context(), proof); err != nil {
		h.logger.Warn("payment rejected", slog.String("tenant", dbName), slog.String("payment_id", req.PaymentID))
		h.fail(w, "verify payment", err)
		return
	}
	renewal, err := h.subscriptions.Renew(r.Context(), dbName, req.Amount)
	if err != nil {
		h.fail(w, "renew subscription", err)
		return
	}
	h.logger.Info("plan activated", slog.String("tenant", dbName), slog.String("payment_id", req.PaymentID))
	httpx.JSON(w, http.StatusOK, renewal)
}

func (h *Handler) handleDevice(w http.ResponseWriter, r *http.Request) {
	allowed, err := h.subscriptions.DeviceAllowed(r.Context(), chi.URLParam(r, URLParam), chi.URLParam(r, "device"))
	if err != nil {
		h.fail(w, "check device", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.IsBusiness(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
