package invoices

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rightupnext/billing/internal/billing"
	"github.com/rightupnext/billing/internal/catalog"
	"github.com/rightupnext/billing/internal/inventory"
	"github.com/rightupnext/billing/internal/platform/cache"
	"github.com/rightupnext/billing/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, tenantDB string, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, tenantDB string, id int64) (Invoice, error)
	List(ctx context.Context, tenantDB string, page shared.PageRequest) ([]Invoice, int, error)
	Delete(ctx context.Context, tenantDB string, id int64) error
	InvoiceNumbers(ctx context.Context, tenantDB string, year int) ([]string, error)
	SequenceValue(ctx context.Context, tenantDB string, year int) (int, error)
	InvoicesBetween(ctx context.Context, tenantDB string, from, to time.Time) ([]Invoice, error)
	CustomerCount(ctx context.Context, tenantDB string) (int, error)
}

// TxRepository exposes transactional operations used by service. The embedded ledger moves stock
// inside the same transaction as the invoice row.
type TxRepository interface {
	inventory.Ledger
	NextSequence(ctx context.Context, year int) (int, error)
	RaiseSequence(ctx context.Context, year, seq int) error
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	InvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	SaveInvoice(ctx context.Context, inv Invoice) error
	SaveTotals(ctx context.Context, id int64, totals Totals) error
}

// TaxLookup resolves GST rates from the catalog.
type TaxLookup interface {
	TaxRates(ctx context.Context, tenantDB string, productIDs, inventoryIDs []int64) (catalog.TaxRates, error)
}

// Rejections counts business rule rejections.
type Rejections interface {
	Reject(operation, reason string)
}

// Config carries the tenant totals policies.
type Config struct {
	// Policies maps tenant database names to a totals policy name; unlisted tenants use standard.
	Policies map[string]string
}

// Service coordinates invoice operations.
type Service struct {
	repo    RepositoryPort
	taxes   TaxLookup
	cache   *cache.JSONCache
	metrics Rejections
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service. taxes, jsonCache and metrics may be nil.
func NewService(repo RepositoryPort, taxes TaxLookup, jsonCache *cache.JSONCache, metrics Rejections, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, taxes: taxes, cache: jsonCache, metrics: metrics, cfg: cfg, logger: logger, now: time.Now}
}

// reconcileTolerance is how far a caller's finalAmount may sit from ours before the invoice is refused.
var reconcileTolerance = decimal.NewFromInt(1)

func (s *Service) reject(op string, err error) {
	if s.metrics == nil || err == nil {
		return
	}
	reason := ""
	switch {
	case errors.Is(err, shared.ErrInsufficientStock):
		reason = "insufficient_stock"
	case errors.Is(err, shared.ErrOverpayment):
		reason = "overpayment"
	case errors.Is(err, shared.ErrValidation):
		reason = "validation"
	case errors.Is(err, shared.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, shared.ErrDuplicate):
		reason = "duplicate"
	default:
		return
	}
	s.metrics.Reject(op, reason)
}

func validateItems(items []LineItem) error {
	if len(items) == 0 {
		return shared.Validationf("invoice needs at least one item")
	}
	for i, it := range items {
		if it.InventoryItemID != nil && !it.Qty.IsPositive() {
			return shared.Validationf("item %d: qty must be greater than zero", i+1)
		}
		if it.Qty.IsNegative() || it.Rate.IsNegative() || it.GST.IsNegative() || it.Box.IsNegative() {
			return shared.Validationf("item %d: qty, rate, gst and box cannot be negative", i+1)
		}
		if !inventory.FitsQuantityScale(it.Qty) {
			return shared.Validationf("item %d: qty allows at most %d decimal places", i+1, inventory.QuantityPlaces)
		}
	}
	return nil
}

func validateCharges(c Charges) error {
	if c.Discount.IsNegative() || c.DeliveryCharge.IsNegative() || c.BoxRate.IsNegative() {
		return shared.Validationf("discount, delivery charge and box rate cannot be negative")
	}
	return nil
}

// price resolves every line's GST from the catalog, fills line amounts and computes the totals
// with the tenant's policy. Lines whose product or inventory item is unknown keep their own GST.
func (s *Service) price(ctx context.Context, tenantDB string, items []LineItem, charges Charges) ([]LineItem, billing.Totals, error) {
	priced := slices.Clone(items)
	if s.taxes != nil {
		var productIDs, inventoryIDs []int64
		for _, it := range priced {
			if it.ProductID != nil {
				productIDs = append(productIDs, *it.ProductID)
			}
			if it.InventoryItemID != nil {
				inventoryIDs = append(inventoryIDs, *it.InventoryItemID)
			}
		}
		if len(productIDs) > 0 || len(inventoryIDs) > 0 {
			rates, err := s.taxes.TaxRates(ctx, tenantDB, productIDs, inventoryIDs)
			if err != nil {
				return nil, billing.Totals{}, err
			}
			for i, it := range priced {
				if it.ProductID != nil {
					if rate, ok := rates.Products[*it.ProductID]; ok {
						priced[i].GST = rate
						continue
					}
				}
				if it.InventoryItemID != nil {
					if rate, ok := rates.Inventory[*it.InventoryItemID]; ok {
						priced[i].GST = rate
					}
				}
			}
		}
	}

	lines := make([]billing.Line, len(priced))
	for i, it := range priced {
		priced[i].Amount = it.Qty.Mul(it.Rate).Round(2)
		lines[i] = billing.Line{Qty: it.Qty, Rate: it.Rate, GSTPercent: priced[i].GST, BoxQty: it.Box}
	}
	policy := billing.PolicyFor(tenantDB, s.cfg.Policies)
	totals := policy.Compute(lines, billing.Charges{
		Discount:       charges.Discount,
		DeliveryCharge: charges.DeliveryCharge,
		BoxRate:        charges.BoxRate,
	})
	return priced, totals, nil
}

func reconcile(claimed *Totals, computed billing.Totals) error {
	if claimed == nil {
		return nil
	}
	if claimed.FinalAmount.Sub(computed.FinalAmount).Abs().GreaterThan(reconcileTolerance) {
		return shared.Validationf("finalAmount %s does not match computed %s",
			claimed.FinalAmount.String(), computed.FinalAmount.String())
	}
	return nil
}

// Create stores an invoice and reduces the stock of every line linked to an inventory item, all in
// one transaction: a missing item or a short balance on any line leaves no invoice and no stock change.
func (s *Service) Create(ctx context.Context, tenantDB string, input CreateInput) (*Invoice, error) {
	inv, err := s.create(ctx, tenantDB, input)
	if err != nil {
		s.reject("create_invoice", err)
		return nil, err
	}
	s.invalidate(ctx, tenantDB)
	s.logger.Info("invoice created",
		slog.String("tenant", tenantDB),
		slog.Int64("invoice_id", inv.ID),
		slog.String("invoice_no", inv.InvoiceNo),
		slog.String("final_amount", inv.Totals.FinalAmount.String()))
	return inv, nil
}

func (s *Service) create(ctx context.Context, tenantDB string, input CreateInput) (*Invoice, error) {
	if err := validateItems(input.Items); err != nil {
		return nil, err
	}
	if err := validateCharges(input.Charges); err != nil {
		return nil, err
	}
	items, computed, err := s.price(ctx, tenantDB, input.Items, input.Charges)
	if err != nil {
		return nil, err
	}
	if err := reconcile(input.Totals, computed); err != nil {
		return nil, err
	}

	now := s.now()
	totals := Totals{Totals: computed, PaymentHistory: []Payment{}}
	if input.Totals != nil && input.Totals.PaidAmount.IsPositive() {
		paid := input.Totals.PaidAmount.Round(2)
		if paid.GreaterThan(computed.FinalAmount) {
			return nil, &shared.OverpaymentError{Balance: computed.FinalAmount, Attempted: paid}
		}
		totals.PaidAmount = paid
		totals.PaymentHistory = append(totals.PaymentHistory, Payment{Amount: paid, Date: now.Format(time.DateOnly)})
	}
	totals.settle()

	invoiceNo := strings.TrimSpace(input.InvoiceNo)
	var created Invoice
	err = s.repo.WithTx(ctx, tenantDB, func(ctx context.Context, tx TxRepository) error {
		year := now.Year()
		if invoiceNo == "" {
			seq, err := tx.NextSequence(ctx, year)
			if err != nil {
				return err
			}
			invoiceNo = FormatNumber(year, seq)
		} else if seq, ok := ParseSequence(year, invoiceNo); ok {
			if err := tx.RaiseSequence(ctx, year, seq); err != nil {
				return err
			}
		}
		totals.InvoiceNo = invoiceNo

		inv, err := tx.InsertInvoice(ctx, Invoice{
			InvoiceNo: invoiceNo,
			Customer:  input.Customer,
			Items:     items,
			Charges:   input.Charges,
			Totals:    totals,
		})
		if err != nil {
			return err
		}

		// Lock stock rows in id order so concurrent invoices over the same items cannot deadlock.
		stocked := make([]LineItem, 0, len(items))
		for _, it := range items {
			if it.InventoryItemID != nil {
				stocked = append(stocked, it)
			}
		}
		slices.SortStableFunc(stocked, func(a, b LineItem) int {
			return cmp.Compare(*a.InventoryItemID, *b.InventoryItemID)
		})
		batch := uuid.New()
		for _, it := range stocked {
			if _, err := inventory.ApplyMovement(ctx, tx, inventory.Movement{
				InventoryID: *it.InventoryItemID,
				BatchID:     batch,
				Action:      inventory.ActionReduce,
				Quantity:    it.Qty,
				Unit:        inventory.Unit(it.Unit),
				InvoiceID:   &inv.ID,
			}); err != nil {
				return err
			}
		}
		created = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces number, customer, items and charges of an invoice. Paid amount and payment
// history always come from the stored invoice; stock is not touched.
func (s *Service) Update(ctx context.Context, tenantDB string, id int64, input UpdateInput) (PaymentSummary, error) {
	summary, err := s.update(ctx, tenantDB, id, input)
	if err != nil {
		s.reject("update_invoice", err)
		return PaymentSummary{}, err
	}
	s.invalidate(ctx, tenantDB)
	return summary, nil
}

func (s *Service) update(ctx context.Context, tenantDB string, id int64, input UpdateInput) (PaymentSummary, error) {
	invoiceNo := strings.TrimSpace(input.InvoiceNo)
	if invoiceNo == "" || len(input.Items) == 0 || input.Totals == nil {
		return PaymentSummary{}, shared.Validationf("invoice_no, items and computedtotals are required")
	}
	if err := validateItems(input.Items); err != nil {
		return PaymentSummary{}, err
	}
	if err := validateCharges(input.Charges); err != nil {
		return PaymentSummary{}, err
	}
	items, computed, err := s.price(ctx, tenantDB, input.Items, input.Charges)
	if err != nil {
		return PaymentSummary{}, err
	}
	if err := reconcile(input.Totals, computed); err != nil {
		return PaymentSummary{}, err
	}

	var summary PaymentSummary
	err = s.repo.WithTx(ctx, tenantDB, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.InvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if invoiceNo != current.InvoiceNo {
			year := s.now().Year()
			if seq, ok := ParseSequence(year, invoiceNo); ok {
				if err := tx.RaiseSequence(ctx, year, seq); err != nil {
					return err
				}
			}
		}
		totals := Totals{
			Totals:         computed,
			PaidAmount:     current.Totals.PaidAmount,
			PaymentHistory: current.Totals.PaymentHistory,
			InvoiceNo:      invoiceNo,
		}
		totals.settle()
		current.InvoiceNo = invoiceNo
		current.Customer = input.Customer
		current.Items = items
		current.Charges = input.Charges
		current.Totals = totals
		if err := tx.SaveInvoice(ctx, current); err != nil {
			return err
		}
		summary = summaryOf(totals)
		return nil
	})
	if err != nil {
		return PaymentSummary{}, err
	}
	return summary, nil
}

// AddPayment books a payment against the outstanding balance. The invoice row stays locked from
// read to write, so concurrent payments are applied one after the other.
func (s *Service) AddPayment(ctx context.Context, tenantDB string, id int64, amount decimal.Decimal) (PaymentSummary, error) {
	summary, err := s.addPayment(ctx, tenantDB, id, amount)
	if err != nil {
		s.reject("add_payment", err)
		return PaymentSummary{}, err
	}
	s.invalidate(ctx, tenantDB)
	s.logger.Info("payment added",
		slog.String("tenant", tenantDB),
		slog.Int64("invoice_id", id),
		slog.String("amount", amount.String()),
		slog.String("status", string(summary.Status)))
	return summary, nil
}

func (s *Service) addPayment(ctx context.Context, tenantDB string, id int64, amount decimal.Decimal) (PaymentSummary, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return PaymentSummary{}, shared.Validationf("payment amount must be greater than zero")
	}
	var summary PaymentSummary
	err := s.repo.WithTx(ctx, tenantDB, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.InvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		totals := inv.Totals
		balance := Balance(totals.FinalAmount, totals.PaidAmount)
		if amount.GreaterThan(balance) {
			return &shared.OverpaymentError{Balance: balance, Attempted: amount}
		}
		totals.PaidAmount = totals.PaidAmount.Add(amount)
		totals.PaymentHistory = append(slices.Clone(totals.PaymentHistory), Payment{
			Amount: amount,
			Date:   s.now().Format(time.DateOnly),
		})
		totals.settle()
		if err := tx.SaveTotals(ctx, id, totals); err != nil {
			return err
		}
		summary = summaryOf(totals)
		return nil
	})
	if err != nil {
		return PaymentSummary{}, err
	}
	return summary, nil
}

// Delete removes an invoice. Stock reduced by it is not given back.
func (s *Service) Delete(ctx context.Context, tenantDB string, id int64) error {
	if err := s.repo.Delete(ctx, tenantDB, id); err != nil {
		return err
	}
	s.invalidate(ctx, tenantDB)
	s.logger.Info("invoice deleted", slog.String("tenant", tenantDB), slog.Int64("invoice_id", id))
	return nil
}

// Get loads one invoice.
func (s *Service) Get(ctx context.Context, tenantDB string, id int64) (Invoice, error) {
	return s.repo.Get(ctx, tenantDB, id)
}

// List pages invoices, newest first.
func (s *Service) List(ctx context.Context, tenantDB string, page shared.PageRequest) ([]Invoice, shared.Pagination, error) {
	invoices, total, err := s.repo.List(ctx, tenantDB, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return invoices, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// NextInvoiceNumber previews the number the next invoice of this year will get when none is supplied.
func (s *Service) NextInvoiceNumber(ctx context.Context, tenantDB string) (string, error) {
	year := s.now().Year()
	numbers, err := s.repo.InvoiceNumbers(ctx, tenantDB, year)
	if err != nil {
		return "", err
	}
	counter, err := s.repo.SequenceValue(ctx, tenantDB, year)
	if err != nil {
		return "", err
	}
	return FormatNumber(year, max(MaxSequence(year, numbers), counter)+1), nil
}

func analyticsScope(tenantDB string) string {
	return "invoices:" + tenantDB
}

func (s *Service) invalidate(ctx context.Context, tenantDB string) {
	if err := s.cache.Bump(ctx, analyticsScope(tenantDB)); err != nil {
		s.logger.Warn("analytics cache bump failed", slog.String("tenant", tenantDB), slog.Any("error", err))
	}
}
