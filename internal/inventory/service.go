package inventory

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rightupnext/billing/internal/shared"
)

// Ledger is the stock side of a tenant transaction. Implementations must lock the row read by
// GetForUpdate until the transaction ends and must move inventory.stock_quantity together with
// every appended transaction.
type Ledger interface {
	GetForUpdate(ctx context.Context, id int64) (Item, error)
	AppendStockTransaction(ctx context.Context, st StockTransaction) (StockTransaction, error)
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, tenantDB string, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, tenantDB string, id int64) (Item, error)
	UpdateDetails(ctx context.Context, tenantDB string, id int64, name *string, categoryID *int64) error
	SoftDelete(ctx context.Context, tenantDB string, id int64) error
	SalesRows(ctx context.Context, tenantDB string, from, to time.Time) ([]SalesRow, error)
	StockCard(ctx context.Context, tenantDB string, id int64, limit int) ([]StockTransaction, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	Ledger
	InsertItem(ctx context.Context, item Item) (Item, error)
}

// Service coordinates inventory operations.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// ApplyMovement checks and appends one stock movement through ledger. The row is locked first so
// the balance check and the append see the same stock. A reduce larger than the balance fails with
// *shared.InsufficientStockError and appends nothing.
func ApplyMovement(ctx context.Context, ledger Ledger, m Movement) (StockTransaction, error) {
	if !m.Quantity.IsPositive() {
		return StockTransaction{}, shared.Validationf("quantity for item %d must be greater than zero", m.InventoryID)
	}
	if !FitsQuantityScale(m.Quantity) {
		return StockTransaction{}, shared.Validationf("quantity for item %d allows at most %d decimal places", m.InventoryID, QuantityPlaces)
	}
	item, err := ledger.GetForUpdate(ctx, m.InventoryID)
	if err != nil {
		return StockTransaction{}, err
	}
	balance := item.StockQuantity
	switch m.Action {
	case ActionAdd:
		balance = balance.Add(m.Quantity)
	case ActionReduce:
		if balance.LessThan(m.Quantity) {
			return StockTransaction{}, &shared.InsufficientStockError{
				InventoryID: m.InventoryID,
				Available:   item.StockQuantity,
				Requested:   m.Quantity,
			}
		}
		balance = balance.Sub(m.Quantity)
	default:
		return StockTransaction{}, shared.Validationf("invalid action %q, use 'add' or 'reduce'", m.Action)
	}
	unit := m.Unit
	if unit == "" {
		unit = item.Unit
	}
	batch := m.BatchID
	if batch == uuid.Nil {
		batch = uuid.New()
	}
	return ledger.AppendStockTransaction(ctx, StockTransaction{
		InventoryID:  m.InventoryID,
		BatchID:      batch,
		Type:         m.Action,
		Quantity:     m.Quantity,
		Unit:         unit,
		BalanceAfter: balance,
		InvoiceID:    m.InvoiceID,
	})
}

// Create registers an item and books its opening stock as an add transaction.
func (s *Service) Create(ctx context.Context, tenantDB string, input CreateInput) (Item, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.Unit == "" {
		return Item{}, shared.Validationf("item name and unit are required")
	}
	unit, err := ParseUnit(input.Unit)
	if err != nil {
		return Item{}, err
	}
	opening := NormalizeQuantity(unit, input.Kilo, input.Grams)
	if opening.IsNegative() {
		return Item{}, shared.Validationf("opening stock cannot be negative")
	}

	var created Item
	err = s.repo.WithTx(ctx, tenantDB, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.InsertItem(ctx, Item{Name: name, CategoryID: input.CategoryID, Unit: unit})
		if err != nil {
			return err
		}
		if opening.IsPositive() {
			st, err := ApplyMovement(ctx, tx, Movement{InventoryID: item.ID, Action: ActionAdd, Quantity: opening, Unit: unit})
			if err != nil {
				return err
			}
			item.StockQuantity = st.BalanceAfter
		}
		created = item
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	created.StockDisplay = StockDisplay(created.Unit, created.StockQuantity)
	return created, nil
}

// Get loads one item with its category.
func (s *Service) Get(ctx context.Context, tenantDB string, id int64) (Item, error) {
	item, err := s.repo.Get(ctx, tenantDB, id)
	if err != nil {
		return Item{}, err
	}
	item.StockDisplay = StockDisplay(item.Unit, item.StockQuantity)
	return item, nil
}

// Adjust edits the item's name and category, or adds/reduces stock when an action is given.
func (s *Service) Adjust(ctx context.Context, tenantDB string, input AdjustInput) (AdjustResult, error) {
	if input.InventoryID == 0 {
		return AdjustResult{}, shared.Validationf("inventory id is required")
	}
	var unit Unit
	if input.Unit != "" {
		u, err := ParseUnit(input.Unit)
		if err != nil {
			return AdjustResult{}, err
		}
		unit = u
	}

	if input.Action == "" {
		if err := s.repo.UpdateDetails(ctx, tenantDB, input.InventoryID, input.ItemName, input.CategoryID); err != nil {
			return AdjustResult{}, err
		}
		return AdjustResult{Message: "inventory details updated"}, nil
	}
	if input.Action != ActionAdd && input.Action != ActionReduce {
		return AdjustResult{}, shared.Validationf("invalid action %q, use 'add' or 'reduce'", input.Action)
	}

	var st StockTransaction
	err := s.repo.WithTx(ctx, tenantDB, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetForUpdate(ctx, input.InventoryID)
		if err != nil {
			return err
		}
		base := unit
		if base == "" {
			base = item.Unit
		}
		qty := NormalizeQuantity(base, input.Kilo, input.Grams)
		st, err = ApplyMovement(ctx, tx, Movement{
			InventoryID: input.InventoryID,
			Action:      input.Action,
			Quantity:    qty,
			Unit:        base,
		})
		return err
	})
	if err != nil {
		return AdjustResult{}, err
	}
	s.logger.Info("stock adjusted",
		slog.String("tenant", tenantDB),
		slog.Int64("inventory_id", input.InventoryID),
		slog.String("action", string(input.Action)),
		slog.String("quantity", st.Quantity.String()),
		slog.String("balance", st.BalanceAfter.String()))
	msg := "stock added"
	if input.Action == ActionReduce {
		msg = "stock reduced"
	}
	return AdjustResult{Message: msg, Transaction: &st}, nil
}

// SoftDelete flags the item as deleted; its history stays for old invoices.
func (s *Service) SoftDelete(ctx context.Context, tenantDB string, id int64) error {
	return s.repo.SoftDelete(ctx, tenantDB, id)
}

// StockCard lists the most recent stock transactions of an item.
func (s *Service) StockCard(ctx context.Context, tenantDB string, id int64, limit int) ([]StockTransaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	if _, err := s.repo.Get(ctx, tenantDB, id); err != nil {
		return nil, err
	}
	return s.repo.StockCard(ctx, tenantDB, id, limit)
}

// MonthRange returns the first and last day of now's month.
func MonthRange(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, -1)
}

// ListWithSales reports every live item with its sales in the window (current month by default),
// most sold first. With ShowAll false only items sold in the window are kept.
func (s *Service) ListWithSales(ctx context.Context, tenantDB string, filter SalesFilter) (SalesReport, error) {
	if filter.Start.IsZero() || filter.End.IsZero() {
		filter.Start, filter.End = MonthRange(s.now())
	}
	if filter.End.Before(filter.Start) {
		return SalesReport{}, shared.Validationf("end date before start date")
	}
	rows, err := s.repo.SalesRows(ctx, tenantDB, filter.Start, filter.End)
	if err != nil {
		return SalesReport{}, err
	}

	report := SalesReport{
		Start:   filter.Start.Format(time.DateOnly),
		End:     filter.End.Format(time.DateOnly),
		ShowAll: filter.ShowAll,
		Data:    make([]ItemSales, 0, len(rows)),
	}
	for _, row := range rows {
		if !filter.ShowAll && !row.SoldQty.IsPositive() {
			continue
		}
		mrpAmount := row.SoldQty.Mul(row.AvgMRP).Round(2)
		line := ItemSales{
			Item:             row.Item,
			TotalSoldQty:     row.SoldQty,
			TotalSalesAmount: row.SoldAmount,
			TotalMRPAmount:   mrpAmount,
			ProfitAmount:     mrpAmount.Sub(row.SoldAmount).Abs(),
		}
		line.StockDisplay = StockDisplay(line.Unit, line.StockQuantity)
		report.Data = append(report.Data, line)

		report.TotalSoldQty = report.TotalSoldQty.Add(line.TotalSoldQty)
		report.TotalSalesAmount = report.TotalSalesAmount.Add(line.TotalSalesAmount)
		report.TotalMRPAmount = report.TotalMRPAmount.Add(line.TotalMRPAmount)
		report.TotalProfit = report.TotalProfit.Add(line.ProfitAmount)
	}
	sort.SliceStable(report.Data, func(i, j int) bool {
		return report.Data[i].TotalSoldQty.GreaterThan(report.Data[j].TotalSoldQty)
	})
	report.TotalItems = len(report.Data)
	return report, nil
}
