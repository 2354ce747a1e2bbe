package catalog

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rightupnext/billing/internal/inventory"
	"github.com/rightupnext/billing/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	CreateCategory(ctx context.Context, tenantDB string, c Category) (Category, error)
	ListCategories(ctx context.Context, tenantDB string) ([]Category, error)
	UpdateCategory(ctx context.Context, tenantDB string, c Category) error
	DeleteCategory(ctx context.Context, tenantDB string, id int64) error

	LinkedItem(ctx context.Context, tenantDB string, inventoryID int64) (LinkedItem, error)
	CreateProduct(ctx context.Context, tenantDB string, p Product) (Product, error)
	GetProduct(ctx context.Context, tenantDB string, id int64) (Product, error)
	ProductByInventory(ctx context.Context, tenantDB string, inventoryID int64) (Product, error)
	ProductByBarcode(ctx context.Context, tenantDB, barcodeID string) (Product, error)
	ListProducts(ctx context.Context, tenantDB string, page shared.PageRequest) ([]Product, int, error)
	SaveProduct(ctx context.Context, tenantDB string, p Product) error
	SetBarcode(ctx context.Context, tenantDB string, id int64, barcodeID, path string) error
	SoftDeleteProduct(ctx context.Context, tenantDB string, id int64) error
}

// Service coordinates category and product operations.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

var maxRate = decimal.NewFromInt(100)

func validRate(r decimal.Decimal) bool {
	return !r.IsNegative() && !r.GreaterThan(maxRate)
}

func validCategory(in CategoryInput) (Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Category{}, shared.Validationf("category name is required")
	}
	if !validRate(in.CGST) || !validRate(in.SGST) {
		return Category{}, shared.Validationf("cgst and sgst must be between 0 and 100")
	}
	return Category{Name: name, CGST: in.CGST, SGST: in.SGST}, nil
}

// CreateCategory registers a GST category. Names are unique per tenant.
func (s *Service) CreateCategory(ctx context.Context, tenantDB string, in CategoryInput) (Category, error) {
	c, err := validCategory(in)
	if err != nil {
		return Category{}, err
	}
	return s.repo.CreateCategory(ctx, tenantDB, c)
}

// ListCategories returns every category ordered by name.
func (s *Service) ListCategories(ctx context.Context, tenantDB string) ([]Category, error) {
	return s.repo.ListCategories(ctx, tenantDB)
}

// UpdateCategory replaces name and rates of a category.
func (s *Service) UpdateCategory(ctx context.Context, tenantDB string, id int64, in CategoryInput) (Category, error) {
	c, err := validCategory(in)
	if err != nil {
		return Category{}, err
	}
	c.ID = id
	if err := s.repo.UpdateCategory(ctx, tenantDB, c); err != nil {
		return Category{}, err
	}
	return c, nil
}

// DeleteCategory removes a category; linked items and products keep existing without one.
func (s *Service) DeleteCategory(ctx context.Context, tenantDB string, id int64) error {
	return s.repo.DeleteCategory(ctx, tenantDB, id)
}

// CreateProduct registers a product. A product linked to an inventory item may omit its name,
// category and unit; they are taken from the item.
func (s *Service) CreateProduct(ctx context.Context, tenantDB string, in ProductInput) (Product, error) {
	p := Product{
		Name:            strings.TrimSpace(in.Name),
		CategoryID:      in.CategoryID,
		InventoryItemID: in.InventoryItemID,
		Unit:            in.Unit,
		Kilo:            in.Kilo,
		Grams:           in.Grams,
		MRP:             in.MRP,
		SaleMRP:         in.SaleMRP,
		MfgDate:         in.MfgDate,
		ExpDate:         in.ExpDate,
		BarcodeStatus:   BarcodeNotGenerated,
	}
	if in.InventoryItemID != nil {
		item, err := s.repo.LinkedItem(ctx, tenantDB, *in.InventoryItemID)
		if err != nil {
			return Product{}, err
		}
		if item.IsDeleted {
			return Product{}, shared.NotFoundf("inventory item %d", item.ID)
		}
		if p.Name == "" {
			p.Name = item.Name
		}
		if p.CategoryID == nil {
			p.CategoryID = item.CategoryID
		}
		if p.Unit == "" {
			p.Unit = item.Unit
		}
	}
	if p.Name == "" {
		return Product{}, shared.Validationf("product name is required")
	}
	if err := validProductValues(p); err != nil {
		return Product{}, err
	}
	return s.repo.CreateProduct(ctx, tenantDB, p)
}

func validProductValues(p Product) error {
	if _, err := inventory.ParseUnit(p.Unit); err != nil {
		return err
	}
	if p.MRP.IsNegative() || p.SaleMRP.IsNegative() {
		return shared.Validationf("mrp and sale mrp cannot be negative")
	}
	if p.Kilo.IsNegative() || p.Grams.IsNegative() {
		return shared.Validationf("kilo and grams cannot be negative")
	}
	if p.MfgDate != nil && p.ExpDate != nil && p.ExpDate.Before(*p.MfgDate) {
		return shared.Validationf("expiry date before manufacturing date")
	}
	return nil
}

// GetProduct loads a live product.
func (s *Service) GetProduct(ctx context.Context, tenantDB string, id int64) (Product, error) {
	p, err := s.repo.GetProduct(ctx, tenantDB, id)
	if err != nil {
		return Product{}, err
	}
	if p.IsDeleted {
		return Product{}, shared.NotFoundf("product %d", id)
	}
	return p, nil
}

// ProductByInventory loads the live product linked to an inventory item.
func (s *Service) ProductByInventory(ctx context.Context, tenantDB string, inventoryID int64) (Product, error) {
	return s.repo.ProductByInventory(ctx, tenantDB, inventoryID)
}

// ListProducts pages live products, newest first.
func (s *Service) ListProducts(ctx context.Context, tenantDB string, page shared.PageRequest) ([]Product, shared.Pagination, error) {
	products, total, err := s.repo.ListProducts(ctx, tenantDB, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, shared.NewPagination(page.Page, page.PerPage, total), nil
}

var (
	kiloUnits  = []string{"kg", "liter", "quintal", "tonne"}
	gramsUnits = []string{"g", "ml", "kg", "liter"}
)

// UpdateProduct applies the non-nil fields. Switching unit zeroes the kilo and grams parts the
// new unit does not use, and a printed barcode is marked stale.
func (s *Service) UpdateProduct(ctx context.Context, tenantDB string, id int64, in ProductUpdate) (Product, error) {
	p, err := s.GetProduct(ctx, tenantDB, id)
	if err != nil {
		return Product{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Product{}, shared.Validationf("product name cannot be empty")
		}
		p.Name = name
	}
	if in.CategoryID != nil {
		p.CategoryID = in.CategoryID
	}
	if in.InventoryItemID != nil {
		item, err := s.repo.LinkedItem(ctx, tenantDB, *in.InventoryItemID)
		if err != nil {
			return Product{}, err
		}
		if item.IsDeleted {
			return Product{}, shared.NotFoundf("inventory item %d", item.ID)
		}
		p.InventoryItemID = in.InventoryItemID
	}
	if in.Kilo != nil {
		p.Kilo = *in.Kilo
	}
	if in.Grams != nil {
		p.Grams = *in.Grams
	}
	if in.Unit != nil && *in.Unit != p.Unit {
		p.Unit = *in.Unit
		if !slices.Contains(kiloUnits, p.Unit) {
			p.Kilo = decimal.Zero
		}
		if !slices.Contains(gramsUnits, p.Unit) {
			p.Grams = decimal.Zero
		}
	}
	if in.MRP != nil {
		p.MRP = *in.MRP
	}
	if in.SaleMRP != nil {
		p.SaleMRP = *in.SaleMRP
	}
	switch {
	case in.ClearMfgDate:
		p.MfgDate = nil
	case in.MfgDate != nil:
		p.MfgDate = in.MfgDate
	}
	switch {
	case in.ClearExpDate:
		p.ExpDate = nil
	case in.ExpDate != nil:
		p.ExpDate = in.ExpDate
	}
	if err := validProductValues(p); err != nil {
		return Product{}, err
	}
	if p.BarcodeStatus == BarcodeUpdated {
		p.BarcodeStatus = BarcodeNotUpdated
	}
	if err := s.repo.SaveProduct(ctx, tenantDB, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

// DeleteProduct soft deletes a product; invoices keep their snapshot.
func (s *Service) DeleteProduct(ctx context.Context, tenantDB string, id int64) error {
	return s.repo.SoftDeleteProduct(ctx, tenantDB, id)
}

// AssignBarcode binds the product's barcode id and image path and marks the barcode current.
func (s *Service) AssignBarcode(ctx context.Context, tenantDB string, id int64) (BarcodeAssignment, error) {
	p, err := s.GetProduct(ctx, tenantDB, id)
	if err != nil {
		return BarcodeAssignment{}, err
	}
	barcode := BarcodeID(p.ID, p.Name, tenantDB)
	path := BarcodePath(barcode)
	if err := s.repo.SetBarcode(ctx, tenantDB, p.ID, barcode, path); err != nil {
		return BarcodeAssignment{}, err
	}
	s.logger.Info("barcode assigned",
		slog.String("tenant", tenantDB),
		slog.Int64("product_id", p.ID),
		slog.String("barcode_id", barcode))
	return BarcodeAssignment{ProductID: p.ID, BarcodeID: barcode, Path: path, Status: BarcodeUpdated}, nil
}

// Scan resolves a scanned barcode id to its live product.
func (s *Service) Scan(ctx context.Context, tenantDB, barcodeID string) (Product, error) {
	barcodeID = strings.TrimSpace(barcodeID)
	if barcodeID == "" {
		return Product{}, shared.Validationf("barcode id is required")
	}
	return s.repo.ProductByBarcode(ctx, tenantDB, barcodeID)
}
