package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rightupnext/billing/internal/platform/db"
	"github.com/rightupnext/billing/internal/shared"
)

// Repository persists categories and products in the tenant databases.
type Repository struct {
	pools db.PoolSource
}

// NewRepository constructs Repository.
func NewRepository(pools db.PoolSource) *Repository {
	return &Repository{pools: pools}
}

func (r *Repository) conn(ctx context.Context, tenantDB string) (db.DBTX, func(), error) {
	pool, release, err := r.pools.Pool(ctx, tenantDB)
	if err != nil {
		return nil, nil, err
	}
	return pool, release, nil
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, tenantDB string, c Category) (Category, error) {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return Category{}, err
	}
	defer release()
	err = q.QueryRow(ctx, `INSERT INTO categories (name, cgst, sgst) VALUES ($1, $2, $3)
RETURNING id, created_at, updated_at`, c.Name, c.CGST, c.SGST).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return Category{}, fmt.Errorf("category %q: %w", c.Name, shared.ErrDuplicate)
	}
	if err != nil {
		return Category{}, fmt.Errorf("catalog: create category: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories by name.
func (r *Repository) ListCategories(ctx context.Context, tenantDB string) ([]Category, error) {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return nil, err
	}
	defer release()
	rows, err := q.Query(ctx, `SELECT id, name, cgst, sgst, created_at, updated_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Category, error) {
		var c Category
		err := row.Scan(&c.ID, &c.Name, &c.CGST, &c.SGST, &c.CreatedAt, &c.UpdatedAt)
		return c, err
	})
}

// UpdateCategory replaces name and rates.
func (r *Repository) UpdateCategory(ctx context.Context, tenantDB string, c Category) error {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return err
	}
	defer release()
	tag, err := q.Exec(ctx, `UPDATE categories SET name = $2, cgst = $3, sgst = $4, updated_at = now() WHERE id = $1`,
		c.ID, c.Name, c.CGST, c.SGST)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("category %q: %w", c.Name, shared.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("catalog: update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("category %d", c.ID)
	}
	return nil
}

// DeleteCategory removes a category row.
func (r *Repository) DeleteCategory(ctx context.Context, tenantDB string, id int64) error {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return err
	}
	defer release()
	tag, err := q.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("category %d", id)
	}
	return nil
}

// LinkedItem loads the inventory fields a product inherits.
func (r *Repository) LinkedItem(ctx context.Context, tenantDB string, inventoryID int64) (LinkedItem, error) {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return LinkedItem{}, err
	}
	defer release()
	var item LinkedItem
	err = q.QueryRow(ctx, `SELECT id, item_name, category_id, unit, is_deleted FROM inventory WHERE id = $1`, inventoryID).
		Scan(&item.ID, &item.Name, &item.CategoryID, &item.Unit, &item.IsDeleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return LinkedItem{}, shared.NotFoundf("inventory item %d", inventoryID)
	}
	if err != nil {
		return LinkedItem{}, fmt.Errorf("catalog: linked item: %w", err)
	}
	return item, nil
}

// The linked inventory item's name and category take precedence over the product's own.
const selectProduct = `SELECT p.id, COALESCE(i.item_name, p.name), COALESCE(i.category_id, p.category_id),
       COALESCE(ci.name, c.name, ''), COALESCE(ci.cgst, c.cgst, 0), COALESCE(ci.sgst, c.sgst, 0),
       p.inventory_id, i.stock_quantity, p.unit, COALESCE(p.kilo, 0), COALESCE(p.grams, 0), p.mrp, p.sale_mrp,
       p.mfg_date, p.exp_date, COALESCE(p.barcode, ''), COALESCE(p.barcode_path, ''), p.barcode_status,
       p.is_deleted, p.created_at, p.updated_at
FROM products p
LEFT JOIN inventory i ON i.id = p.inventory_id AND NOT i.is_deleted
LEFT JOIN categories c ON c.id = p.category_id
LEFT JOIN categories ci ON ci.id = i.category_id`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.CategoryID, &p.CategoryName, &p.CGST, &p.SGST,
		&p.InventoryItemID, &p.InventoryQuantity, &p.Unit, &p.Kilo, &p.Grams, &p.MRP, &p.SaleMRP,
		&p.MfgDate, &p.ExpDate, &p.BarcodeID, &p.BarcodePath, &p.BarcodeStatus,
		&p.IsDeleted, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repository) oneProduct(ctx context.Context, tenantDB, what, where string, args ...any) (Product, error) {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return Product{}, err
	}
	defer release()
	p, err := scanProduct(q.QueryRow(ctx, selectProduct+" WHERE "+where, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NotFoundf("%s", what)
	}
	if err != nil {
		return Product{}, fmt.Errorf("catalog: get product: %w", err)
	}
	return p, nil
}

// CreateProduct inserts a product.
func (r *Repository) CreateProduct(ctx context.Context, tenantDB string, p Product) (Product, error) {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return Product{}, err
	}
	defer release()
	err = q.QueryRow(ctx, `INSERT INTO products
    (name, category_id, inventory_id, unit, kilo, grams, mrp, sale_mrp, mfg_date, exp_date, barcode_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, created_at, updated_at`,
		p.Name, p.CategoryID, p.InventoryItemID, p.Unit, p.Kilo, p.Grams, p.MRP, p.SaleMRP, p.MfgDate, p.ExpDate,
		p.BarcodeStatus).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return Product{}, shared.NotFoundf("category or inventory item of product %q", p.Name)
	}
	if err != nil {
		return Product{}, fmt.Errorf("catalog: create product: %w", err)
	}
	return p, nil
}

// GetProduct loads a product, deleted or not.
func (r *Repository) GetProduct(ctx context.Context, tenantDB string, id int64) (Product, error) {
	return r.oneProduct(ctx, tenantDB, fmt.Sprintf("product %d", id), "p.id = $1", id)
}

// ProductByInventory loads the first live product linked to an inventory item.
func (r *Repository) ProductByInventory(ctx context.Context, tenantDB string, inventoryID int64) (Product, error) {
	return r.oneProduct(ctx, tenantDB, fmt.Sprintf("product for inventory item %d", inventoryID),
		"p.inventory_id = $1 AND NOT p.is_deleted ORDER BY p.id LIMIT 1", inventoryID)
}

// ProductByBarcode loads the live product carrying a barcode id.
func (r *Repository) ProductByBarcode(ctx context.Context, tenantDB, barcodeID string) (Product, error) {
	return r.oneProduct(ctx, tenantDB, fmt.Sprintf("product with barcode %q", barcodeID),
		"p.barcode = $1 AND NOT p.is_deleted", barcodeID)
}

// ListProducts pages live products, newest first, with the total count.
func (r *Repository) ListProducts(ctx context.Context, tenantDB string, page shared.PageRequest) ([]Product, int, error) {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return nil, 0, err
	}
	defer release()
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE NOT is_deleted`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count products: %w", err)
	}
	rows, err := q.Query(ctx, selectProduct+` WHERE NOT p.is_deleted ORDER BY p.id DESC LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list products: %w", err)
	}
	return products, total, nil
}

// SaveProduct writes every editable column of a product.
func (r *Repository) SaveProduct(ctx context.Context, tenantDB string, p Product) error {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return err
	}
	defer release()
	tag, err := q.Exec(ctx, `UPDATE products
SET name = $2, category_id = $3, inventory_id = $4, unit = $5, kilo = $6, grams = $7, mrp = $8, sale_mrp = $9,
    mfg_date = $10, exp_date = $11, barcode_status = $12, updated_at = now()
WHERE id = $1 AND NOT is_deleted`,
		p.ID, p.Name, p.CategoryID, p.InventoryItemID, p.Unit, p.Kilo, p.Grams, p.MRP, p.SaleMRP,
		p.MfgDate, p.ExpDate, p.BarcodeStatus)
	if db.IsForeignKeyViolation(err) {
		return shared.NotFoundf("category or inventory item of product %d", p.ID)
	}
	if err != nil {
		return fmt.Errorf("catalog: save product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("product %d", p.ID)
	}
	return nil
}

// SetBarcode stores the barcode id and image path and marks the barcode current.
func (r *Repository) SetBarcode(ctx context.Context, tenantDB string, id int64, barcodeID, path string) error {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return err
	}
	defer release()
	tag, err := q.Exec(ctx, `UPDATE products SET barcode = $2, barcode_path = $3, barcode_status = $4, updated_at = now()
WHERE id = $1 AND NOT is_deleted`, id, barcodeID, path, BarcodeUpdated)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("barcode %q: %w", barcodeID, shared.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("catalog: set barcode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("product %d", id)
	}
	return nil
}

// SoftDeleteProduct flags a product as deleted.
func (r *Repository) SoftDeleteProduct(ctx context.Context, tenantDB string, id int64) error {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return err
	}
	defer release()
	tag, err := q.Exec(ctx, `UPDATE products SET is_deleted = TRUE, updated_at = now() WHERE id = $1 AND NOT is_deleted`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("product %d", id)
	}
	return nil
}

// TaxRates resolves the combined GST percent of the given products and inventory items through their
// categories. Ids that exist without a category map to zero; unknown ids are absent.
func (r *Repository) TaxRates(ctx context.Context, tenantDB string, productIDs, inventoryIDs []int64) (TaxRates, error) {
	rates := TaxRates{Products: map[int64]decimal.Decimal{}, Inventory: map[int64]decimal.Decimal{}}
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return rates, err
	}
	defer release()
	load := func(sql string, ids []int64, into map[int64]decimal.Decimal) error {
		if len(ids) == 0 {
			return nil
		}
		rows, err := q.Query(ctx, sql, ids)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var linked, own decimal.NullDecimal
			if err := rows.Scan(&id, &linked, &own); err != nil {
				return err
			}
			into[id] = CategoryRate(linked, own)
		}
		return rows.Err()
	}
	if err := load(`SELECT p.id, ci.cgst + ci.sgst, c.cgst + c.sgst
FROM products p
LEFT JOIN inventory i ON i.id = p.inventory_id
LEFT JOIN categories c ON c.id = p.category_id
LEFT JOIN categories ci ON ci.id = i.category_id
WHERE p.id = ANY($1)`, productIDs, rates.Products); err != nil {
		return rates, fmt.Errorf("catalog: product tax rates: %w", err)
	}
	if err := load(`SELECT i.id, c.cgst + c.sgst, NULL::numeric
FROM inventory i
LEFT JOIN categories c ON c.id = i.category_id
WHERE i.id = ANY($1)`, inventoryIDs, rates.Inventory); err != nil {
		return rates, fmt.Errorf("catalog: inventory tax rates: %w", err)
	}
	return rates, nil
}
