package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rightupnext/billing/internal/platform/db"
	"github.com/rightupnext/billing/internal/shared"
)

// Repository persists inventory data in the tenant databases.
type Repository struct {
	pools db.PoolSource
}

// NewRepository constructs Repository.
func NewRepository(pools db.PoolSource) *Repository {
	return &Repository{pools: pools}
}

type txRepo struct {
	tx db.DBTX
}

// NewTxRepository exposes the inventory writes of an open transaction, so other modules can
// move stock inside their own transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

// WithTx executes the callback inside a tenant transaction.
func (r *Repository) WithTx(ctx context.Context, tenantDB string, fn func(context.Context, TxRepository) error) error {
	pool, release, err := r.pools.Pool(ctx, tenantDB)
	if err != nil {
		return err
	}
	defer release()
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const selectItem = `SELECT i.id, i.item_name, i.category_id, COALESCE(c.name, ''), COALESCE(c.cgst, 0), COALESCE(c.sgst, 0),
       i.unit, i.stock_quantity, i.is_deleted, i.created_at, i.updated_at
FROM inventory i
LEFT JOIN categories c ON c.id = i.category_id`

func scanItem(row pgx.Row, item *Item) error {
	return row.Scan(&item.ID, &item.Name, &item.CategoryID, &item.CategoryName, &item.CGST, &item.SGST,
		&item.Unit, &item.StockQuantity, &item.IsDeleted, &item.CreatedAt, &item.UpdatedAt)
}

// Get loads one item, deleted or not.
func (r *Repository) Get(ctx context.Context, tenantDB string, id int64) (Item, error) {
	pool, release, err := r.pools.Pool(ctx, tenantDB)
	if err != nil {
		return Item{}, err
	}
	defer release()
	var item Item
	err = scanItem(pool.QueryRow(ctx, selectItem+` WHERE i.id = $1`, id), &item)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, shared.NotFoundf("inventory item %d", id)
	}
	if err != nil {
		return Item{}, fmt.Errorf("inventory: get item: %w", err)
	}
	return item, nil
}

// UpdateDetails changes name and category; nil values keep the stored ones.
func (r *Repository) UpdateDetails(ctx context.Context, tenantDB string, id int64, name *string, categoryID *int64) error {
	pool, release, err := r.pools.Pool(ctx, tenantDB)
	if err != nil {
		return err
	}
	defer release()
	tag, err := pool.Exec(ctx, `UPDATE inventory
SET item_name = COALESCE($2, item_name), category_id = COALESCE($3, category_id), updated_at = now()
WHERE id = $1 AND NOT is_deleted`, id, name, categoryID)
	if db.IsForeignKeyViolation(err) {
		return shared.NotFoundf("category %d", *categoryID)
	}
	if err != nil {
		return fmt.Errorf("inventory: update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("inventory item %d", id)
	}
	return nil
}

// SoftDelete flags the item as deleted.
func (r *Repository) SoftDelete(ctx context.Context, tenantDB string, id int64) error {
	pool, release, err := r.pools.Pool(ctx, tenantDB)
	if err != nil {
		return err
	}
	defer release()
	tag, err := pool.Exec(ctx, `UPDATE inventory SET is_deleted = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("inventory: delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("inventory item %d", id)
	}
	return nil
}

// SalesRows joins live items with invoice line sales in [from, to] and linked products' average MRP.
func (r *Repository) SalesRows(ctx context.Context, tenantDB string, from, to time.Time) ([]SalesRow, error) {
	pool, release, err := r.pools.Pool(ctx, tenantDB)
	if err != nil {
		return nil, err
	}
	defer release()
	rows, err := pool.Query(ctx, `WITH sold AS (
    SELECT (it->>'inventory_item_id')::bigint AS inventory_id,
           SUM(COALESCE((it->>'qty')::numeric, 0))    AS qty,
           SUM(COALESCE((it->>'amount')::numeric, 0)) AS amount
    FROM invoices inv
    CROSS JOIN LATERAL jsonb_array_elements(inv.items) it
    WHERE inv.created_at >= $1 AND inv.created_at < $2
      AND jsonb_typeof(it->'inventory_item_id') = 'number'
    GROUP BY 1
), mrp AS (
    SELECT inventory_id, AVG(mrp) AS avg_mrp
    FROM products
    WHERE inventory_id IS NOT NULL
    GROUP BY inventory_id
)
SELECT i.id, i.item_name, i.category_id, COALESCE(c.name, ''), COALESCE(c.cgst, 0), COALESCE(c.sgst, 0),
       i.unit, i.stock_quantity, i.is_deleted, i.created_at, i.updated_at,
       COALESCE(s.qty, 0), COALESCE(s.amount, 0), COALESCE(m.avg_mrp, 0)
FROM inventory i
LEFT JOIN categories c ON c.id = i.category_id
LEFT JOIN sold s ON s.inventory_id = i.id
LEFT JOIN mrp m ON m.inventory_id = i.id
WHERE NOT i.is_deleted
ORDER BY i.id`, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("inventory: sales rows: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SalesRow, error) {
		var sr SalesRow
		it := &sr.Item
		err := row.Scan(&it.ID, &it.Name, &it.CategoryID, &it.CategoryName, &it.CGST, &it.SGST,
			&it.Unit, &it.StockQuantity, &it.IsDeleted, &it.CreatedAt, &it.UpdatedAt,
			&sr.SoldQty, &sr.SoldAmount, &sr.AvgMRP)
		return sr, err
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: scan sales rows: %w", err)
	}
	return out, nil
}

// StockCard lists the newest transactions of an item.
func (r *Repository) StockCard(ctx context.Context, tenantDB string, id int64, limit int) ([]StockTransaction, error) {
	pool, release, err := r.pools.Pool(ctx, tenantDB)
	if err != nil {
		return nil, err
	}
	defer release()
	rows, err := pool.Query(ctx, `SELECT id, inventory_id, batch_id, transaction_type, quantity, unit, balance_after, invoice_id, created_at
FROM stock_transactions WHERE inventory_id = $1 ORDER BY id DESC LIMIT $2`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("inventory: stock card: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanStockTransaction)
	if err != nil {
		return nil, fmt.Errorf("inventory: scan stock card: %w", err)
	}
	return out, nil
}

func scanStockTransaction(row pgx.CollectableRow) (StockTransaction, error) {
	var st StockTransaction
	err := row.Scan(&st.ID, &st.InventoryID, &st.BatchID, &st.Type, &st.Quantity, &st.Unit, &st.BalanceAfter, &st.InvoiceID, &st.CreatedAt)
	return st, err
}

func (r *txRepo) InsertItem(ctx context.Context, item Item) (Item, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory (item_name, category_id, unit, stock_quantity)
VALUES ($1, $2, $3, 0) RETURNING id, stock_quantity, created_at, updated_at`,
		item.Name, item.CategoryID, item.Unit).Scan(&item.ID, &item.StockQuantity, &item.CreatedAt, &item.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return Item{}, shared.NotFoundf("category %d", *item.CategoryID)
	}
	if err != nil {
		return Item{}, fmt.Errorf("inventory: insert item: %w", err)
	}
	return item, nil
}

// GetForUpdate locks a live item row. Deleted items are reported as not found.
func (r *txRepo) GetForUpdate(ctx context.Context, id int64) (Item, error) {
	var item Item
	err := scanItem(r.tx.QueryRow(ctx, selectItem+` WHERE i.id = $1 AND NOT i.is_deleted FOR UPDATE OF i`, id), &item)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, shared.NotFoundf("inventory item %d", id)
	}
	if err != nil {
		return Item{}, fmt.Errorf("inventory: lock item: %w", err)
	}
	return item, nil
}

// AppendStockTransaction records the movement and folds it into inventory.stock_quantity in the
// same transaction.
func (r *txRepo) AppendStockTransaction(ctx context.Context, st StockTransaction) (StockTransaction, error) {
	delta := st.Quantity
	if st.Type == ActionReduce {
		delta = delta.Neg()
	}
	err := r.tx.QueryRow(ctx, `UPDATE inventory SET stock_quantity = stock_quantity + $2, updated_at = now()
WHERE id = $1 RETURNING stock_quantity`, st.InventoryID, delta).Scan(&st.BalanceAfter)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockTransaction{}, shared.NotFoundf("inventory item %d", st.InventoryID)
	}
	if err != nil {
		return StockTransaction{}, fmt.Errorf("inventory: apply stock delta: %w", err)
	}
	err = r.tx.QueryRow(ctx, `INSERT INTO stock_transactions
    (inventory_id, batch_id, transaction_type, quantity, unit, balance_after, invoice_id)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		st.InventoryID, st.BatchID, st.Type, st.Quantity, st.Unit, st.BalanceAfter, st.InvoiceID).Scan(&st.ID, &st.CreatedAt)
	if err != nil {
		return StockTransaction{}, fmt.Errorf("inventory: insert stock transaction: %w", err)
	}
	return st, nil
}
