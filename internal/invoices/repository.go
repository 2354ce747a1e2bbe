package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rightupnext/billing/internal/inventory"
	"github.com/rightupnext/billing/internal/platform/db"
	"github.com/rightupnext/billing/internal/shared"
)

// Repository persists invoices in the tenant databases. The customer, items, charges and
// computedtotals documents are stored as jsonb.
type Repository struct {
	pools db.PoolSource
}

// NewRepository constructs Repository.
func NewRepository(pools db.PoolSource) *Repository {
	return &Repository{pools: pools}
}

type txRepo struct {
	inventory.Ledger
	tx pgx.Tx
}

func (r *Repository) conn(ctx context.Context, tenantDB string) (db.DBTX, func(), error) {
	pool, release, err := r.pools.Pool(ctx, tenantDB)
	if err != nil {
		return nil, nil, err
	}
	return pool, release, nil
}

// WithTx executes the callback inside a tenant transaction whose ledger shares the same tx.
func (r *Repository) WithTx(ctx context.Context, tenantDB string, fn func(context.Context, TxRepository) error) error {
	pool, release, err := r.pools.Pool(ctx, tenantDB)
	if err != nil {
		return err
	}
	defer release()
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{Ledger: inventory.NewTxRepository(tx), tx: tx})
	})
}

const selectInvoice = `SELECT id, invoice_no, customer, items, charges, computedtotals, created_at, updated_at FROM invoices`

type documents struct {
	customer, items, charges, totals []byte
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv  Invoice
		docs documents
	)
	if err := row.Scan(&inv.ID, &inv.InvoiceNo, &docs.customer, &docs.items, &docs.charges, &docs.totals,
		&inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return Invoice{}, err
	}
	if err := decodeDocuments(&inv, docs); err != nil {
		return Invoice{}, fmt.Errorf("invoice %d: %w", inv.ID, err)
	}
	return inv, nil
}

func decodeDocuments(inv *Invoice, docs documents) error {
	if err := json.Unmarshal(docs.customer, &inv.Customer); err != nil {
		return fmt.Errorf("decode customer: %w", err)
	}
	if err := json.Unmarshal(docs.items, &inv.Items); err != nil {
		return fmt.Errorf("decode items: %w", err)
	}
	if err := json.Unmarshal(docs.charges, &inv.Charges); err != nil {
		return fmt.Errorf("decode charges: %w", err)
	}
	if err := json.Unmarshal(docs.totals, &inv.Totals); err != nil {
		return fmt.Errorf("decode computedtotals: %w", err)
	}
	if inv.Totals.PaymentHistory == nil {
		inv.Totals.PaymentHistory = []Payment{}
	}
	return nil
}

func encodeDocuments(inv Invoice) (documents, error) {
	var (
		docs documents
		err  error
	)
	if docs.customer, err = json.Marshal(inv.Customer); err != nil {
		return documents{}, err
	}
	items := inv.Items
	if items == nil {
		items = []LineItem{}
	}
	if docs.items, err = json.Marshal(items); err != nil {
		return documents{}, err
	}
	if docs.charges, err = json.Marshal(inv.Charges); err != nil {
		return documents{}, err
	}
	if docs.totals, err = json.Marshal(inv.Totals); err != nil {
		return documents{}, err
	}
	return docs, nil
}

// Get loads one invoice.
func (r *Repository) Get(ctx context.Context, tenantDB string, id int64) (Invoice, error) {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return Invoice{}, err
	}
	defer release()
	inv, err := scanInvoice(q.QueryRow(ctx, selectInvoice+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NotFoundf("invoice %d", id)
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: get: %w", err)
	}
	return inv, nil
}

// List pages invoices, newest first.
func (r *Repository) List(ctx context.Context, tenantDB string, page shared.PageRequest) ([]Invoice, int, error) {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return nil, 0, err
	}
	defer release()
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("invoices: count: %w", err)
	}
	rows, err := q.Query(ctx, selectInvoice+` ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("invoices: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Invoice, error) {
		return scanInvoice(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("invoices: scan list: %w", err)
	}
	return out, total, nil
}

// Delete removes an invoice. Stock transactions booked for it keep their invoice id.
func (r *Repository) Delete(ctx context.Context, tenantDB string, id int64) error {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return err
	}
	defer release()
	tag, err := q.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("invoices: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("invoice %d", id)
	}
	return nil
}

// InvoiceNumbers lists the numbers carrying the prefix of year.
func (r *Repository) InvoiceNumbers(ctx context.Context, tenantDB string, year int) ([]string, error) {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return nil, err
	}
	defer release()
	return invoiceNumbers(ctx, q, year)
}

func invoiceNumbers(ctx context.Context, q db.DBTX, year int) ([]string, error) {
	rows, err := q.Query(ctx, `SELECT invoice_no FROM invoices WHERE invoice_no ILIKE $1`, NumberPrefix(year)+"%")
	if err != nil {
		return nil, fmt.Errorf("invoices: numbers: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("invoices: scan numbers: %w", err)
	}
	return out, nil
}

// SequenceValue reads the counter of year; a missing counter is zero.
func (r *Repository) SequenceValue(ctx context.Context, tenantDB string, year int) (int, error) {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return 0, err
	}
	defer release()
	var seq int
	err = q.QueryRow(ctx, `SELECT last_seq FROM invoice_sequences WHERE year = $1`, year).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("invoices: sequence: %w", err)
	}
	return seq, nil
}

// InvoicesBetween returns invoices created on the days from through to, inclusive.
func (r *Repository) InvoicesBetween(ctx context.Context, tenantDB string, from, to time.Time) ([]Invoice, error) {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return nil, err
	}
	defer release()
	rows, err := q.Query(ctx, selectInvoice+` WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at, id`,
		from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("invoices: between: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Invoice, error) {
		return scanInvoice(row)
	})
	if err != nil {
		return nil, fmt.Errorf("invoices: scan between: %w", err)
	}
	return out, nil
}

// CustomerCount counts live customers.
func (r *Repository) CustomerCount(ctx context.Context, tenantDB string) (int, error) {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return 0, err
	}
	defer release()
	var n int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE NOT is_deleted`).Scan(&n); err != nil {
		return 0, fmt.Errorf("invoices: customer count: %w", err)
	}
	return n, nil
}

// NextSequence increments and returns the counter of year. A year without a counter row is seeded
// from the numbers already issued, so databases that predate the counter continue their series.
func (r *txRepo) NextSequence(ctx context.Context, year int) (int, error) {
	var seq int
	err := r.tx.QueryRow(ctx, `SELECT last_seq FROM invoice_sequences WHERE year = $1 FOR UPDATE`, year).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		numbers, nerr := invoiceNumbers(ctx, r.tx, year)
		if nerr != nil {
			return 0, nerr
		}
		if _, err := r.tx.Exec(ctx, `INSERT INTO invoice_sequences (year, last_seq) VALUES ($1, $2)
ON CONFLICT (year) DO NOTHING`, year, MaxSequence(year, numbers)); err != nil {
			return 0, fmt.Errorf("invoices: seed sequence: %w", err)
		}
		err = r.tx.QueryRow(ctx, `SELECT last_seq FROM invoice_sequences WHERE year = $1 FOR UPDATE`, year).Scan(&seq)
	}
	if err != nil {
		return 0, fmt.Errorf("invoices: lock sequence: %w", err)
	}
	seq++
	if _, err := r.tx.Exec(ctx, `UPDATE invoice_sequences SET last_seq = $2 WHERE year = $1`, year, seq); err != nil {
		return 0, fmt.Errorf("invoices: advance sequence: %w", err)
	}
	return seq, nil
}

// RaiseSequence lifts the counter of year to at least seq.
func (r *txRepo) RaiseSequence(ctx context.Context, year, seq int) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO invoice_sequences (year, last_seq) VALUES ($1, $2)
ON CONFLICT (year) DO UPDATE SET last_seq = GREATEST(invoice_sequences.last_seq, EXCLUDED.last_seq)`, year, seq)
	if err != nil {
		return fmt.Errorf("invoices: raise sequence: %w", err)
	}
	return nil
}

func (r *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	docs, err := encodeDocuments(inv)
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: encode: %w", err)
	}
	err = r.tx.QueryRow(ctx, `INSERT INTO invoices (invoice_no, customer, items, charges, computedtotals)
VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`,
		inv.InvoiceNo, docs.customer, docs.items, docs.charges, docs.totals).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return Invoice{}, fmt.Errorf("invoice number %q: %w", inv.InvoiceNo, shared.ErrDuplicate)
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: insert: %w", err)
	}
	return inv, nil
}

// InvoiceForUpdate locks the invoice row until the transaction ends.
func (r *txRepo) InvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.tx.QueryRow(ctx, selectInvoice+` WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NotFoundf("invoice %d", id)
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: lock: %w", err)
	}
	return inv, nil
}

func (r *txRepo) SaveInvoice(ctx context.Context, inv Invoice) error {
	docs, err := encodeDocuments(inv)
	if err != nil {
		return fmt.Errorf("invoices: encode: %w", err)
	}
	tag, err := r.tx.Exec(ctx, `UPDATE invoices
SET invoice_no = $2, customer = $3, items = $4, charges = $5, computedtotals = $6, updated_at = now()
WHERE id = $1`, inv.ID, inv.InvoiceNo, docs.customer, docs.items, docs.charges, docs.totals)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("invoice number %q: %w", inv.InvoiceNo, shared.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("invoices: save: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("invoice %d", inv.ID)
	}
	return nil
}

func (r *txRepo) SaveTotals(ctx context.Context, id int64, totals Totals) error {
	doc, err := json.Marshal(totals)
	if err != nil {
		return fmt.Errorf("invoices: encode totals: %w", err)
	}
	tag, err := r.tx.Exec(ctx, `UPDATE invoices SET computedtotals = $2, updated_at = now() WHERE id = $1`, id, doc)
	if err != nil {
		return fmt.Errorf("invoices: save totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("invoice %d", id)
	}
	return nil
}
