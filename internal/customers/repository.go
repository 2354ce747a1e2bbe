package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/rightupnext/billing/internal/platform/db"
	"github.com/rightupnext/billing/internal/shared"
)

// field is one column assignment of a partial update.
type field struct {
	column string
	value  any
}

type Repository interface {
	Get(ctx context.Context, tenantDB string, id int64) (*Customer, error)
	List(ctx context.Context, tenantDB string, req ListCustomersRequest) ([]Customer, int, error)
	Create(ctx context.Context, tenantDB string, customer Customer) (int64, error)
	Update(ctx context.Context, tenantDB string, id int64, updates []field) error
	SoftDelete(ctx context.Context, tenantDB string, id int64) error
}

type repository struct {
	pools db.PoolSource
}

func NewRepository(pools db.PoolSource) Repository {
	return &repository{pools: pools}
}

func (r *repository) conn(ctx context.Context, tenantDB string) (db.DBTX, func(), error) {
	pool, release, err := r.pools.Pool(ctx, tenantDB)
	if err != nil {
		return nil, nil, err
	}
	return pool, release, nil
}

const customerColumns = `id, name, phone, email, address, gst_number, is_deleted, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.GSTNumber, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *repository) Get(ctx context.Context, tenantDB string, id int64) (*Customer, error) {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return nil, err
	}
	defer release()
	c, err := scanCustomer(q.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NotFoundf("customer %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

func (r *repository) List(ctx context.Context, tenantDB string, req ListCustomersRequest) ([]Customer, int, error) {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return nil, 0, err
	}
	defer release()
	conditions := []string{"NOT is_deleted"}
	var args []any
	argPos := 1
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR phone ILIKE $%d OR gst_number ILIKE $%d)", argPos, argPos, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM customers "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM customers %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		customerColumns, where, argPos, argPos+1)
	args = append(args, req.Limit, req.offset())
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	customers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Customer, error) {
		return scanCustomer(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	return customers, total, nil
}

func (r *repository) Create(ctx context.Context, tenantDB string, c Customer) (int64, error) {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return 0, err
	}
	defer release()
	var id int64
	err = q.QueryRow(ctx, `INSERT INTO customers (name, phone, email, address, gst_number)
VALUES ($1, $2, $3, $4, $5) RETURNING id`, c.Name, c.Phone, c.Email, c.Address, c.GSTNumber).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, tenantDB string, id int64, updates []field) error {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return err
	}
	defer release()
	query := "UPDATE customers SET updated_at = now()"
	args := make([]any, 0, len(updates)+1)
	for i, f := range updates {
		query += fmt.Sprintf(", %s = $%d", f.column, i+1)
		args = append(args, f.value)
	}
	query += fmt.Sprintf(" WHERE id = $%d AND NOT is_deleted", len(updates)+1)
	args = append(args, id)

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("customer %d", id)
	}
	return nil
}

func (r *repository) SoftDelete(ctx context.Context, tenantDB string, id int64) error {
	q, release, err := r.conn(ctx, tenantDB)
	if err != nil {
		return err
	}
	defer release()
	tag, err := q.Exec(ctx, `UPDATE customers SET is_deleted = TRUE, updated_at = now() WHERE id = $1 AND NOT is_deleted`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("customer %d", id)
	}
	return nil
}
