package tenant

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/rightupnext/billing/internal/platform/db"
)

var (
	//go:embed schema/master.sql
	masterSchema string
	//go:embed schema/tenant.sql
	tenantSchema string
)

// ApplyMasterSchema creates the master tables when missing.
func ApplyMasterSchema(ctx context.Context, conn db.DBTX) error {
	if _, err := conn.Exec(ctx, masterSchema); err != nil {
		return fmt.Errorf("tenant: apply master schema: %w", err)
	}
	return nil
}

// ApplyTenantSchema creates the per-tenant tables when missing.
func ApplyTenantSchema(ctx context.Context, conn db.DBTX) error {
	if _, err := conn.Exec(ctx, tenantSchema); err != nil {
		return fmt.Errorf("tenant: apply tenant schema: %w", err)
	}
	return nil
}
