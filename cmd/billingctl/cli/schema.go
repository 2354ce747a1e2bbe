package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rightupnext/billing/internal/app"
	"github.com/rightupnext/billing/internal/platform/db"
	"github.com/rightupnext/billing/internal/tenant"
)

func newSchemaCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage database schemas",
	}
	apply := &cobra.Command{
		Use:   "apply [tenant-db...]",
		Short: "Apply the master schema and the tenant schema of the named databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			for _, name := range args {
				if !tenant.ValidDBName(name) {
					return fmt.Errorf("invalid tenant database %q", name)
				}
			}

			master, err := db.Open(ctx, deps.Config.MasterPGDSN, db.Options{})
			if err != nil {
				return err
			}
			defer master.Close()
			if err := tenant.ApplyMasterSchema(ctx, master); err != nil {
				return err
			}
			deps.Logger.Info("master schema applied")

			open := app.TenantOpener(deps.Config)
			for _, name := range args {
				pool, err := open(ctx, name)
				if err != nil {
					return err
				}
				err = tenant.ApplyTenantSchema(ctx, pool)
				pool.Close()
				if err != nil {
					return err
				}
				deps.Logger.Info("tenant schema applied", slog.String("tenant", name))
			}
			return nil
		},
	}
	cmd.AddCommand(apply)
	return cmd
}
