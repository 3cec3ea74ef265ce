package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/agencyops/internal/audit"
	"github.com/railzwaylabs/agencyops/internal/authorization"
	"github.com/railzwaylabs/agencyops/internal/bootstrap"
	"github.com/railzwaylabs/agencyops/internal/cascade"
	"github.com/railzwaylabs/agencyops/internal/catalog"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/railzwaylabs/agencyops/internal/clock"
	"github.com/railzwaylabs/agencyops/internal/config"
	"github.com/railzwaylabs/agencyops/internal/contract"
	"github.com/railzwaylabs/agencyops/internal/installment"
	"github.com/railzwaylabs/agencyops/internal/migration"
	"github.com/railzwaylabs/agencyops/internal/observability"
	"github.com/railzwaylabs/agencyops/internal/redis"
	"github.com/railzwaylabs/agencyops/internal/seed"
	"github.com/railzwaylabs/agencyops/internal/server"
	"github.com/railzwaylabs/agencyops/internal/subscription"
	"github.com/railzwaylabs/agencyops/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "agencyops",
		Short:   "Contract and subscription billing engine",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newSeedCmd(), newServeCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and activate schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(
				db.Module,
				migration.Module,
			)
		},
	}
}

func newSeedCmd() *cobra.Command {
	var orgID int64
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the default plan and service catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(
				db.Module,
				catalog.Module,
				fx.Invoke(func(lc fx.Lifecycle, conn *gorm.DB, repo catalogdomain.Repository, node *snowflake.Node, cfg config.Config, log *zap.Logger) {
					seeder := seed.NewSeeder(conn, repo, node, log, cfg.Billing.DefaultCurrency)
					target := orgID
					if target == 0 {
						target = cfg.DefaultOrgID
					}
					lc.Append(fx.Hook{
						OnStart: func(ctx context.Context) error {
							_, err := seeder.EnsureCatalog(ctx, snowflake.ID(target), seed.DefaultCatalog)
							return err
						},
					})
				}),
			)
		},
	}
	cmd.Flags().Int64Var(&orgID, "org-id", 0, "organization to seed (defaults to default_org_id)")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

// runOnce starts an app for its start hooks and stops it right away.
func runOnce(opts ...fx.Option) error {
	app := fx.New(append([]fx.Option{
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
	}, opts...)...)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(context.Background())
}

func runServe() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		bootstrap.Module,
		audit.Module,
		authorization.Module,
		catalog.Module,
		contract.Module,
		subscription.Module,
		installment.Module,
		cascade.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() (*snowflake.Node, error) {
	nodeID := int64(1)
	if raw := strings.TrimSpace(os.Getenv("AGENCY_NODE_ID")); raw != "" {
		if _, err := fmt.Sscan(raw, &nodeID); err != nil {
			return nil, fmt.Errorf("invalid AGENCY_NODE_ID %q: %w", raw, err)
		}
	}
	return snowflake.NewNode(nodeID)
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
