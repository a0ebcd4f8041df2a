package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/secufusion/iamplane/migrations"
	"github.com/secufusion/iamplane/pkg/config"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/logx"
	"github.com/spf13/cobra"
)

func main() {
	logx.SetDefaultLogger(logx.NewLogger(logx.LoadFromEnv()))

	if err := newRootCmd(context.Background()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(ctx context.Context) *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "iamplane",
		Short:         "Multi-tenant IAM control plane",
		Long:          "iamplane provisions tenants into the identity provider, resolves per-host auth configuration and verifies tenant tokens.",
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			loaded, err := config.Load()
			if err != nil {
				logx.WithError(err).Error("❌ Failed to load configuration")
				return err
			}
			cfg = loaded
			return nil
		},

		RunE: func(_ *cobra.Command, _ []string) error {
			return runLogged(serve(cfg))
		},
	}
	root.SetContext(ctx)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runLogged(serve(cfg))
		},
	}

	root.AddCommand(serveCmd, newMigrateCmd(&cfg), newTenantCmd(&cfg))
	return root
}

func runLogged(err error) error {
	if err != nil {
		logx.WithError(err).Error("❌ Command failed")
	}
	return err
}

// ============================================================================
// migrate
// ============================================================================

func newMigrateCmd(cfg **config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	withDB := func(run func(cmd *cobra.Command, c *config.Config) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return runLogged(run(cmd, *cfg))
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, c *config.Config) error {
				db, err := openDatabase(c.Database)
				if err != nil {
					return err
				}
				defer db.Close()

				n, err := migrations.Up(cmd.Context(), db.DB)
				if err != nil {
					return err
				}
				cmd.Printf("Applied %d migration(s)\n", n)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, c *config.Config) error {
				db, err := openDatabase(c.Database)
				if err != nil {
					return err
				}
				defer db.Close()

				if err := migrations.Down(cmd.Context(), db.DB); err != nil {
					return err
				}
				cmd.Println("Rolled back one migration")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, c *config.Config) error {
				db, err := openDatabase(c.Database)
				if err != nil {
					return err
				}
				defer db.Close()

				states, err := migrations.Status(cmd.Context(), db.DB)
				if err != nil {
					return err
				}
				for _, s := range states {
					mark := "pending"
					if s.Applied {
						mark = "applied"
					}
					cmd.Printf("%05d  %-8s  %s\n", s.Version, mark, s.Source)
				}
				return nil
			}),
		},
	)
	return cmd
}

// ============================================================================
// tenant
// ============================================================================

var errTenantIDRequired = errx.Validation("tenant id is required")

func newTenantCmd(cfg **config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Operate on tenants",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "resume <tenant-id>",
		Short: "Resume a stalled provisioning run",
		Long:  "Resume drives a tenant that is not yet ACTIVE through the remaining provisioning steps. Usage: iamplane tenant resume [tenant id]",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return errTenantIDRequired
			}

			container, err := NewContainer(cmd.Context(), *cfg)
			if err != nil {
				return runLogged(err)
			}
			defer container.Cleanup()

			resp, err := container.IAM.TenantService.ResumeTenant(cmd.Context(), kernel.TenantID(args[0]))
			if err != nil {
				return runLogged(err)
			}

			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	})
	return cmd
}
