package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/adapters/persistence/repositories"
	"alumni-ledger/internal/config"
	"alumni-ledger/internal/core/services"
	"alumni-ledger/internal/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// env holds what every subcommand needs once configuration is loaded
type env struct {
	cfg *config.Config
	db  *gorm.DB
	log *zap.Logger
}

func open() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	db, err := config.ConnectDatabase(cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, db: db, log: log}, nil
}

func (e *env) close() {
	_ = config.CloseDatabase(e.db)
	_ = e.log.Sync()
}

func (e *env) authService() *services.AuthService {
	return services.NewAuthService(
		repositories.NewTransactor(e.db),
		repositories.NewUserRepository(e.db),
		repositories.NewRefreshTokenRepository(e.db),
		repositories.NewMemberRepository(e.db),
		e.cfg.JWT,
		e.log,
	)
}

func (e *env) reportService() *services.ReportService {
	return services.NewReportService(
		repositories.NewReportRepository(e.db),
		repositories.NewDueRepository(e.db),
		repositories.NewLoanRepository(e.db),
		repositories.NewPaymentRepository(e.db),
		repositories.NewMemberRepository(e.db),
		e.log,
	)
}

// withEnv opens the database for the duration of one command
func withEnv(fn func(ctx context.Context, e *env, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := open()
		if err != nil {
			return err
		}
		defer e.close()
		return fn(cmd.Context(), e, args)
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Maintenance commands for the alumni ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newSuperAdminCommand())
	rootCmd.AddCommand(newReportCommand())
	rootCmd.AddCommand(newCleanupCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: withEnv(func(ctx context.Context, e *env, _ []string) error {
			if err := models.AutoMigrate(e.db.WithContext(ctx)); err != nil {
				return err
			}
			fmt.Println("migration completed")
			return nil
		}),
	}
}

func newSuperAdminCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create-superadmin",
		Short: "Create a superadmin, or promote an existing account",
		Long: `Create a superadmin account with the given credentials.

If an account with the email exists it is promoted and its password is left unchanged.
Nothing happens when a superadmin already exists.`,
		RunE: withEnv(func(ctx context.Context, e *env, _ []string) error {
			created, err := e.authService().EnsureSuperAdmin(ctx, email, password)
			if err != nil {
				return err
			}
			if !created {
				fmt.Println("a superadmin already exists, nothing to do")
				return nil
			}
			fmt.Printf("superadmin %s ready\n", email)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newReportCommand() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "monthly-report",
		Short: "Store the financial summary for a calendar month",
		Long: `Generate and store a financial summary report.

Without --month the previous calendar month is used, like the scheduled job.

Example:
  ledgerctl monthly-report --month 2025-02`,
		RunE: withEnv(func(ctx context.Context, e *env, _ []string) error {
			now := time.Now().UTC()
			if month != "" {
				start, err := time.Parse("2006-01", month)
				if err != nil {
					return fmt.Errorf("month must look like 2025-02: %w", err)
				}
				// the report covers the month before now
				now = start.AddDate(0, 1, 0)
			}

			report, err := e.reportService().GenerateMonthly(ctx, now)
			if err != nil {
				return err
			}
			fmt.Printf("report %s stored: %s\n", report.ID, report.Title)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&month, "month", "m", "", "Month to summarize, as YYYY-MM")
	return cmd
}

func newCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-tokens",
		Short: "Delete expired refresh tokens",
		RunE: withEnv(func(ctx context.Context, e *env, _ []string) error {
			n, err := e.authService().CleanupExpiredTokens(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%d expired tokens deleted\n", n)
			return nil
		}),
	}
}
