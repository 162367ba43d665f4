package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"topup-ledger/internal/auth"
	"topup-ledger/internal/btcpay"
	"topup-ledger/internal/config"
	"topup-ledger/internal/migrations"
	"topup-ledger/internal/rbac"
	"topup-ledger/pkg/logger"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "topupctl",
		Short:         "Operator tooling for the top-up ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(tokenCmd())
	return rootCmd
}

func migrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the embedded schema migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			url, env := databaseURL, "local"
			if url == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				url, env = cfg.PostgresURL(), cfg.App.Env
			}
			log := logger.NewWithWriter(cmd.ErrOrStderr(), env, "topupctl")

			var err error
			switch args[0] {
			case "up":
				err = migrations.Up(url)
			case "down":
				err = migrations.Down(url)
			default:
				return fmt.Errorf("unknown migrate direction %q (want up or down)", args[0])
			}
			if err != nil {
				log.Error("migration failed", "direction", args[0], "err", err)
				return err
			}
			log.Info("migration done", "direction", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", "", "pgx5:// URL; defaults to the DB_* environment")
	return cmd
}

func signCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "sign [file|-]",
		Short: "Print the BTCPay-Sig header value for a webhook body",
		Long: `Sign a webhook body exactly as BTCPay Server would, for replaying
deliveries against a local or staging API:

  topupctl sign body.json
  curl -H "BTCPay-Sig: $(topupctl sign body.json)" --data-binary @body.json .../webhooks/btcpay`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				secret = cfg.BTCPay.WebhookSecret
			}
			v, err := btcpay.NewVerifier(secret)
			if err != nil {
				return err
			}

			var body []byte
			if args[0] == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				body, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), v.Sign(body))
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "webhook secret; defaults to BTCPAY_WEBHOOK_SECRET")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage operator access tokens",
	}

	var (
		operatorID string
		role       string
		ttl        time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access token for the /v1/ops API",
		RunE: func(cmd *cobra.Command, args []string) error {
			role = strings.TrimSpace(role)
			if !rbac.IsKnownRole(role) {
				return fmt.Errorf("unknown role %q (want %s, %s or %s)", role, rbac.RoleAdmin, rbac.RoleFinance, rbac.RoleSupport)
			}
			if operatorID == "" {
				return errors.New("--operator is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			m, err := auth.NewManager(cfg.Auth)
			if err != nil {
				return err
			}
			tok, err := m.Issue(time.Now(), operatorID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	issue.Flags().StringVar(&operatorID, "operator", "", "operator id recorded in the token")
	issue.Flags().StringVar(&role, "role", rbac.RoleSupport, "admin, finance or support")
	issue.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime; defaults to JWT_ACCESS_TTL")

	cmd.AddCommand(issue)
	return cmd
}
