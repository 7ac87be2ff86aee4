package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"telecom-inbound/internal/audit"
	"telecom-inbound/internal/auth"
	"telecom-inbound/internal/config"
	"telecom-inbound/internal/dialogue"
	"telecom-inbound/internal/rbac"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Deactivate expired conversation states once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openPostgres(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			m := dialogue.NewMachine(dialogue.NewPostgresStore(db), audit.NewService(audit.NewPostgresRepo(db)))
			n, err := m.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("sweep finished", "count", n)
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

// newTokenCmd mints a service token offline. It is how the first admin
// token is created; later ones can come from POST /v1/auth/tokens.
func newTokenCmd() *cobra.Command {
	var subject, accountID, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed service token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.AuthConfig{
				JWTSecret:      os.Getenv("JWT_SECRET"),
				JWTIssuer:      strings.TrimSpace(os.Getenv("JWT_ISSUER")),
				JWTAudience:    strings.TrimSpace(os.Getenv("JWT_AUDIENCE")),
				AccessTokenTTL: ttl,
			}
			if role != rbac.RoleAdmin && accountID == "" {
				return fmt.Errorf("--account is required for role %q", role)
			}
			m, err := auth.NewManager(cfg)
			if err != nil {
				return err
			}
			tok, err := m.Issue(time.Now(), subject, accountID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject (service or operator name)")
	cmd.Flags().StringVar(&accountID, "account", "", "account scope; omit only for admin")
	cmd.Flags().StringVar(&role, "role", rbac.RoleService, "service, operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
