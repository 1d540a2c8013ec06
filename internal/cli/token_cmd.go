package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aashu-1911/sutra-backend/internal/models"
	"github.com/Aashu-1911/sutra-backend/internal/service"
)

func newTokenCmd(app *App) *cobra.Command {
	var (
		role    string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := models.UserRole(strings.ToUpper(role))
			if !r.Valid() {
				return fmt.Errorf("unknown role %q (want ADMIN, COORDINATOR or VIEWER)", role)
			}
			if ttl <= 0 {
				ttl = app.Config.Auth.Expiration
			}
			tokens := service.NewTokenService(service.TokenConfig{Secret: app.Config.Auth.Secret, Expiry: ttl})
			token, expiresAt, err := tokens.Issue(subject, r)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "role=%s subject=%s expires=%s\n", r, subject, expiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "Role claim: ADMIN, COORDINATOR or VIEWER")
	cmd.Flags().StringVar(&subject, "subject", "cli", "Subject (user id) claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default JWT_EXPIRATION)")
	return cmd
}
