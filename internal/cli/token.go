package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/idkosilov/furniture/internal/auth"
)

var tokenRole string

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue an API token",
	Long: `Signs a bearer token for the HTTP API with JWT_SECRET. Roles:
warehouse (batches), sales (allocations) and admin (everything).`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleSales, "role granted by the token")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateAuth(); err != nil {
		return err
	}

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry.Duration)
	token, expiresAt, err := jwtService.GenerateToken(args[0], tokenRole)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	cmd.Println(token)
	if verbose {
		cmd.PrintErrf("expires at %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}
