package main

import (
	"errors"
	"fmt"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/services"
	"sprinta/pkg/config"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <userId>",
	Short: "Print a signed access token using the configured secret",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

var tokenRole string

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(domain.RoleUser), "token role: user or service")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not set")
	}

	role := domain.UserRole(tokenRole)
	if role != domain.RoleUser && role != domain.RoleService {
		return fmt.Errorf("unknown role %q", tokenRole)
	}

	auth := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	token, err := auth.GenerateToken(domain.UserID(args[0]), role)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
