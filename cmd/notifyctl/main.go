package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sprinta/pkg/client"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "notifyctl",
	Short:         "Send, list and watch Sprinta notifications",
	SilenceErrors: true,
	SilenceUsage:  true,
}

var (
	serverURL string
	authToken string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("SPRINTA_URL", "http://localhost:8080"), "notification service base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("SPRINTA_TOKEN"), "bearer token")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *client.Client {
	c := client.New(serverURL)
	if authToken != "" {
		c.SetToken(authToken)
	}
	return c
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
