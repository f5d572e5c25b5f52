// Package main implements widget-cli, a command-line client for widget-service.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vestiva/pkg/widgetclient"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "widget-cli",
	Short:        "Talk to a vestiva widget-service",
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(manifestCmd, tokenCmd, domainsCmd, handshakeCmd, sessionCmd, mountCmd)

	rootCmd.PersistentFlags().String("server", envOr("VESTIVA_SERVER", "http://localhost:3000"), "widget-service base URL")
	rootCmd.PersistentFlags().String("origin", envOr("VESTIVA_ORIGIN", "http://localhost:5173"), "Origin header sent with every request")
	rootCmd.PersistentFlags().String("client-id", os.Getenv("VESTIVA_CLIENT_ID"), "Client ID")
	rootCmd.PersistentFlags().String("client-token", os.Getenv("VESTIVA_CLIENT_TOKEN"), "Client secret token")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "Request timeout")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getClient builds an API client from the root flags.
func getClient(cmd *cobra.Command) *widgetclient.Client {
	server, _ := cmd.Root().PersistentFlags().GetString("server")
	origin, _ := cmd.Root().PersistentFlags().GetString("origin")
	return widgetclient.New(strings.TrimRight(server, "/"), origin)
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func requireFlag(cmd *cobra.Command, name string) (string, error) {
	v := flagString(cmd, name)
	if v == "" {
		return "", fmt.Errorf("--%s is required", name)
	}
	return v, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
