package main

import (
	"context"

	"github.com/spf13/cobra"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Print the loader manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		m, err := getClient(cmd).Manifest(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, m)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue and validate widget tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a widget token for --client-id at --origin",
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, err := requireFlag(cmd, "client-id")
		if err != nil {
			return err
		}
		perms, _ := cmd.Flags().GetStringSlice("permissions")
		ctx, cancel := commandContext(cmd)
		defer cancel()
		tok, err := getClient(cmd).IssueToken(ctx, clientID, perms)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]string{"token": tok})
	},
}

var tokenValidateCmd = &cobra.Command{
	Use:   "validate <token>",
	Short: "Validate a widget token against --origin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		res, err := getClient(cmd).ValidateToken(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "Inspect domain authorization",
}

var domainsCheckCmd = &cobra.Command{
	Use:   "check <domain>",
	Short: "Check whether a domain is authorized for --client-id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, err := requireFlag(cmd, "client-id")
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		ok, err := getClient(cmd).CheckDomain(ctx, args[0], clientID)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"domain": args[0], "isValid": ok})
	},
}

var handshakeCmd = &cobra.Command{
	Use:   "handshake",
	Short: "Run the bundle handshake (validate-domain then auth)",
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, err := requireFlag(cmd, "client-id")
		if err != nil {
			return err
		}
		secret, err := requireFlag(cmd, "client-token")
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		c := getClient(cmd)
		valid, err := c.ValidateDomain(ctx, clientID, secret)
		if err != nil {
			return err
		}
		out := map[string]any{"origin": c.Origin(), "valid": valid}
		if valid {
			tok, err := c.Authenticate(ctx, clientID, secret)
			if err != nil {
				return err
			}
			out["token"] = tok
		}
		return printJSON(cmd, out)
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session <token>",
	Short: "Show the session a widget token grants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		s, err := getClient(cmd).Session(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, s)
	},
}

func init() {
	tokenCmd.AddCommand(tokenIssueCmd, tokenValidateCmd)
	domainsCmd.AddCommand(domainsCheckCmd)

	tokenIssueCmd.Flags().StringSlice("permissions", nil, "Permissions to embed in the token")
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Root().PersistentFlags().GetDuration("timeout")
	return context.WithTimeout(cmd.Context(), timeout)
}
