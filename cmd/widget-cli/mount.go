package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vestiva/internal/embed"
	"vestiva/internal/host"
	"vestiva/pkg/bus"
	"vestiva/pkg/logger"
)

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Mount the bundle widget headlessly and print what it renders",
	RunE:  runMount,
}

func init() {
	mountCmd.Flags().String("view", string(embed.ViewDashboard), "dashboard or account")
	mountCmd.Flags().String("account-id", "", "Account to show in the account view")
	mountCmd.Flags().String("language", string(embed.LanguageES), "en, es or pt")
	mountCmd.Flags().String("theme", string(embed.ThemeLight), "light or dark")
	mountCmd.Flags().StringSlice("sections", nil, "Enabled sections (all when empty)")
}

func runMount(cmd *cobra.Command, args []string) error {
	clientID, err := requireFlag(cmd, "client-id")
	if err != nil {
		return err
	}
	secret, err := requireFlag(cmd, "client-token")
	if err != nil {
		return err
	}
	timeout, _ := cmd.Root().PersistentFlags().GetDuration("timeout")
	sections, _ := cmd.Flags().GetStringSlice("sections")

	log := logger.New("production")
	loop := bus.NewLoop()
	loop.OnPanic = func(v any) { log.Errorw("embed task panicked", "panic", v) }

	api := getClient(cmd)
	page := host.NewPage(api.Origin(), loop)
	page.AddContainer("vestiva-widget")

	cfg := embed.Defaults()
	cfg.ContainerID = "vestiva-widget"
	cfg.ClientID = clientID
	cfg.ClientToken = secret
	cfg.View = embed.View(flagString(cmd, "view"))
	cfg.AccountID = flagString(cmd, "account-id")
	cfg.Language = embed.Language(flagString(cmd, "language"))
	cfg.Theme = embed.Theme(flagString(cmd, "theme"))
	cfg.EnabledSections = sections

	out := cmd.OutOrStdout()
	renderer := embed.RendererFunc(func(_ context.Context, c embed.Config) (int, error) {
		lines := []string{
			fmt.Sprintf("view=%s theme=%s language=%s", c.View, c.Theme, c.Language),
		}
		if c.AccountID != "" {
			lines = append(lines, "account="+c.AccountID)
		}
		if c.EnabledSections != nil {
			lines = append(lines, "sections="+strings.Join(c.EnabledSections, ","))
		}
		fmt.Fprintln(out, strings.Join(lines, "\n"))
		return len(lines), nil
	})

	inst := host.Create(cmd.Context(), page, host.Options{
		Config: cfg,
		Log:    log,
	}, host.BundleStrategy{API: api, Timeout: timeout, Renderer: renderer})
	defer inst.Destroy()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout+timeout)
	defer cancel()
	state, err := inst.Wait(ctx)
	if err != nil {
		return err
	}
	if state != host.StateReady {
		if e := inst.Err(); e != nil {
			return e
		}
		return fmt.Errorf("widget ended in state %s", state)
	}
	return printJSON(cmd, map[string]any{"instance": inst.ID(), "state": state.String()})
}
