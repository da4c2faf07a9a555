package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/harunnryd/sekimori/internal/adapter"
	"github.com/harunnryd/sekimori/internal/agent"
	"github.com/harunnryd/sekimori/internal/approval"
	"github.com/harunnryd/sekimori/internal/backup"
	"github.com/harunnryd/sekimori/internal/config"
	"github.com/harunnryd/sekimori/internal/daemon"
	"github.com/harunnryd/sekimori/internal/daemon/components"
	"github.com/harunnryd/sekimori/internal/gateway"
	"github.com/harunnryd/sekimori/internal/ingress"
	"github.com/harunnryd/sekimori/internal/permission"
	"github.com/harunnryd/sekimori/internal/session"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the approval gateway daemon",
	Long:  `Starts the gateway as a long-running service: chat adapters in, agent runs out, every gated tool call routed through the configured trust mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		forceClean, _ := cmd.Flags().GetBool("force-clean-locks")

		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		daemonMgr, err := daemon.NewDaemon(cfg)
		if err != nil {
			return fmt.Errorf("failed to create daemon manager: %w", err)
		}
		daemonMgr.SetForceCleanup(forceClean)
		stateDir := daemonMgr.StateDir()

		modes, err := permission.NewStore(stateDir)
		if err != nil {
			return fmt.Errorf("open permission store: %w", err)
		}

		mailbox, err := approval.NewMailbox(stateDir)
		if err != nil {
			return fmt.Errorf("open mailbox: %w", err)
		}

		sessions := session.NewStore()

		backupMgr, err := backup.NewManager(sessions, modes, stateDir, cfg.Backup)
		if err != nil {
			return fmt.Errorf("configure backup manager: %w", err)
		}

		runner, err := agent.NewRunner(cfg.Agent)
		if err != nil {
			return fmt.Errorf("configure agent runner: %w", err)
		}

		approvalTimeout, err := config.DurationOrDefault(cfg.Gateway.ApprovalTimeout, config.DefaultGatewayApprovalTimeout)
		if err != nil {
			return fmt.Errorf("parse approval timeout: %w", err)
		}
		pollInterval, err := config.DurationOrDefault(cfg.Gateway.PollInterval, config.DefaultGatewayPollInterval)
		if err != nil {
			return fmt.Errorf("parse poll interval: %w", err)
		}

		// Transports and the router know each other only through the
		// event-handler indirection below.
		var router *ingress.Router
		eventHandler := func(evtCtx context.Context, source, eventType, channelID, content string, metadata map[string]string) error {
			if router == nil {
				return fmt.Errorf("router not initialized")
			}
			return router.HandleEvent(evtCtx, source, eventType, channelID, content, metadata)
		}

		var adapters []adapter.InputAdapter
		transports := adapter.NewRegistry()

		if cfg.Adapters.Slack.Enabled {
			port := cfg.Adapters.Slack.Port
			if port == 0 {
				port = cfg.Server.Port
			}
			slackAdapter := adapter.NewSlackAdapter(port, cfg.Adapters.Slack.SigningSecret, cfg.Adapters.Slack.BotToken, eventHandler)
			adapters = append(adapters, slackAdapter)
			transports.Register(slackAdapter)
		}
		if cfg.Adapters.Telegram.Enabled {
			telegramAdapter := adapter.NewTelegramAdapter(cfg.Adapters.Telegram.BotToken, eventHandler, cfg.Adapters.Telegram.UpdateTimeout)
			adapters = append(adapters, telegramAdapter)
			transports.Register(telegramAdapter)
		}
		if len(adapters) == 0 {
			return fmt.Errorf("no chat adapter enabled, set adapters.slack.enabled or adapters.telegram.enabled")
		}

		coordinator, err := approval.NewCoordinator(transports, mailbox, stateDir, approvalTimeout, pollInterval)
		if err != nil {
			return fmt.Errorf("open approval coordinator: %w", err)
		}

		gw := gateway.New(modes, coordinator, transports, sessions, approvalTimeout)

		router = ingress.NewRouter(modes, sessions, mailbox, gw, runner, transports)

		daemonMgr.AddComponent(components.NewBackupComponent(backupMgr))
		daemonMgr.AddComponent(components.NewRouterComponent(router))

		reaper, err := components.NewReaperComponent(sessions, cfg.Session)
		if err != nil {
			return fmt.Errorf("configure session reaper: %w", err)
		}
		daemonMgr.AddComponent(reaper)
		daemonMgr.AddComponent(components.NewAdaptersComponent(adapters...))

		slog.Info("Sekimori daemon starting up...", "adapters", len(adapters), "approval_timeout", approvalTimeout)
		err = daemonMgr.Start(context.Background())
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("Sekimori daemon stopped gracefully")
				return nil
			}
			return fmt.Errorf("daemon failed: %w", err)
		}

		slog.Info("Sekimori daemon stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().Bool("force-clean-locks", false, "Force cleanup of stale lock files (default: warn-only)")
	daemonCmd.Flags().String("gateway.approval_timeout", config.DefaultGatewayApprovalTimeout, "how long an approval prompt waits before denying")
}
