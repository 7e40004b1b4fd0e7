package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/config"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/discord"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/game"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/handler"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/logger"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/middleware"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/obs"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/service"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const gameQueueSize = 256

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge: HTTP API, plugin socket and Discord bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := commonRun(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return serveRun(cmd.Context(), cfg, log)
		},
	}
}

func serveRun(parent context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(reg)

	// Game side
	hub := game.NewHub(gameQueueSize, logger.WithComponent(log, "game"), metrics)
	defer hub.Close()

	// Discord side
	botLog := logger.WithComponent(log, "discord-bot")
	var (
		session *discordgo.Session
		roles   *discord.Roles
		chat    service.ChatActions = discord.Offline{}
	)
	if cfg.Discord.Token != "" {
		session, err = discord.NewSession(cfg.Discord.Token)
		if err != nil {
			return err
		}
		roles = discord.NewRoles(session, cfg.Discord.GuildID, botLog)
		chat = discord.NewChatAdapter(session, cfg.Discord.GuildID, roles, botLog)
		for _, name := range []string{cfg.Discord.LinkedRole, cfg.Discord.MutedRole} {
			if name == "" {
				continue
			}
			if _, err := roles.Ensure(name, 0x95A5A6); err != nil {
				botLog.Warn("guild role unavailable", zap.String("role", name), zap.Error(err))
			}
		}
	} else {
		botLog.Warn("no bot token configured, Discord side disabled")
	}

	notifier, closeNotifier := buildNotifier(cfg, session, log)
	defer closeNotifier()

	// Services
	registry := service.NewLinkRegistry(store, cfg.Verification.CacheTTL)
	coordinator := service.NewCoordinator(service.CoordinatorDeps{
		Codes:    store,
		Registry: registry,
		Chat:     chat,
		Game:     hub,
		Groups:   groupGrantor(cfg, hub),
		Metrics:  metrics,
		Logger:   logger.WithComponent(log, "verification"),
	}, service.VerificationConfig{
		CodeLength:     cfg.Verification.CodeLength,
		Alphabet:       cfg.Verification.CodeAlphabet,
		CodeTTL:        cfg.Verification.CodeTTL,
		SweepInterval:  cfg.Verification.SweepInterval,
		RedeemCooldown: cfg.Verification.RedeemCooldown,
		LinkedRole:     cfg.Discord.LinkedRole,
		LinkedGroup:    cfg.Verification.LinkedGroup,
	})
	defer coordinator.Close()

	bridge := service.NewBridge(service.BridgeDeps{
		Store:    store,
		Registry: registry,
		Game:     hub,
		Chat:     chat,
		Notifier: notifier,
		Metrics:  metrics,
		Logger:   logger.WithComponent(log, "moderation"),
	}, service.ModerationConfig{
		DedupWindow:         cfg.Moderation.DedupWindow,
		MirrorKicks:         cfg.Moderation.MirrorKicks,
		MirrorRetryDelay:    cfg.Moderation.MirrorRetryDelay,
		ExpirySweepInterval: cfg.Moderation.ExpirySweepInterval,
		ReportCooldown:      cfg.Moderation.ReportCooldown,
		WarnThreshold:       cfg.Moderation.WarnThreshold,
		MutedRole:           cfg.Discord.MutedRole,
	})

	// Bot
	var bot *discord.Bot
	if session != nil {
		commands := discord.NewCommandHandler(session, cfg.Discord.CommandPrefix, coordinator, registry, bridge, botLog)
		events := discord.NewGuildEvents(session, cfg.Discord.GuildID, bridge, roles, botLog)
		bot = discord.NewBot(session, commands, events, botLog)
		if err := bot.Start(); err != nil {
			return err
		}
		defer bot.Stop()
	}

	// Background loops
	go hub.Run(ctx)
	go coordinator.Run(ctx)
	go bridge.RunExpiry(ctx)

	// Fiber app
	httpLog := logger.WithComponent(log, "http")
	app := fiber.New(fiber.Config{
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           30 * time.Second,
		BodyLimit:             64 * 1024,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(middleware.Logger(httpLog))
	app.Use(metrics.Instrument())

	handler.Routes{
		Health:     handler.NewHealthHandler(store, hub),
		Link:       handler.NewLinkHandler(coordinator, registry),
		Moderation: handler.NewModerationHandler(bridge),
		Admin:      handler.NewAdminHandler(bridge, coordinator, httpLog),
		Socket:     handler.NewGameSocketHandler(hub, coordinator, bridge, cfg.ServerKey, logger.WithComponent(log, "game")),
		Metrics:    adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	}.Mount(app, cfg.ServerKey, cfg.JWTSecret)

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(":" + cfg.Port)
	}()
	log.Info("linkbridge running", zap.String("port", cfg.Port), zap.String("env", cfg.Env), zap.String("driver", cfg.Database.Driver))

	select {
	case <-ctx.Done():
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("shutting down")
	stop()
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	log.Info("server stopped")
	return nil
}

// buildNotifier fans operator alerts out to every configured destination.
// Without any, alerts go to the log.
func buildNotifier(cfg *config.Config, session *discordgo.Session, log *zap.Logger) (service.OperatorNotifier, func()) {
	alertLog := logger.WithComponent(log, "alerts")
	var (
		notifiers service.MultiNotifier
		closers   []func()
	)
	if cfg.Discord.OperatorWebhookURL != "" {
		w := service.NewWebhookNotifier(cfg.Discord.OperatorWebhookURL, alertLog)
		notifiers = append(notifiers, w)
		closers = append(closers, w.Close)
	}
	if session != nil && cfg.Discord.OperatorChannelID != "" {
		c := discord.NewChannelNotifier(session, cfg.Discord.OperatorChannelID, alertLog)
		notifiers = append(notifiers, c)
		closers = append(closers, c.Close)
	}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(notifiers) == 0 {
		return service.LogNotifier{Logger: alertLog}, closeAll
	}
	return notifiers, closeAll
}

func groupGrantor(cfg *config.Config, hub *game.Hub) service.GroupGrantor {
	if cfg.Verification.LinkedGroup == "" {
		return service.NoopGroupGrantor{}
	}
	return hub
}
