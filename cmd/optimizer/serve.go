package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ai-content-optimizer-go/internal/handlers"
	"github.com/ai-content-optimizer-go/internal/middleware"
	"github.com/ai-content-optimizer-go/internal/scheduler"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, and the Telegram bot and usage scheduler when enabled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Info("Starting content optimizer...")

		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		nonces, err := middleware.NewNonceManager(cfg.Security.NonceSecret, cfg.Security.NonceTTL, log)
		if err != nil {
			return err
		}
		security := middleware.NewSecurityMiddleware(cfg.Security.MaxContent, log)

		apiHandler := handlers.NewAPIHandler(cfg, a.analysis, a.settings, a.requester, nonces, security, a.localizer, log)
		server := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      apiHandler.Router(a.metrics),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		serverErr := make(chan error, 1)
		go func() {
			log.WithField("addr", cfg.Server.Addr).Info("Starting API server")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()

		var metricsServer *http.Server
		if cfg.Monitoring.Metrics.Enabled {
			metricsServer = middleware.NewMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path)
			go func() {
				log.WithFields(logrus.Fields{
					"port": cfg.Monitoring.Metrics.Port,
					"path": cfg.Monitoring.Metrics.Path,
				}).Info("Starting metrics server")

				if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.WithError(err).Error("Metrics server failed")
				}
			}()
		}

		if cfg.Usage.ResetSchedule != "" {
			resetScheduler, err := scheduler.NewScheduler(cfg.Usage.ResetSchedule, a.settings, log)
			if err != nil {
				return err
			}
			resetScheduler.Start()
			defer resetScheduler.Stop()
		}

		var bot *tgbotapi.BotAPI
		botDone := make(chan struct{})
		if cfg.Bot.Enabled {
			bot, err = tgbotapi.NewBotAPI(cfg.Bot.Token)
			if err != nil {
				return err
			}
			bot.Debug = cfg.Logging.Level == "debug"
			log.WithField("username", bot.Self.UserName).Info("Bot authorized")

			commandHandler := handlers.NewCommandHandler(bot, a.analysis, a.settings, a.localizer, log)

			u := tgbotapi.NewUpdate(0)
			u.Timeout = cfg.Bot.UpdateTimeout
			updates := bot.GetUpdatesChan(u)

			go func() {
				defer close(botDone)
				commandHandler.Run(ctx, updates)
			}()
		} else {
			close(botDone)
		}

		// Setup graceful shutdown
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigChan:
			log.Info("Shutdown signal received")
		case err := <-serverErr:
			log.WithError(err).Error("API server failed")
			return err
		}

		if bot != nil {
			bot.StopReceivingUpdates()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Failed to shut down API server")
		}
		if metricsServer != nil {
			metricsServer.Shutdown(shutdownCtx)
		}

		cancel()
		<-botDone

		log.Info("Content optimizer stopped")
		return nil
	},
}
