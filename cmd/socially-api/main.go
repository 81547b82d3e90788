package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/auth"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/config"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/conversations"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/database"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/logging"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/media"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/messages"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/notifications"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/presence"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/push"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/reaper"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/reconcile"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/server"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/social"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "socially-api",
		Short: "Socially messaging backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Postgres connection string")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Bearer token signing secret (overrides env)")
	cmd.PersistentFlags().String("redis-address", defaults.GetString("redis.address"), "Redis address for presence; empty disables it")
	cmd.PersistentFlags().Duration("reaper-interval", defaults.GetDuration("reaper.interval"), "Interval between expiry sweeps")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "redis.address", "redis-address")
	bindFlag(cmd, "reaper.interval", "reaper-interval")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.Config{
		Driver: appConfig.DatabaseDriver,
		Path:   appConfig.DatabasePath,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.TokenIssuer,
		Audience:      appConfig.TokenAudience,
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	var presenceStore users.PresenceStore
	if appConfig.RedisAddress != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: appConfig.RedisAddress})
		defer redisClient.Close()
		tracker, err := presence.NewTracker(redisClient, appConfig.PresenceTTL)
		if err != nil {
			return err
		}
		presenceStore = tracker
	}

	directory, err := users.NewService(users.ServiceConfig{
		Database: db,
		Presence: presenceStore,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	releaser, err := newReleaser(ctx, appConfig.S3)
	if err != nil {
		return err
	}
	pushClient, err := newPushClient(appConfig)
	if err != nil {
		return err
	}

	ledger, err := notifications.NewService(notifications.ServiceConfig{
		Database:   db,
		IDProvider: notifications.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	hub := notifications.NewHub()
	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherConfig{
		Endpoints:   ledger,
		Push:        pushClient,
		Hub:         hub,
		PushTimeout: appConfig.PushTimeout,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	center := notifications.NewCenter(ledger, dispatcher, logger)

	messageService, err := messages.NewService(messages.ServiceConfig{
		Database:      db,
		Directory:     directory,
		Media:         releaser,
		Notifier:      center,
		EditWindow:    appConfig.EditWindow,
		VanishTTL:     appConfig.VanishTTL,
		VanishReadTTL: appConfig.VanishReadTTL,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	conversationService, err := conversations.NewService(conversations.ServiceConfig{
		Database:  db,
		Directory: directory,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	socialService, err := social.NewService(social.ServiceConfig{
		Database:  db,
		Directory: directory,
		Notifier:  center,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	reconciler, err := reconcile.NewReconciler(reconcile.Config{
		Database: db,
		Messages: messageService,
		Social:   socialService,
		Notifier: center,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	sweeper, err := reaper.New(reaper.Config{
		Sweepers: []reaper.Sweeper{
			reaper.SweepFunc{Label: "expired_messages", Fn: messageService.PurgeExpired},
			reaper.RetentionSweep("deleted_messages", appConfig.DeletedRetention, messageService.PurgeDeleted),
			reaper.SweepFunc{Label: "expired_stories", Fn: socialService.PurgeExpiredStories},
		},
		Interval:   appConfig.ReaperInterval,
		SampleRate: appConfig.ReaperSampleRate,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	stopReaper := sweeper.Start()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Tokens:        tokenIssuer,
		Messages:      messageService,
		Conversations: conversationService,
		Notifications: ledger,
		Hub:           hub,
		Reconciler:    reconciler,
		Users:         directory,
		Middleware:    []gin.HandlerFunc{sweeper.Middleware()},
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-signalCtx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := httpServer.Shutdown(shutdownCtx)
	if err := stopReaper(shutdownCtx); err != nil {
		logger.Warn("reaper did not stop cleanly", zap.Error(err))
	}
	dispatcher.Close()
	logger.Info("server stopped")
	return errors.Join(serveErr, shutdownErr)
}

func newReleaser(ctx context.Context, cfg config.S3Config) (media.Releaser, error) {
	if cfg.Bucket == "" {
		return media.NopReleaser{}, nil
	}
	return media.NewS3Releaser(ctx, media.S3Config{
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
	})
}

func newPushClient(cfg config.AppConfig) (push.Client, error) {
	if cfg.FCMServerKey == "" {
		return push.NopClient{}, nil
	}
	return push.NewFCMClient(push.FCMConfig{
		ServerKey:     cfg.FCMServerKey,
		Endpoint:      cfg.FCMEndpoint,
		RatePerSecond: cfg.PushRatePerSecond,
	})
}
