package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"litvi-store/internal/config"
	apphttp "litvi-store/internal/http"
	"litvi-store/internal/mail"
	"litvi-store/internal/otp"
	"litvi-store/internal/ratelimit"
	"litvi-store/internal/repository/sqlite"
	"litvi-store/internal/service"
	"litvi-store/internal/token"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	shippingRepo := sqlite.NewShippingRepository(db)

	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	if err := shippingRepo.Init(ctx); err != nil {
		logger.Fatalf("init shipping repository: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warnf("redis unreachable, OTP cooldown disabled: %v", err)
	}

	dispatcher := buildDispatcher(cfg, logger)

	registrationOTP, err := otp.NewGenerator(otp.RegistrationPolicy())
	if err != nil {
		logger.Fatalf("registration otp generator: %v", err)
	}
	resetOTP, err := otp.NewGenerator(otp.ResetPolicy())
	if err != nil {
		logger.Fatalf("reset otp generator: %v", err)
	}

	minter, err := token.NewMinter(cfg.Auth.JWTSecret, cfg.SessionTTL(), cfg.ResetTTL())
	if err != nil {
		logger.Fatalf("token minter: %v", err)
	}

	authService := service.NewAuthService(
		userRepo,
		registrationOTP,
		resetOTP,
		minter,
		dispatcher,
		ratelimit.NewCooldown(rdb, cfg.CooldownWindow()),
		logger,
		service.Config{RequireVerified: cfg.Auth.RequireVerified},
	)
	shippingService := service.NewShippingService(shippingRepo)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	apphttp.NewHandler(authService, shippingService, logger).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func buildDispatcher(cfg config.Config, logger *logrus.Logger) mail.Dispatcher {
	if strings.TrimSpace(cfg.SMTP.Host) == "" {
		logger.Warn("smtp host not configured, logging OTP mail instead of sending")
		return mail.NewLogDispatcher(logger)
	}

	dispatcher, err := mail.NewSMTPDispatcher(mail.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if err != nil {
		logger.Fatalf("smtp dispatcher: %v", err)
	}

	logger.Infof("sending OTP mail via %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	return dispatcher
}
