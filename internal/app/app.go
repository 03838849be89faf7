// Package app wires the storefront API together: config, security gateway,
// POS client, retry queue and HTTP routes.
package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anmilktea/storefront-api/configs"
	"github.com/anmilktea/storefront-api/internal/handlers"
	"github.com/anmilktea/storefront-api/internal/notify"
	"github.com/anmilktea/storefront-api/internal/pos"
	"github.com/anmilktea/storefront-api/internal/queue"
	"github.com/anmilktea/storefront-api/internal/security"
	"github.com/anmilktea/storefront-api/internal/services"
	middleware "github.com/anmilktea/storefront-api/pkg/middlewares"
)

const sweepInterval = 60 * time.Second

// App owns every process-local store. One instance per process; horizontal
// scaling needs this state externalized first.
type App struct {
	Router *gin.Engine

	logger *zap.Logger
	stop   chan struct{}
}

func New(cfg *configs.Config, logger *zap.Logger) *App {
	// The gate and the auto-healer keep separate block lists; the gate
	// consults both on every request.
	gateStore := security.NewReputationStore(security.DefaultSuspiciousThreshold, logger)
	healerStore := security.NewReputationStore(security.DefaultSuspiciousThreshold, logger)

	telegram := notify.NewTelegram(notify.Config{
		BotToken: cfg.TelegramBotToken,
		ChatID:   cfg.TelegramChatID,
	}, logger)

	healer := security.NewAutoHealer(healerStore, telegram, logger)
	limiter := security.NewRateLimiter(logger)
	txLog := security.NewTransactionLog(logger)

	gate := security.NewGate(security.GateConfig{
		AllowedOrigins: cfg.Origins(),
		Policies:       security.DefaultPolicies(),
	}, limiter, gateStore, healer, logger)

	posClient := pos.NewClient(pos.Config{
		BaseURL:   cfg.PosBaseURL,
		Domain:    cfg.PosDomain,
		SecretKey: cfg.PosSecretKey,
		AppID:     cfg.PosAppID,
		BranchID:  cfg.PosBranchID,
	}, logger)

	retryQueue := queue.NewRetryQueue(posClient, logger)
	orderService := services.NewOrderService(posClient, retryQueue, txLog, healer, telegram, cfg.OrderNoPrefix, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(security.Headers())
	router.Use(middleware.TraceID())
	router.Use(middleware.Metrics())
	router.Use(gate.Middleware())

	handlers.NewBaseHandler(logger).RegisterRoutes(router)

	api := router.Group("/api")
	handlers.NewOrderHandler(logger, orderService).RegisterRoutes(api)
	handlers.NewRetryHandler(logger, retryQueue, cfg.InternalAPIKey).RegisterRoutes(api)
	handlers.NewWebhookHandler(logger, handlers.WebhookSecrets{
		SepaySecret: cfg.SepayWebhookSecret,
		CassoToken:  cfg.CassoWebhookToken,
		VNPaySecret: cfg.VNPayHashSecret,
	}, txLog, healer).RegisterRoutes(api)
	handlers.NewSecurityHandler(logger, healer, gateStore, txLog).RegisterRoutes(api)

	stop := make(chan struct{})
	limiter.StartSweeper(sweepInterval, stop)
	gateStore.StartSweeper(sweepInterval, stop)
	healerStore.StartSweeper(sweepInterval, stop)

	return &App{Router: router, logger: logger, stop: stop}
}

// Close stops the background sweepers.
func (a *App) Close() {
	close(a.stop)
}
