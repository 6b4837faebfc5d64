package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jkarimi/sms-campaigns/internal/config"
	"github.com/jkarimi/sms-campaigns/internal/gateway"
	"github.com/jkarimi/sms-campaigns/internal/http/middleware"
	"github.com/jkarimi/sms-campaigns/internal/logger"
	"github.com/jkarimi/sms-campaigns/internal/metrics"
	"github.com/jkarimi/sms-campaigns/internal/repository"
	"github.com/jkarimi/sms-campaigns/internal/service/campaign"
	"github.com/jkarimi/sms-campaigns/internal/service/reconcile"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client) *Server {
	// repos (MySQL)
	tenantsRepo := repository.NewTenantsRepository(mysqlDB)
	campaignsRepo := repository.NewCampaignsRepository(mysqlDB)
	recipientsRepo := repository.NewRecipientsRepository(mysqlDB)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)

	// repos (ClickHouse)
	var eventsRepo repository.DeliveryEventsRepository
	if clickhouseDB != nil {
		eventsRepo = repository.NewDeliveryEventsRepository(clickhouseDB)
	}

	gwOpts := gateway.ATOpts{
		SendTimeout:    cfg.Gateway.SendTimeout,
		BalanceTimeout: cfg.Gateway.BalanceTimeout,
		ProductionBase: cfg.Gateway.ProductionBase,
		SandboxBase:    cfg.Gateway.SandboxBase,
	}

	// services
	campaignSvc := campaign.NewService(mysqlDB, campaignsRepo, recipientsRepo, outboxRepo)
	sink := reconcile.NewSink(recipientsRepo, campaignsRepo, eventsRepo)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// provider callback, token-addressed, no API key
	e.POST("/webhooks/delivery/:token", deliveryWebhookHandler(sink))

	// middlewares
	authMW := middleware.APIKeyMiddleware(tenantsRepo)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:tenant:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/campaigns", createCampaignHandler(campaignSvc))
	v1.GET("/campaigns/:id", getCampaignHandler(campaignSvc))
	v1.POST("/campaigns/:id/recipients", addRecipientsHandler(campaignSvc))
	v1.GET("/campaigns/:id/recipients", listRecipientsHandler(campaignSvc))
	v1.POST("/campaigns/:id/send", sendCampaignHandler(campaignSvc))
	v1.GET("/campaigns/:id/events", listDeliveryEventsHandler(campaignSvc, eventsRepo))
	v1.GET("/balance", balanceHandler(tenantsRepo, gwOpts))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	logger.Log.Info("http listening", zap.String("addr", addr))
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
