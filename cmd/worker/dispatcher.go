package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jkarimi/sms-campaigns/internal/config"
	"github.com/jkarimi/sms-campaigns/internal/db"
	"github.com/jkarimi/sms-campaigns/internal/gateway"
	"github.com/jkarimi/sms-campaigns/internal/kafka"
	"github.com/jkarimi/sms-campaigns/internal/logger"
	"github.com/jkarimi/sms-campaigns/internal/metrics"
	"github.com/jkarimi/sms-campaigns/internal/repository"
	"github.com/jkarimi/sms-campaigns/internal/service/reconcile"
	"github.com/jkarimi/sms-campaigns/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var dispatcherCmd = &cobra.Command{
	Use:   "dispatcher",
	Short: "Run the campaign dispatch worker",
	RunE:  runDispatcher,
}

func runDispatcher(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
		PingTimeout:     cfg.MySQL.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	// the webhook audit archive is optional for the worker; dispatch still
	// works when ClickHouse is down
	var eventsRepo repository.DeliveryEventsRepository
	chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
		DSN:             cfg.ClickHouse.DSN,
		MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
		PingTimeout:     cfg.ClickHouse.PingTimeout,
	})
	if err != nil {
		logger.Log.Warn("clickhouse unavailable, delivery events will not be archived", zap.Error(err))
	} else {
		defer func() { _ = chDB.Close() }()
		eventsRepo = repository.NewDeliveryEventsRepository(chDB)
	}

	tenantsRepo := repository.NewTenantsRepository(dbx)
	campaignsRepo := repository.NewCampaignsRepository(dbx)
	recipientsRepo := repository.NewRecipientsRepository(dbx)
	sink := reconcile.NewSink(recipientsRepo, campaignsRepo, eventsRepo)

	topic := cfg.Kafka.Topic
	if topic == "" {
		topic = "campaign.dispatch"
	}
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "smsc-dispatcher"
	}

	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewDispatchWorker(
		consumer,
		tenantsRepo,
		campaignsRepo,
		recipientsRepo,
		sink,
		gateway.ATOpts{
			SendTimeout:    cfg.Gateway.SendTimeout,
			BalanceTimeout: cfg.Gateway.BalanceTimeout,
			ProductionBase: cfg.Gateway.ProductionBase,
			SandboxBase:    cfg.Gateway.SandboxBase,
		},
		cfg.Gateway.BatchMax,
	)
	if cfg.Worker.Workers > 0 {
		w.Workers = cfg.Worker.Workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Log.Info("dispatcher started",
		zap.String("topic", topic),
		zap.String("group", groupID),
		zap.Int("workers", w.Workers),
		zap.Int("batch_max", cfg.Gateway.BatchMax),
	)

	return w.Run(ctx)
}
