package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ceramicnetwork/go-pulse/api"
	"github.com/ceramicnetwork/go-pulse/common"
	awsConfig "github.com/ceramicnetwork/go-pulse/common/aws/config"
	"github.com/ceramicnetwork/go-pulse/common/aws/ddb"
	"github.com/ceramicnetwork/go-pulse/common/aws/queue"
	"github.com/ceramicnetwork/go-pulse/common/aws/storage"
	"github.com/ceramicnetwork/go-pulse/common/config"
	"github.com/ceramicnetwork/go-pulse/common/db"
	"github.com/ceramicnetwork/go-pulse/common/loggers"
	"github.com/ceramicnetwork/go-pulse/common/metrics"
	"github.com/ceramicnetwork/go-pulse/common/notifs"
	"github.com/ceramicnetwork/go-pulse/common/telegram"
	"github.com/ceramicnetwork/go-pulse/models"
	"github.com/ceramicnetwork/go-pulse/services"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("pulse: %v", err)
	}
	logger, err := loggers.NewLogger()
	if err != nil {
		log.Fatalf("pulse: error creating logger: %v", err)
	}
	defer logger.Sync()

	serverCtx, serverCtxCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer serverCtxCancel()

	metricService, err := metrics.NewOtelMetricService(serverCtx, logger)
	if err != nil {
		logger.Fatalf("error creating metric service: %v", err)
	}

	store, closer := newStore(serverCtx, logger, cfg)
	if closer != nil {
		defer closer.Close()
	}

	bot, err := telegram.BotApi(logger, cfg.TelegramToken)
	if err != nil {
		logger.Fatalf("error connecting to telegram: %v", err)
	}
	messenger := telegram.NewMessenger(logger, bot)

	discordHandler, err := notifs.NewDiscordHandler(logger)
	if err != nil {
		logger.Fatalf("error creating discord handler: %v", err)
	}

	// Poll events and archives are optional outputs, each enabled by naming its AWS resource.
	var publisher models.QueuePublisher
	var archive models.KeyValueRepository
	if len(cfg.EventQueueName) > 0 || len(cfg.ArchiveBucket) > 0 {
		awsCfg, err := awsConfig.AwsConfig(serverCtx, logger)
		if err != nil {
			logger.Fatalf("error creating aws cfg: %v", err)
		}
		if len(cfg.EventQueueName) > 0 {
			eventPublisher, err := queue.NewPublisher(serverCtx, sqs.NewFromConfig(awsCfg), queue.QueueName(cfg.Env, cfg.EventQueueName))
			if err != nil {
				logger.Fatalf("error creating event publisher: %v", err)
			}
			logger.Infof("publishing poll events to %s", eventPublisher.GetUrl())
			publisher = eventPublisher
		}
		if len(cfg.ArchiveBucket) > 0 {
			logger.Infof("archiving completed polls to s3://%s", cfg.ArchiveBucket)
			archive = storage.NewS3Store(logger, s3.NewFromConfig(awsCfg), cfg.ArchiveBucket)
		}
	}

	// Services
	polls := services.NewPollStore(store)
	identities := services.NewIdentityDirectory(store)
	directory := services.NewPollDirectory(store, polls, identities)
	events := services.NewEventService(publisher, metricService, logger)
	reminders := services.NewReminderScheduler(polls, messenger, discordHandler, events, metricService, logger, cfg.ReminderConfig())
	pulseService := services.NewPulseService(
		polls,
		reminders,
		directory,
		identities,
		messenger,
		discordHandler,
		events,
		archive,
		metricService,
		logger,
		services.PulseConfig{
			HostnameUrl:         cfg.HostnameUrl,
			BotId:               strconv.FormatInt(bot.Self.ID, 10),
			Staff:               cfg.Staff,
			EscalationThreshold: cfg.EscalationThreshold,
		},
	)
	router := services.NewCommandRouter(pulseService, identities, messenger, cfg, logger)
	listener := telegram.NewListener(logger, bot, bot.Self.UserName, router)
	server := api.NewServer(cfg.Port, api.NewRouter(pulseService, logger), logger)

	logger.Infof("starting %s with the %s store", common.ServiceName, cfg.StoreBackend)
	group, groupCtx := errgroup.WithContext(serverCtx)
	group.Go(func() error {
		return server.Run(groupCtx)
	})
	group.Go(func() error {
		return listener.Run(groupCtx)
	})
	if err = group.Wait(); err != nil {
		logger.Errorf("stopped with error: %v", err)
	}

	// Reminder loops run under the listener's context and exit once it is done.
	reminders.Wait()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), common.DefaultRpcWaitTime)
	defer shutdownCancel()
	metricService.Shutdown(shutdownCtx)
	logger.Infof("stopped")
}

func newStore(ctx context.Context, logger models.Logger, cfg *config.Config) (models.KeyValueStore, io.Closer) {
	switch cfg.StoreBackend {
	case config.StoreBackend_Memory:
		logger.Warnf("using the memory store, polls will not survive a restart")
		return db.NewMemoryStore(), nil
	case config.StoreBackend_Postgres:
		store, err := db.OpenPostgres(cfg.DatabaseUrl)
		if err != nil {
			logger.Fatalf("error opening postgres store: %v", err)
		}
		return store, store
	case config.StoreBackend_DynamoDb:
		dbAwsCfg, err := awsConfig.DynamoDbConfig(ctx, logger)
		if err != nil {
			logger.Fatalf("error creating dynamodb aws cfg: %v", err)
		}
		store, err := ddb.NewDynamoStore(ctx, logger, dynamodb.NewFromConfig(dbAwsCfg), cfg.Env)
		if err != nil {
			logger.Fatalf("error creating dynamodb store: %v", err)
		}
		return store, nil
	default:
		store, err := db.OpenSqlite(cfg.SqlitePath)
		if err != nil {
			logger.Fatalf("error opening sqlite store: %v", err)
		}
		return store, store
	}
}
