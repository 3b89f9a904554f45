package app

import (
	"context"
	"errors"
	"fmt"

	"payments/internal/cron"
	"payments/internal/messaging/contracts"
	"payments/internal/messaging/inbox"
	"payments/internal/messaging/outbox"
	"payments/internal/payments/handler"
	"payments/internal/payments/listener"
	"payments/internal/payments/repo"
	"payments/internal/payments/service"
	"payments/pkg/broker"
	"payments/pkg/config"
	"payments/pkg/db"
	"payments/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type App struct {
	conf           *config.Config
	logger         *zap.SugaredLogger
	httpServer     *fiber.App
	rabbit         *broker.Rabbit
	cronController *cron.Controller
}

func NewApp(
	ctx context.Context,
	conf *config.Config,
	logger *zap.SugaredLogger,
	postgres *db.Postgres,
	httpServer *fiber.App,
	rabbit *broker.Rabbit,
	m *metrics.Metrics) (*App, error) {

	accounts := repo.NewAccountRepo(postgres, logger)
	transactions := repo.NewTransactionRepo(postgres, logger)
	outboxRepo := outbox.NewRepo(postgres, logger)
	inboxRepo := inbox.NewRepo(postgres, logger)
	srv := service.NewService(accounts, transactions, outboxRepo, inboxRepo, postgres, rabbit, logger)

	// Диспетчер публикует PaymentStatus-вердикты из outbox обратно в orders.
	dispatcher := outbox.NewDispatcher(outboxRepo, conf.Outbox, logger, m)
	dispatcher.Register(contracts.TypePaymentStatus,
		outbox.JSONHandler[contracts.PaymentStatusMessage](rabbit, contracts.QueuePaymentStatuses))
	go dispatcher.Run(ctx)

	// Подписка на запросы оплаты. В degraded режиме подписка остаётся
	// зарегистрированной и поднимется после reconnect.
	requestListener := listener.NewPaymentRequestListener(srv, logger, m)
	if err := rabbit.Subscribe(ctx, contracts.QueuePaymentRequests, requestListener.Handle); err != nil {
		if !errors.Is(err, broker.ErrBrokerUnavailable) {
			return nil, fmt.Errorf("subscribe %s: %w", contracts.QueuePaymentRequests, err)
		}
		logger.Warnf("брокер недоступен, подписка на %s отложена до reconnect", contracts.QueuePaymentRequests)
	}

	h := handler.NewAccountHandler(srv, logger)
	r := handler.NewRouter(h, httpServer, conf, logger)
	r.RegisterRouter()

	cronController := cron.NewController(ctx, logger)
	if err := cronController.RegisterPurgeJob("outbox", outboxRepo, conf.Cron); err != nil {
		return nil, err
	}
	if err := cronController.RegisterPurgeJob("inbox", inboxRepo, conf.Cron); err != nil {
		return nil, err
	}
	cronController.Start()

	return &App{
		conf:           conf,
		logger:         logger,
		httpServer:     httpServer,
		rabbit:         rabbit,
		cronController: cronController,
	}, nil
}

func (a *App) Run() error {
	return a.httpServer.Listen(fmt.Sprintf(":%s", a.conf.Server.Port))
}

func (a *App) Shutdown() error {
	if a.cronController != nil {
		a.cronController.Stop()
	}
	if err := a.rabbit.Close(); err != nil {
		a.logger.Warnf("ошибка закрытия соединения с RabbitMQ: %v", err)
	}
	return a.httpServer.Shutdown()
}
