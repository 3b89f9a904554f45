package service

import (
	"context"
	"fmt"
	"time"

	"payments/internal/appers"
	"payments/internal/messaging/contracts"
	"payments/internal/messaging/outbox"
	"payments/internal/orders/entity"
	"payments/internal/orders/repo"
	"payments/pkg/db"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

type Service interface {
	CreateOrder(ctx context.Context, userID string, req *entity.CreateOrderRequest) (*entity.Order, error)
	// GetOrder возвращает заказ только его владельцу; чужой заказ
	// неотличим от несуществующего.
	GetOrder(ctx context.Context, id uuid.UUID, userID string) (*entity.Order, error)
	GetOrdersByUser(ctx context.Context, userID string) ([]entity.Order, error)
	// HandlePaymentStatus применяет вердикт платёжного сервиса к заказу.
	HandlePaymentStatus(ctx context.Context, msg *contracts.PaymentStatusMessage) error

	HealthCheck(ctx context.Context) (dbHealthy bool, brokerHealthy bool)
}

// BrokerStatus - минимальный срез брокера для health check.
type BrokerStatus interface {
	Ready() bool
}

type ServiceImpl struct {
	repo   repo.Repo
	outbox outbox.Repo
	tx     db.TxRunner
	broker BrokerStatus
	logger *zap.SugaredLogger
}

func NewService(repo repo.Repo, ob outbox.Repo, tx db.TxRunner, broker BrokerStatus, logger *zap.SugaredLogger) *ServiceImpl {
	return &ServiceImpl{
		repo:   repo,
		outbox: ob,
		tx:     tx,
		broker: broker,
		logger: logger,
	}
}

// CreateOrder создаёт заказ и PaymentRequest в outbox одной транзакцией:
// либо записаны оба, либо ни одного.
func (s *ServiceImpl) CreateOrder(ctx context.Context, userID string, req *entity.CreateOrderRequest) (*entity.Order, error) {
	orderID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("new order id: %w", err)
	}
	paymentID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("new payment id: %w", err)
	}

	order := &entity.Order{
		ID:          orderID,
		UserID:      userID,
		Price:       req.Price,
		Description: req.Description,
		Status:      entity.OrderStatusNew,
		CreatedAt:   time.Now().UTC(),
	}
	order.UpdatedAt = order.CreatedAt

	msg, err := outbox.NewMessage(contracts.TypePaymentRequest, contracts.PaymentRequestMessage{
		PaymentID: paymentID.String(),
		OrderID:   orderID,
		UserID:    userID,
		Amount:    req.Price,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debugf("[order: %s] CreateOrder started", order.ID)

	err = db.WithRetry(ctx, func(ctx context.Context) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := s.repo.Create(ctx, order); err != nil {
				return err
			}
			return s.outbox.Create(ctx, msg)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Infof("[order: %s] created, payment request %s queued", order.ID, paymentID)
	return order, nil
}

func (s *ServiceImpl) GetOrder(ctx context.Context, id uuid.UUID, userID string) (*entity.Order, error) {
	s.logger.Debugf("[order: %s] GetOrder started", id)

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, appers.ErrOrderNotFound
	}
	return order, nil
}

func (s *ServiceImpl) GetOrdersByUser(ctx context.Context, userID string) ([]entity.Order, error) {
	s.logger.Debugf("[user: %s] GetOrdersByUser started", userID)

	return s.repo.GetByUser(ctx, userID)
}

// HandlePaymentStatus идемпотентен: заказ в терминальном статусе не трогаем,
// повтор того же вердикта - no-op. Неизвестный заказ логируем и подтверждаем,
// иначе сообщение зациклится в очереди.
func (s *ServiceImpl) HandlePaymentStatus(ctx context.Context, msg *contracts.PaymentStatusMessage) error {
	s.logger.Infof("[order: %s] payment status received: %s", msg.OrderID, msg.Status)

	order, err := s.repo.GetByID(ctx, msg.OrderID)
	if err != nil {
		s.logger.Warnf("[order: %s] payment status for unknown order, skipping: %v", msg.OrderID, err)
		return nil
	}

	if order.Status.Terminal() {
		s.logger.Infof("[order: %s] already %s, ignoring duplicate status", order.ID, order.Status)
		return nil
	}

	next := entity.OrderStatusCancelled
	if msg.Success() {
		next = entity.OrderStatusFinished
	}

	if order.Status == next {
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, order.ID, next); err != nil {
		return fmt.Errorf("apply payment status: %w", err)
	}

	if msg.ErrorMessage != "" {
		s.logger.Warnf("[order: %s] -> %s: %s", order.ID, next, msg.ErrorMessage)
	} else {
		s.logger.Infof("[order: %s] -> %s", order.ID, next)
	}
	return nil
}

func (s *ServiceImpl) HealthCheck(ctx context.Context) (bool, bool) {
	dbErr := s.repo.HealthCheck(ctx)
	return dbErr == nil, s.broker.Ready()
}
