package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payments/internal/appers"
	"payments/internal/messaging/contracts"
	"payments/internal/messaging/inbox"
	"payments/internal/messaging/outbox"
	"payments/internal/payments/entity"
	"payments/internal/payments/repo"
	"payments/pkg/db"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// BrokerStatus - минимальный срез брокера для health check.
type BrokerStatus interface {
	Ready() bool
}

type Service interface {
	// ProcessPaymentRequest списывает средства по запросу из очереди.
	// Идемпотентен по PaymentId: повтор уже обработанного запроса - no-op.
	// Business-ошибки (нет счёта, не хватает средств) означают "обработано,
	// заказ будет отменён" - вызывающий код их подтверждает, не возвращает в очередь.
	ProcessPaymentRequest(ctx context.Context, msg *contracts.PaymentRequestMessage) error

	CreateAccount(ctx context.Context, userID string, initialBalance float64) (*entity.Account, error)
	Deposit(ctx context.Context, userID string, req *entity.DepositRequest) (*entity.Transaction, error)
	GetBalance(ctx context.Context, userID string) (*entity.BalanceResponse, error)
	GetTransactionsByUser(ctx context.Context, userID string) ([]entity.Transaction, error)
	GetPaymentsByUser(ctx context.Context, userID string) ([]entity.Transaction, error)

	HealthCheck(ctx context.Context) (dbHealthy bool, brokerHealthy bool)
}

type ServiceImpl struct {
	accounts     repo.AccountRepo
	transactions repo.TransactionRepo
	outbox       outbox.Repo
	inbox        inbox.Repo
	tx           db.TxRunner
	broker       BrokerStatus
	logger       *zap.SugaredLogger
}

func NewService(
	accounts repo.AccountRepo,
	transactions repo.TransactionRepo,
	ob outbox.Repo,
	ib inbox.Repo,
	tx db.TxRunner,
	broker BrokerStatus,
	logger *zap.SugaredLogger) *ServiceImpl {

	return &ServiceImpl{
		accounts:     accounts,
		transactions: transactions,
		outbox:       ob,
		inbox:        ib,
		tx:           tx,
		broker:       broker,
		logger:       logger,
	}
}

// ProcessPaymentRequest: дедупликация по inbox и external_id, затем списание
// и запись вердикта (PaymentStatus в outbox) + inbox-отметки одной транзакцией.
// Либо зафиксировано всё - списание, журнал, вердикт, отметка - либо ничего.
func (s *ServiceImpl) ProcessPaymentRequest(ctx context.Context, msg *contracts.PaymentRequestMessage) error {
	s.logger.Infof("[payment: %s] processing request, order %s, amount %.2f",
		msg.PaymentID, msg.OrderID, msg.Amount)

	processed, err := s.inbox.HasProcessed(ctx, msg.PaymentID)
	if err != nil {
		return fmt.Errorf("inbox dedup check: %w", err)
	}
	if processed {
		s.logger.Infof("[payment: %s] already processed (inbox), skipping", msg.PaymentID)
		return nil
	}

	exists, err := s.transactions.ExistsWithExternalID(ctx, msg.PaymentID)
	if err != nil {
		return fmt.Errorf("transaction dedup check: %w", err)
	}
	if exists {
		s.logger.Infof("[payment: %s] transaction already recorded, skipping", msg.PaymentID)
		return nil
	}

	if _, err := s.accounts.GetByUserID(ctx, msg.UserID); err != nil {
		if errors.Is(err, appers.ErrAccountNotFound) {
			// Счёта нет - заказ надо отменить, а не гонять сообщение по кругу.
			if rerr := s.recordRejection(ctx, msg, appers.ErrAccountNotFound.Error()); rerr != nil {
				return rerr
			}
			return appers.ErrAccountNotFound
		}
		return fmt.Errorf("account lookup: %w", err)
	}

	var debitErr error
	err = db.WithRetry(ctx, func(ctx context.Context) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			debitErr = nil

			account, err := s.accounts.GetForUpdate(ctx, msg.UserID)
			if err != nil {
				return err
			}

			trx, err := newPaymentTransaction(account, msg)
			if err != nil {
				return err
			}
			if err := s.transactions.Create(ctx, trx); err != nil {
				return err
			}

			status := entity.TransactionCompleted
			if account.Balance >= msg.Amount {
				if err := s.accounts.AddToBalance(ctx, account.ID, -msg.Amount); err != nil {
					return err
				}
			} else {
				status = entity.TransactionFailed
				debitErr = appers.ErrInsufficientFunds
			}

			if err := s.transactions.UpdateStatus(ctx, trx.ID, status); err != nil {
				return err
			}

			if err := s.enqueueStatus(ctx, msg, debitErr); err != nil {
				return err
			}

			return s.recordInbox(ctx, msg)
		})
	})
	if err != nil {
		if errors.Is(err, appers.ErrDuplicateMessage) {
			// Гонка двух доставок: первый победил, наши эффекты откатились.
			s.logger.Warnf("[payment: %s] concurrent duplicate, effects rolled back", msg.PaymentID)
			return nil
		}
		return fmt.Errorf("process payment %s: %w", msg.PaymentID, err)
	}

	if debitErr != nil {
		s.logger.Warnf("[payment: %s] declined: %v", msg.PaymentID, debitErr)
	} else {
		s.logger.Infof("[payment: %s] completed, %.2f debited", msg.PaymentID, msg.Amount)
	}
	return debitErr
}

// recordRejection фиксирует отказ без движения по счёту: Failed-вердикт
// в outbox и отметка inbox одной транзакцией.
func (s *ServiceImpl) recordRejection(ctx context.Context, msg *contracts.PaymentRequestMessage, reason string) error {
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := s.enqueueStatus(ctx, msg, errors.New(reason)); err != nil {
				return err
			}
			return s.recordInbox(ctx, msg)
		})
	})
	if err != nil {
		if errors.Is(err, appers.ErrDuplicateMessage) {
			s.logger.Warnf("[payment: %s] concurrent duplicate on rejection", msg.PaymentID)
			return nil
		}
		return fmt.Errorf("record rejection %s: %w", msg.PaymentID, err)
	}
	return nil
}

// enqueueStatus кладёт PaymentStatus-вердикт в outbox. debitErr == nil - Completed.
func (s *ServiceImpl) enqueueStatus(ctx context.Context, msg *contracts.PaymentRequestMessage, debitErr error) error {
	status := contracts.PaymentStatusMessage{
		PaymentID: msg.PaymentID,
		OrderID:   msg.OrderID,
		UserID:    msg.UserID,
		Amount:    msg.Amount,
		Status:    contracts.PaymentCompleted,
		Timestamp: time.Now().UTC(),
	}
	if debitErr != nil {
		status.Status = contracts.PaymentFailed
		status.ErrorMessage = debitErr.Error()
	}

	obMsg, err := outbox.NewMessage(contracts.TypePaymentStatus, status)
	if err != nil {
		return err
	}
	return s.outbox.Create(ctx, obMsg)
}

func (s *ServiceImpl) recordInbox(ctx context.Context, msg *contracts.PaymentRequestMessage) error {
	ibMsg, err := inbox.NewProcessed(msg.PaymentID, contracts.TypePaymentRequest, msg)
	if err != nil {
		return err
	}
	return s.inbox.Create(ctx, ibMsg)
}

func newPaymentTransaction(account *entity.Account, msg *contracts.PaymentRequestMessage) (*entity.Transaction, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("new transaction id: %w", err)
	}

	orderID := msg.OrderID
	externalID := msg.PaymentID
	return &entity.Transaction{
		ID:          id,
		AccountID:   account.ID,
		UserID:      msg.UserID,
		Amount:      msg.Amount,
		Type:        entity.TransactionPayment,
		Status:      entity.TransactionPending,
		Description: fmt.Sprintf("Payment for order %s", msg.OrderID),
		OrderID:     &orderID,
		ExternalID:  &externalID,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (s *ServiceImpl) HealthCheck(ctx context.Context) (bool, bool) {
	dbErr := s.accounts.HealthCheck(ctx)
	return dbErr == nil, s.broker.Ready()
}
