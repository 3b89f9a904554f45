package service

import (
	"context"
	"fmt"
	"time"

	"payments/internal/payments/entity"
	"payments/pkg/db"

	"github.com/gofrs/uuid"
)

func (s *ServiceImpl) CreateAccount(ctx context.Context, userID string, initialBalance float64) (*entity.Account, error) {
	s.logger.Debugf("[user: %s] CreateAccount started", userID)

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("new account id: %w", err)
	}

	account := &entity.Account{
		ID:        id,
		UserID:    userID,
		Balance:   initialBalance,
		CreatedAt: time.Now().UTC(),
	}
	account.UpdatedAt = account.CreatedAt

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Infof("[account: %s] created for user %s", account.ID, userID)
	return account, nil
}

// Deposit пополняет счёт. Запись в журнал делается до движения по балансу:
// если зачисление сорвётся, транзакция останется в журнале со статусом Failed.
func (s *ServiceImpl) Deposit(ctx context.Context, userID string, req *entity.DepositRequest) (*entity.Transaction, error) {
	s.logger.Debugf("[user: %s] Deposit started, amount %.2f", userID, req.Amount)

	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("new transaction id: %w", err)
	}

	trx := &entity.Transaction{
		ID:          id,
		AccountID:   account.ID,
		UserID:      userID,
		Amount:      req.Amount,
		Type:        entity.TransactionDeposit,
		Status:      entity.TransactionPending,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.transactions.Create(ctx, trx); err != nil {
		return nil, fmt.Errorf("journal deposit for user %s: %w", userID, err)
	}

	err = db.WithRetry(ctx, func(ctx context.Context) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			locked, err := s.accounts.GetForUpdate(ctx, userID)
			if err != nil {
				return err
			}

			if err := s.accounts.AddToBalance(ctx, locked.ID, req.Amount); err != nil {
				return err
			}

			return s.transactions.UpdateStatus(ctx, trx.ID, entity.TransactionCompleted)
		})
	})
	if err != nil {
		if uerr := s.transactions.UpdateStatus(ctx, trx.ID, entity.TransactionFailed); uerr != nil {
			s.logger.Errorf("[transaction: %s] mark deposit failed: %v", trx.ID, uerr)
		}
		return nil, fmt.Errorf("deposit for user %s: %w", userID, err)
	}

	trx.Status = entity.TransactionCompleted
	s.logger.Infof("[account: %s] deposited %.2f for user %s", trx.AccountID, req.Amount, userID)
	return trx, nil
}

func (s *ServiceImpl) GetBalance(ctx context.Context, userID string) (*entity.BalanceResponse, error) {
	s.logger.Debugf("[user: %s] GetBalance started", userID)

	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &entity.BalanceResponse{UserID: userID, Balance: account.Balance}, nil
}

func (s *ServiceImpl) GetTransactionsByUser(ctx context.Context, userID string) ([]entity.Transaction, error) {
	s.logger.Debugf("[user: %s] GetTransactionsByUser started", userID)

	return s.transactions.GetByUser(ctx, userID)
}

func (s *ServiceImpl) GetPaymentsByUser(ctx context.Context, userID string) ([]entity.Transaction, error) {
	s.logger.Debugf("[user: %s] GetPaymentsByUser started", userID)

	return s.transactions.GetPaymentsByUser(ctx, userID)
}
