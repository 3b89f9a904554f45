package service

import (
	"context"
	"errors"
	"testing"

	"payments/internal/appers"
	"payments/internal/payments/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount(t *testing.T) {
	f := newFixture()

	account, err := f.srv.CreateAccount(context.Background(), "u-1", 25)
	require.NoError(t, err)
	assert.Equal(t, "u-1", account.UserID)
	assert.Equal(t, 25.0, account.Balance)

	_, err = f.srv.CreateAccount(context.Background(), "u-1", 0)
	require.ErrorIs(t, err, appers.ErrAccountAlreadyExists)
}

func TestDepositAddsBalanceAndJournals(t *testing.T) {
	f := newFixture().withAccount("u-1", 10)

	trx, err := f.srv.Deposit(context.Background(), "u-1", &entity.DepositRequest{
		Amount:      40,
		Description: "top up",
	})
	require.NoError(t, err)

	assert.Equal(t, 50.0, f.accounts.balanceOf("u-1"))
	assert.Equal(t, entity.TransactionCompleted, trx.Status)
	assert.Equal(t, entity.TransactionDeposit, trx.Type)
	assert.Equal(t, 40.0, trx.Amount)
}

func TestDepositUnknownAccount(t *testing.T) {
	f := newFixture()

	_, err := f.srv.Deposit(context.Background(), "ghost", &entity.DepositRequest{Amount: 40})
	require.ErrorIs(t, err, appers.ErrAccountNotFound)
}

func TestDepositFailureMarksTransactionFailed(t *testing.T) {
	f := newFixture().withAccount("u-1", 10)
	f.accounts.addErr = errors.New("lock timeout")

	_, err := f.srv.Deposit(context.Background(), "u-1", &entity.DepositRequest{Amount: 40})
	require.Error(t, err)

	// Запись в журнале остаётся со статусом Failed, баланс не тронут.
	trx := f.transactions.single()
	require.NotNil(t, trx)
	assert.Equal(t, entity.TransactionFailed, trx.Status)
	assert.Equal(t, 10.0, f.accounts.balanceOf("u-1"))
}

func TestGetBalance(t *testing.T) {
	f := newFixture().withAccount("u-1", 77.25)

	balance, err := f.srv.GetBalance(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 77.25, balance.Balance)
	assert.Equal(t, "u-1", balance.UserID)

	_, err = f.srv.GetBalance(context.Background(), "ghost")
	require.ErrorIs(t, err, appers.ErrAccountNotFound)
}

func TestGetPaymentsFiltersDeposits(t *testing.T) {
	f := newFixture().withAccount("u-1", 100)

	_, err := f.srv.Deposit(context.Background(), "u-1", &entity.DepositRequest{Amount: 40})
	require.NoError(t, err)
	require.NoError(t, f.srv.ProcessPaymentRequest(context.Background(), paymentRequest("p-1", "u-1", 60)))

	all, err := f.srv.GetTransactionsByUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	payments, err := f.srv.GetPaymentsByUser(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, entity.TransactionPayment, payments[0].Type)
}
