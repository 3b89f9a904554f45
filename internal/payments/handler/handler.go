package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payments/internal/appers"
	"payments/internal/payments/entity"
	"payments/internal/payments/service"
	"payments/pkg/validator"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler interface {
	CreateAccount(c *fiber.Ctx) error
	Deposit(c *fiber.Ctx) error
	GetBalance(c *fiber.Ctx) error
	GetTransactions(c *fiber.Ctx) error
	GetPayments(c *fiber.Ctx) error
	HealthCheck(c *fiber.Ctx) error
}

type HandlerImpl struct {
	service service.Service
	logger  *zap.SugaredLogger
}

func NewAccountHandler(service service.Service, logger *zap.SugaredLogger) *HandlerImpl {
	return &HandlerImpl{
		service: service,
		logger:  logger,
	}
}

// formatValidationErrors форматирует ошибки валидации в понятный формат для клиента
func formatValidationErrors(err error) fiber.Map {
	var errors []string
	if validationErrors, ok := err.(playgroundvalidator.ValidationErrors); ok {
		for _, e := range validationErrors {
			field := e.Field()
			tag := e.Tag()
			var message string
			switch tag {
			case "required":
				message = fmt.Sprintf("поле '%s' обязательно для заполнения", field)
			case "money":
				message = fmt.Sprintf("поле '%s' должно быть положительной суммой с максимум двумя знаками после запятой", field)
			case "max":
				message = fmt.Sprintf("поле '%s' должно содержать максимум %s символов", field, e.Param())
			default:
				message = fmt.Sprintf("поле '%s' не прошло валидацию: %s", field, tag)
			}
			errors = append(errors, message)
		}
	} else {
		errors = append(errors, err.Error())
	}
	return fiber.Map{
		"error":   "validation failed",
		"details": errors,
	}
}

func userID(c *fiber.Ctx) (string, error) {
	id := c.Get("X-User-Id")
	if id == "" {
		return "", errors.New("X-User-Id header is required")
	}
	return id, nil
}

// HealthCheck godoc
// @Summary     Проверка состояния сервиса
// @Description Проверяет доступность базы данных PostgreSQL и RabbitMQ.
// @Produce     json
// @Success     200 "Все компоненты доступны"
// @Failure     503 "Один или несколько компонентов недоступны"
// @tags        Health
// @Router      /health [get]
func (h *HandlerImpl) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	dbHealthy, brokerHealthy := h.service.HealthCheck(ctx)

	health := fiber.Map{
		"status":  dbHealthy && brokerHealthy,
		"message": "success",
		"checks": fiber.Map{
			"database": fiber.Map{
				"status": dbHealthy,
				"type":   "postgresql",
			},
			"broker": fiber.Map{
				"status": brokerHealthy,
				"type":   "rabbitmq",
			},
		},
	}
	if !dbHealthy || !brokerHealthy {
		health["message"] = "Some services are unavailable"
		return c.Status(fiber.StatusServiceUnavailable).JSON(health)
	}

	return c.Status(fiber.StatusOK).JSON(health)
}

// CreateAccount godoc
// @Summary     Создание счёта
// @Description Создает счёт пользователя, не более одного на пользователя
// @Accept      json
// @Produce     json
// @Param       X-User-Id header   string                       true "ID пользователя"
// @Param       body      body     entity.CreateAccountRequest  false "Начальный баланс"
// @Success     201       {object} entity.Account
// @Failure     400
// @Failure     401
// @Failure     409
// @Failure     500
// @tags        Account
// @Router      /v1/accounts [post]
func (h *HandlerImpl) CreateAccount(c *fiber.Ctx) error {
	user, err := userID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req entity.CreateAccountRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			h.logger.Errorf("error parsing body: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
		if err := validator.Validate.Struct(&req); err != nil {
			h.logger.Warnf("validation error: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(formatValidationErrors(err))
		}
	}

	account, err := h.service.CreateAccount(c.Context(), user, req.InitialBalance)
	if err != nil {
		return appers.SanitizeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(account)
}

// Deposit godoc
// @Summary     Пополнение счёта
// @Description Зачисляет сумму на счёт пользователя и пишет транзакцию в журнал
// @Accept      json
// @Produce     json
// @Param       X-User-Id header   string                true "ID пользователя"
// @Param       body      body     entity.DepositRequest true "Сумма пополнения"
// @Success     200       {object} entity.Transaction
// @Failure     400
// @Failure     401
// @Failure     404
// @Failure     500
// @tags        Account
// @Router      /v1/accounts/deposit [post]
func (h *HandlerImpl) Deposit(c *fiber.Ctx) error {
	user, err := userID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req entity.DepositRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Errorf("error parsing body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := validator.Validate.Struct(&req); err != nil {
		h.logger.Warnf("validation error: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(formatValidationErrors(err))
	}

	trx, err := h.service.Deposit(c.Context(), user, &req)
	if err != nil {
		return appers.SanitizeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(trx)
}

// GetBalance godoc
// @Summary     Баланс счёта
// @Produce     json
// @Param       X-User-Id header   string true "ID пользователя"
// @Success     200       {object} entity.BalanceResponse
// @Failure     401
// @Failure     404
// @Failure     500
// @tags        Account
// @Router      /v1/accounts/balance [get]
func (h *HandlerImpl) GetBalance(c *fiber.Ctx) error {
	user, err := userID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	balance, err := h.service.GetBalance(c.Context(), user)
	if err != nil {
		return appers.SanitizeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(balance)
}

// GetTransactions godoc
// @Summary     Журнал транзакций пользователя
// @Produce     json
// @Param       X-User-Id header  string true "ID пользователя"
// @Success     200 {array} entity.Transaction
// @Failure     401
// @Failure     500
// @tags        Transaction
// @Router      /v1/transactions [get]
func (h *HandlerImpl) GetTransactions(c *fiber.Ctx) error {
	user, err := userID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	trxs, err := h.service.GetTransactionsByUser(c.Context(), user)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	if trxs == nil {
		trxs = []entity.Transaction{}
	}

	return c.Status(fiber.StatusOK).JSON(trxs)
}

// GetPayments godoc
// @Summary     Платежи пользователя
// @Description Возвращает только транзакции типа Payment
// @Produce     json
// @Param       X-User-Id header  string true "ID пользователя"
// @Success     200 {array} entity.Transaction
// @Failure     401
// @Failure     500
// @tags        Transaction
// @Router      /v1/payments [get]
func (h *HandlerImpl) GetPayments(c *fiber.Ctx) error {
	user, err := userID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	payments, err := h.service.GetPaymentsByUser(c.Context(), user)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	if payments == nil {
		payments = []entity.Transaction{}
	}

	return c.Status(fiber.StatusOK).JSON(payments)
}
