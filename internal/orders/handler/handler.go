package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payments/internal/appers"
	"payments/internal/orders/entity"
	"payments/internal/orders/service"
	"payments/pkg/validator"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

type Handler interface {
	CreateOrder(c *fiber.Ctx) error
	GetOrder(c *fiber.Ctx) error
	GetOrders(c *fiber.Ctx) error
	HealthCheck(c *fiber.Ctx) error
}

type HandlerImpl struct {
	service service.Service
	logger  *zap.SugaredLogger
}

func NewOrderHandler(service service.Service, logger *zap.SugaredLogger) *HandlerImpl {
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

// userID достаёт идентификатор пользователя из заголовка X-User-Id.
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

// CreateOrder godoc
// @Summary     Создание заказа
// @Description Создает заказ и ставит запрос на оплату в очередь (через outbox)
// @Accept      json
// @Produce     json
// @Param       X-User-Id header   string                     true "ID пользователя"
// @Param       body      body     entity.CreateOrderRequest  true "Данные заказа"
// @Success     201       {object} entity.Order
// @Failure     400
// @Failure     401
// @Failure     500
// @tags        Order
// @Router      /v1/orders [post]
func (h *HandlerImpl) CreateOrder(c *fiber.Ctx) error {
	user, err := userID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req entity.CreateOrderRequest
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

	order, err := h.service.CreateOrder(c.Context(), user, &req)
	if err != nil {
		return appers.SanitizeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

// GetOrder godoc
// @Summary     Получение заказа
// @Description Возвращает заказ по идентификатору, только его владельцу
// @Produce     json
// @Param       X-User-Id header   string true "ID пользователя"
// @Param       id        path     string true "ID заказа"
// @Success     200 {object} entity.Order
// @Failure     400
// @Failure     401
// @Failure     404
// @Failure     500
// @tags        Order
// @Router      /v1/orders/{id} [get]
func (h *HandlerImpl) GetOrder(c *fiber.Ctx) error {
	user, err := userID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	id, err := uuid.FromString(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid order id",
		})
	}

	order, err := h.service.GetOrder(c.Context(), id, user)
	switch {
	case errors.Is(err, appers.ErrOrderNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"description": err.Error()})
	case err != nil:
		return appers.SanitizeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(order)
}

// GetOrders godoc
// @Summary     Список заказов пользователя
// @Description Возвращает заказы пользователя из заголовка X-User-Id, новые первыми
// @Produce     json
// @Param       X-User-Id header  string true "ID пользователя"
// @Success     200 {array} entity.Order
// @Failure     401
// @Failure     500
// @tags        Order
// @Router      /v1/orders [get]
func (h *HandlerImpl) GetOrders(c *fiber.Ctx) error {
	user, err := userID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	orders, err := h.service.GetOrdersByUser(c.Context(), user)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	if orders == nil {
		orders = []entity.Order{}
	}

	return c.Status(fiber.StatusOK).JSON(orders)
}
