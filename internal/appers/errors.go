package appers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Kind разделяет три категории отказов, которые нельзя смешивать:
// бизнес-результат (терминальный, не повторяется), транзиентный
// инфраструктурный сбой (повторяется) и неожиданная ошибка.
type Kind int

const (
	KindBusiness Kind = iota
	KindTransient
	KindFatal
)

type Failure struct {
	Kind       Kind
	StatusCode int
	Msg        string
}

func (f Failure) Error() string {
	return f.Msg
}

var (
	ErrOrderNotFound = Failure{
		Kind:       KindBusiness,
		StatusCode: http.StatusNotFound,
		Msg:        "order not found",
	}
	ErrAccountNotFound = Failure{
		Kind:       KindBusiness,
		StatusCode: http.StatusNotFound,
		Msg:        "Account not found",
	}
	ErrAccountAlreadyExists = Failure{
		Kind:       KindBusiness,
		StatusCode: http.StatusConflict,
		Msg:        "account already exists",
	}
	ErrInsufficientFunds = Failure{
		Kind:       KindBusiness,
		StatusCode: http.StatusConflict,
		Msg:        "Insufficient funds",
	}
	ErrDuplicateMessage = Failure{
		Kind:       KindBusiness,
		StatusCode: http.StatusConflict,
		Msg:        "message already recorded",
	}
)

func Business(msg string) Failure {
	return Failure{Kind: KindBusiness, StatusCode: http.StatusUnprocessableEntity, Msg: msg}
}

func Transient(msg string) Failure {
	return Failure{Kind: KindTransient, StatusCode: http.StatusServiceUnavailable, Msg: msg}
}

// KindOf классифицирует ошибку. Всё, что не размечено как Failure,
// считается Fatal - неизвестную ошибку нельзя молча повторять.
func KindOf(err error) Kind {
	var f Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindFatal
}

func IsBusiness(err error) bool {
	return err != nil && KindOf(err) == KindBusiness
}

func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

func SanitizeError(c *fiber.Ctx, err error) error {
	var f Failure
	if errors.As(err, &f) {
		code := f.StatusCode
		if code == 0 {
			code = http.StatusInternalServerError
		}
		return c.Status(code).JSON(fiber.Map{
			"message": f.Msg,
		})
	}
	return NewErr(c, http.StatusInternalServerError, err)
}

func NewErr(ctx *fiber.Ctx, status int, err error) error {
	return ctx.Status(status).JSON(fiber.Map{
		"message": err.Error(),
	})
}
