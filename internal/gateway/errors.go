package gateway

import (
	"errors"
	"fmt"
)

// ErrGateway объединяет все ошибки инициации платежа.
var ErrGateway = errors.New("payment gateway error")

// ErrInvalidAmount возвращается, если сумму заказа нельзя передать шлюзу. Оборачивает ErrGateway.
var ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrGateway)

// StatusError описывает неуспешный ответ шлюза вместе с телом для диагностики.
type StatusError struct {
	StatusCode int
	Body       string
	Reason     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("payment gateway: %s (status %d): %s", e.Reason, e.StatusCode, e.Body)
}

// Unwrap позволяет сравнивать StatusError с ErrGateway через errors.Is.
func (e *StatusError) Unwrap() error {
	return ErrGateway
}
