// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"math"

	"github.com/google/uuid"
)

// MaxTotalSqInch ограничивает площадь вывески в одном заказе.
const MaxTotalSqInch = 1_000_000

var (
	// ErrInvalidArea возвращается для неположительной, нечисловой или слишком большой площади.
	ErrInvalidArea = errors.New("total area must be a positive number not exceeding 1000000 sq in")
	// ErrInvalidPrice возвращается для отрицательной или нечисловой цены.
	ErrInvalidPrice = errors.New("frontend price must be a non-negative number")
)

// IsValidOrderID проверяет, что идентификатор заказа является UUID.
func IsValidOrderID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// CheckoutInput проверяет числовые поля запроса на оформление заказа.
func CheckoutInput(totalSqInch, frontendPrice float64) error {
	if math.IsNaN(totalSqInch) || math.IsInf(totalSqInch, 0) || totalSqInch <= 0 || totalSqInch > MaxTotalSqInch {
		return ErrInvalidArea
	}
	if math.IsNaN(frontendPrice) || math.IsInf(frontendPrice, 0) || frontendPrice < 0 {
		return ErrInvalidPrice
	}
	return nil
}
