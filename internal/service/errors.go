package service

import "errors"

var (
	// ErrPriceMismatch возвращается, если цена клиента расходится с серверной. Заказ сохранён и помечен.
	ErrPriceMismatch = errors.New("price mismatch")
	// ErrSignatureInvalid возвращается, если подпись уведомления шлюза не прошла проверку.
	ErrSignatureInvalid = errors.New("invalid callback signature")
	// ErrProcessing возвращается, если уведомление шлюза не удалось разобрать или применить.
	ErrProcessing = errors.New("callback processing error")
)
