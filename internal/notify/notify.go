// Package notify отправляет уведомления о заказах: оповещение о новом заказе и подтверждение оплаты.
package notify

import (
	"fmt"
	"time"

	"github.com/mmeshcher/decorom-storefront/internal/model"
)

// EventType определяет вид уведомления.
type EventType string

const (
	EventOrderAlert       EventType = "order_alert"
	EventPaymentConfirmed EventType = "payment_confirmed"
)

// Event описывает уведомление, публикуемое по заказу.
type Event struct {
	Type          EventType `json:"type"`
	Subject       string    `json:"subject"`
	OrderID       string    `json:"order_id"`
	PaymentStatus string    `json:"payment_status"`
	FrontendPrice float64   `json:"frontend_price"`
	ServerPrice   float64   `json:"server_price"`
	PriceValid    bool      `json:"price_valid"`
	UserIP        string    `json:"user_ip"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewEvent формирует уведомление указанного типа по заказу.
func NewEvent(t EventType, o *model.Order) Event {
	var subject string
	switch t {
	case EventOrderAlert:
		validity := "YES"
		if !o.PriceValid {
			validity = "NO - POTENTIAL FRAUD"
		}
		subject = fmt.Sprintf("[Order #%s] - Status: %s - IP: %s - Price valid: %s", o.ID, o.PaymentStatus, o.UserIP, validity)
	case EventPaymentConfirmed:
		subject = fmt.Sprintf("Payment Received - Order #%s", o.ID)
	default:
		subject = fmt.Sprintf("Order #%s", o.ID)
	}

	return Event{
		Type:          t,
		Subject:       subject,
		OrderID:       o.ID,
		PaymentStatus: string(o.PaymentStatus),
		FrontendPrice: o.FrontendPrice,
		ServerPrice:   o.ServerPrice,
		PriceValid:    o.PriceValid,
		UserIP:        o.UserIP,
		CustomerEmail: o.CustomerAddress.Email,
		OccurredAt:    time.Now().UTC(),
	}
}
