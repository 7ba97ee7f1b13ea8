package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/decorom-storefront/internal/model"
)

// LogNotifier пишет уведомления в журнал. Используется, когда Kafka не настроена.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier создаёт LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// OrderAlert пишет в журнал оповещение о новом заказе; при расхождении цены на уровне Warn.
func (n *LogNotifier) OrderAlert(_ context.Context, o *model.Order) {
	n.log(NewEvent(EventOrderAlert, o))
}

// PaymentConfirmed пишет в журнал подтверждение оплаты заказа.
func (n *LogNotifier) PaymentConfirmed(_ context.Context, o *model.Order) {
	n.log(NewEvent(EventPaymentConfirmed, o))
}

func (n *LogNotifier) log(evt Event) {
	fields := []zap.Field{
		zap.String("type", string(evt.Type)),
		zap.String("orderID", evt.OrderID),
		zap.String("subject", evt.Subject),
		zap.Float64("frontendPrice", evt.FrontendPrice),
		zap.Float64("serverPrice", evt.ServerPrice),
		zap.Bool("priceValid", evt.PriceValid),
		zap.String("userIP", evt.UserIP),
	}
	if evt.Type == EventOrderAlert && !evt.PriceValid {
		n.logger.Warn("order notification", fields...)
		return
	}
	n.logger.Info("order notification", fields...)
}
