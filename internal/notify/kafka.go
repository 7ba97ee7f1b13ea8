package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mmeshcher/decorom-storefront/internal/model"
)

const publishTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier публикует уведомления в топик Kafka. Ошибки публикации только логируются.
type KafkaNotifier struct {
	writer messageWriter
	logger *zap.Logger
}

// ParseBrokers разбирает список брокеров, разделённых запятыми.
func ParseBrokers(brokersCSV string) []string {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewKafkaNotifier создаёт издателя уведомлений для указанных брокеров и топика.
func NewKafkaNotifier(brokers []string, topic string, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		logger: logger,
	}
}

// OrderAlert публикует оповещение о созданном заказе.
func (n *KafkaNotifier) OrderAlert(ctx context.Context, o *model.Order) {
	n.publish(ctx, NewEvent(EventOrderAlert, o))
}

// PaymentConfirmed публикует подтверждение успешной оплаты.
func (n *KafkaNotifier) PaymentConfirmed(ctx context.Context, o *model.Order) {
	n.publish(ctx, NewEvent(EventPaymentConfirmed, o))
}

func (n *KafkaNotifier) publish(ctx context.Context, evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		n.logger.Error("marshal notification", zap.Error(err), zap.String("orderID", evt.OrderID))
		return
	}

	// Уведомление не должно теряться из-за отмены запроса клиентом.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: data,
		Time:  evt.OccurredAt,
	})
	if err != nil {
		n.logger.Error("publish notification",
			zap.Error(err),
			zap.String("type", string(evt.Type)),
			zap.String("orderID", evt.OrderID),
		)
		return
	}

	n.logger.Debug("notification published",
		zap.String("type", string(evt.Type)),
		zap.String("orderID", evt.OrderID),
	)
}

// Close завершает работу издателя, дожидаясь отправки буферизованных сообщений.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
