package gateway

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/mmeshcher/decorom-storefront/internal/model"
)

// MockClient имитирует шлюз для окружений без доступа к нему: запрос подписывается,
// но никуда не отправляется, а в ответ возвращается адрес страницы успешной оплаты.
type MockClient struct {
	creds  Credentials
	opts   Options
	logger *zap.Logger
}

// NewMockClient создаёт имитацию шлюза.
func NewMockClient(creds Credentials, opts Options, logger *zap.Logger) *MockClient {
	return &MockClient{creds: creds, opts: opts, logger: logger}
}

// Initiate возвращает адрес перенаправления с признаком mock=true.
func (m *MockClient) Initiate(_ context.Context, order *model.Order) (string, error) {
	payReq, err := NewPayRequest(m.creds, m.opts, order)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGateway, err)
	}

	payload, err := payReq.Encode()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGateway, err)
	}

	u, err := url.Parse(payReq.RedirectURL)
	if err != nil {
		return "", fmt.Errorf("%w: parse redirect url: %w", ErrGateway, err)
	}
	q := u.Query()
	q.Set("mock", "true")
	u.RawQuery = q.Encode()

	m.logger.Info("mock payment initiated",
		zap.String("orderID", order.ID),
		zap.Int64("amount", payReq.Amount),
		zap.String("checksum", m.creds.SignRequest(payload, PayPath)),
	)

	return u.String(), nil
}
