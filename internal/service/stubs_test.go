package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/mmeshcher/decorom-storefront/internal/gateway"
	"github.com/mmeshcher/decorom-storefront/internal/model"
	"github.com/mmeshcher/decorom-storefront/internal/repository"
)

// memoryRepo хранит заказы в памяти и выполняет переход статуса под мьютексом,
// как условный UPDATE в PostgreSQL.
type memoryRepo struct {
	mu        sync.Mutex
	orders    map[string]model.Order
	createErr error
	gets      int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: map[string]model.Order{}}
}

func (r *memoryRepo) Close() error                   { return nil }
func (r *memoryRepo) Ping(ctx context.Context) error { return nil }

func (r *memoryRepo) CreateOrder(ctx context.Context, o *model.Order) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return repository.ErrOrderExists
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	r.orders[o.ID] = *o
	return nil
}

func (r *memoryRepo) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (r *memoryRepo) TransitionPaymentStatus(ctx context.Context, id string, to model.PaymentStatus) (*model.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, false, repository.ErrOrderNotFound
	}
	if o.PaymentStatus != model.PaymentStatusPending {
		return &o, false, nil
	}
	o.PaymentStatus = to
	o.UpdatedAt = time.Now()
	r.orders[id] = o
	return &o, true, nil
}

func (r *memoryRepo) only() model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		return o
	}
	return model.Order{}
}

type stubGateway struct {
	mu    sync.Mutex
	url   string
	err   error
	calls int
}

func (g *stubGateway) Initiate(ctx context.Context, o *model.Order) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.url + "?orderId=" + o.ID, nil
}

type countingNotifier struct {
	mu        sync.Mutex
	alerts    []model.Order
	confirmed []model.Order
}

func (n *countingNotifier) OrderAlert(ctx context.Context, o *model.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, *o)
}

func (n *countingNotifier) PaymentConfirmed(ctx context.Context, o *model.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, *o)
}

func (n *countingNotifier) confirmations() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.confirmed)
}

type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}}
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}

func (c *memoryCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; ok {
		return false, nil
	}
	c.values[key] = value
	return true, nil
}

func (c *memoryCache) GenerateKey(operation, key string) string {
	return "test:" + operation + ":" + key
}

var testCreds = gateway.Credentials{
	MerchantID: "MERCHANTUAT",
	SaltKey:    "test-salt-key",
	SaltIndex:  "1",
}

var errGatewayDown = errors.New("gateway down")

// signedCallback возвращает base64-тело уведомления и его подпись X-VERIFY.
func signedCallback(orderID, code string) (string, string) {
	payload := map[string]any{
		"success": code == codePaymentSuccess,
		"code":    code,
		"message": "Your payment is successful.",
		"data": map[string]any{
			"merchantId":            testCreds.MerchantID,
			"merchantTransactionId": orderID,
			"transactionId":         "T2401011234567890",
			"amount":                104000,
		},
	}
	raw, _ := json.Marshal(payload)
	encoded := base64.StdEncoding.EncodeToString(raw)
	return encoded, testCreds.Checksum(encoded)
}
