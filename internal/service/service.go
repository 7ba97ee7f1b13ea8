// Package service реализует бизнес-логику витрины: оформление заказа, инициацию оплаты
// и сверку уведомлений платёжного шлюза.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/decorom-storefront/internal/metrics"
	"github.com/mmeshcher/decorom-storefront/internal/model"
)

// Repository описывает контракт хранилища заказов, используемый сервисом.
type Repository interface {
	Close() error
	Ping(ctx context.Context) error
	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	TransitionPaymentStatus(ctx context.Context, id string, to model.PaymentStatus) (*model.Order, bool, error)
}

// PaymentGateway инициирует платёж и возвращает адрес страницы оплаты.
type PaymentGateway interface {
	Initiate(ctx context.Context, o *model.Order) (string, error)
}

// CallbackVerifier проверяет подпись уведомления шлюза.
type CallbackVerifier interface {
	Verify(base64Response, signature string) bool
}

// Notifier отправляет уведомления по заказам. Ошибки доставки не возвращаются вызывающему.
type Notifier interface {
	OrderAlert(ctx context.Context, o *model.Order)
	PaymentConfirmed(ctx context.Context, o *model.Order)
}

// ReplayCache запоминает уже обработанные уведомления шлюза.
type ReplayCache interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	GenerateKey(operation, key string) string
}

// Service содержит бизнес-логику витрины.
type Service struct {
	repo     Repository
	gateway  PaymentGateway
	verifier CallbackVerifier
	notifier Notifier
	logger   *zap.Logger

	replay    ReplayCache
	replayTTL time.Duration
	metrics   *metrics.Metrics
}

// Option настраивает необязательные зависимости сервиса.
type Option func(*Service)

// WithReplayCache включает кэш обработанных уведомлений шлюза.
func WithReplayCache(c ReplayCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.replay = c
		s.replayTTL = ttl
	}
}

// WithMetrics включает учёт исходов операций.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService создаёт сервис с указанными хранилищем, шлюзом, проверкой подписи и уведомлениями.
func NewService(repo Repository, gateway PaymentGateway, verifier CallbackVerifier, notifier Notifier, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		gateway:  gateway,
		verifier: verifier,
		notifier: notifier,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.repo.GetOrder(ctx, id)
}
