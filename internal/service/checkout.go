package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/decorom-storefront/internal/gateway"
	"github.com/mmeshcher/decorom-storefront/internal/metrics"
	"github.com/mmeshcher/decorom-storefront/internal/model"
	"github.com/mmeshcher/decorom-storefront/internal/pricing"
)

// CheckoutRequest описывает конфигурацию вывески, отправленную клиентом.
type CheckoutRequest struct {
	Category         string
	Material         string
	Size             string
	TotalSqInch      float64
	FrontendPrice    float64
	LightingIncluded bool
	FittingIncluded  bool
	CustomerAddress  model.CustomerAddress
	UserIP           string
}

// CheckoutResult содержит идентификатор созданного заказа и адрес оплаты.
// При ошибке после сохранения заказа PaymentURL пуст, но OrderID заполнен.
type CheckoutResult struct {
	OrderID     string
	ServerPrice float64
	PaymentURL  string
}

// Checkout пересчитывает цену, сохраняет заказ в статусе PENDING и инициирует оплату.
// Заказ сохраняется и при расхождении цены, чтобы подозрительные попытки оставались в истории;
// в этом случае возвращается ErrPriceMismatch и оплата не инициируется.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	serverPrice, err := pricing.CalculatePrice(req.Material, req.TotalSqInch, req.LightingIncluded, req.FittingIncluded)
	if err != nil {
		s.metrics.Checkout(metrics.CheckoutUnknownMaterial)
		return nil, err
	}

	order := &model.Order{
		ID:               uuid.NewString(),
		Category:         req.Category,
		Material:         req.Material,
		Size:             req.Size,
		TotalSqInch:      req.TotalSqInch,
		FrontendPrice:    req.FrontendPrice,
		ServerPrice:      serverPrice,
		PriceValid:       pricing.IsPriceValid(serverPrice, req.FrontendPrice),
		PaymentStatus:    model.PaymentStatusPending,
		CustomerAddress:  req.CustomerAddress,
		UserIP:           req.UserIP,
		LightingIncluded: req.LightingIncluded,
		FittingIncluded:  req.FittingIncluded,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		s.metrics.Checkout(metrics.CheckoutError)
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.notifier.OrderAlert(ctx, order)

	s.logger.Info("order created",
		zap.String("orderID", order.ID),
		zap.String("paymentStatus", string(order.PaymentStatus)),
		zap.Bool("priceValid", order.PriceValid),
	)

	result := &CheckoutResult{
		OrderID:     order.ID,
		ServerPrice: serverPrice,
	}

	if !order.PriceValid {
		s.logger.Warn("price mismatch detected",
			zap.String("orderID", order.ID),
			zap.Float64("frontendPrice", req.FrontendPrice),
			zap.Float64("serverPrice", serverPrice),
			zap.String("userIP", req.UserIP),
		)
		s.metrics.Checkout(metrics.CheckoutPriceMismatch)
		return result, fmt.Errorf("%w: order %s flagged", ErrPriceMismatch, order.ID)
	}

	paymentURL, err := s.gateway.Initiate(ctx, order)
	if err != nil {
		s.logger.Error("failed to initiate payment", zap.Error(err), zap.String("orderID", order.ID))
		if errors.Is(err, gateway.ErrGateway) {
			s.metrics.Checkout(metrics.CheckoutGatewayError)
		} else {
			s.metrics.Checkout(metrics.CheckoutError)
		}
		return result, fmt.Errorf("initiate payment for order %s: %w", order.ID, err)
	}

	result.PaymentURL = paymentURL
	s.metrics.Checkout(metrics.CheckoutOK)

	return result, nil
}
