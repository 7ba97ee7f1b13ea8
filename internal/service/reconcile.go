package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/decorom-storefront/internal/metrics"
	"github.com/mmeshcher/decorom-storefront/internal/model"
	"github.com/mmeshcher/decorom-storefront/internal/repository"
)

const (
	codePaymentSuccess = "PAYMENT_SUCCESS"
	replayOperation    = "callback"
)

type callbackPayload struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MerchantID            string `json:"merchantId"`
		MerchantTransactionID string `json:"merchantTransactionId"`
		TransactionID         string `json:"transactionId"`
		Amount                int64  `json:"amount"`
	} `json:"data"`
}

// CallbackResult описывает итог обработки уведомления шлюза.
type CallbackResult struct {
	OrderID   string
	Status    model.PaymentStatus
	Duplicate bool
}

// HandlePaymentCallback проверяет подпись уведомления шлюза, разбирает его и применяет к заказу.
// Повторная доставка уже обработанного уведомления завершается успешно без изменений.
func (s *Service) HandlePaymentCallback(ctx context.Context, encodedResponse, signature string) (*CallbackResult, error) {
	if !s.verifier.Verify(encodedResponse, signature) {
		s.metrics.Callback(metrics.CallbackRejected)
		return nil, ErrSignatureInvalid
	}

	replayKey := s.replayKey(encodedResponse)
	if s.seen(ctx, replayKey) {
		s.metrics.Callback(metrics.CallbackDuplicate)
		s.logger.Info("duplicate payment callback skipped by replay cache")
		return &CallbackResult{Duplicate: true}, nil
	}

	payload, err := decodeCallback(encodedResponse)
	if err != nil {
		s.metrics.Callback(metrics.CallbackError)
		return nil, err
	}

	res, err := s.Reconcile(ctx, payload.Data.MerchantTransactionID, payload.Code)
	if err != nil {
		s.metrics.Callback(metrics.CallbackError)
		return nil, err
	}

	if res.Duplicate {
		s.metrics.Callback(metrics.CallbackDuplicate)
	} else {
		s.metrics.Callback(metrics.CallbackApplied)
	}
	s.remember(ctx, replayKey, res.Status)

	return res, nil
}

// Reconcile применяет статус платежа code к заказу orderID.
// Переход выполняется один раз: PENDING → SUCCESS при коде PAYMENT_SUCCESS, иначе PENDING → FAILED.
func (s *Service) Reconcile(ctx context.Context, orderID, code string) (*CallbackResult, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			s.logger.Warn("payment callback for unknown order", zap.String("orderID", orderID))
		}
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}

	if order.PaymentStatus.IsTerminal() {
		s.logger.Info("duplicate payment callback",
			zap.String("orderID", orderID),
			zap.String("paymentStatus", string(order.PaymentStatus)),
			zap.String("code", code),
		)
		return &CallbackResult{OrderID: orderID, Status: order.PaymentStatus, Duplicate: true}, nil
	}

	target := model.PaymentStatusFailed
	if code == codePaymentSuccess {
		target = model.PaymentStatusSuccess
	}

	if target == model.PaymentStatusSuccess && !order.PriceValid {
		s.logger.Error("payment success reported for order with mismatched price",
			zap.String("orderID", orderID),
			zap.Float64("frontendPrice", order.FrontendPrice),
			zap.Float64("serverPrice", order.ServerPrice),
		)
		return nil, fmt.Errorf("%w: order %s has unverified price", ErrProcessing, orderID)
	}

	updated, applied, err := s.repo.TransitionPaymentStatus(ctx, orderID, target)
	if err != nil {
		return nil, fmt.Errorf("update order %s: %w", orderID, err)
	}

	if !applied {
		s.logger.Info("payment callback lost race to concurrent delivery",
			zap.String("orderID", orderID),
			zap.String("paymentStatus", string(updated.PaymentStatus)),
		)
		return &CallbackResult{OrderID: orderID, Status: updated.PaymentStatus, Duplicate: true}, nil
	}

	s.logger.Info("payment status updated",
		zap.String("orderID", orderID),
		zap.String("paymentStatus", string(updated.PaymentStatus)),
		zap.String("code", code),
	)

	if updated.PaymentStatus == model.PaymentStatusSuccess {
		s.notifier.PaymentConfirmed(ctx, updated)
	}

	return &CallbackResult{OrderID: orderID, Status: updated.PaymentStatus}, nil
}

func decodeCallback(encoded string) (*callbackPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %w", ErrProcessing, err)
	}

	var p callbackPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: decode json: %w", ErrProcessing, err)
	}

	if p.Data.MerchantTransactionID == "" {
		return nil, fmt.Errorf("%w: missing transaction id", ErrProcessing)
	}
	if _, err := uuid.Parse(p.Data.MerchantTransactionID); err != nil {
		return nil, fmt.Errorf("%w: malformed transaction id %q", ErrProcessing, p.Data.MerchantTransactionID)
	}
	if p.Code == "" {
		return nil, fmt.Errorf("%w: missing status code", ErrProcessing)
	}

	return &p, nil
}

func (s *Service) replayKey(encoded string) string {
	if s.replay == nil {
		return ""
	}
	sum := sha256.Sum256([]byte(encoded))
	return s.replay.GenerateKey(replayOperation, hex.EncodeToString(sum[:]))
}

func (s *Service) seen(ctx context.Context, key string) bool {
	if s.replay == nil {
		return false
	}
	val, err := s.replay.Get(ctx, key)
	if err != nil {
		s.logger.Warn("replay cache lookup failed", zap.Error(err))
		return false
	}
	return val != ""
}

func (s *Service) remember(ctx context.Context, key string, status model.PaymentStatus) {
	if s.replay == nil {
		return
	}
	if _, err := s.replay.SetNX(ctx, key, string(status), s.replayTTL); err != nil {
		s.logger.Warn("replay cache store failed", zap.Error(err))
	}
}
