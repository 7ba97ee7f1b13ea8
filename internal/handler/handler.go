// Package handler содержит HTTP-обработчики API витрины.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/decorom-storefront/internal/gateway"
	"github.com/mmeshcher/decorom-storefront/internal/metrics"
	"github.com/mmeshcher/decorom-storefront/internal/model"
	"github.com/mmeshcher/decorom-storefront/internal/pricing"
	"github.com/mmeshcher/decorom-storefront/internal/repository"
	"github.com/mmeshcher/decorom-storefront/internal/service"
	"github.com/mmeshcher/decorom-storefront/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	HandlePaymentCallback(ctx context.Context, encodedResponse, signature string) (*service.CallbackResult, error)
	Ping(ctx context.Context) error
}

// Handler реализует HTTP-обработчики API витрины.
type Handler struct {
	service      Service
	logger       *zap.Logger
	metrics      *metrics.Metrics
	trustedProxy bool
}

// Option настраивает Handler.
type Option func(*Handler)

// WithTrustedProxy разрешает брать адрес клиента из X-Forwarded-For, X-Real-IP и True-Client-IP.
// Включать только за прокси, который перезаписывает эти заголовки.
func WithTrustedProxy() Option {
	return func(h *Handler) {
		h.trustedProxy = true
	}
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, m *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		service: s,
		logger:  logger,
		metrics: m,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type checkoutRequest struct {
	Category         string                `json:"category"`
	Material         string                `json:"material"`
	Size             string                `json:"size"`
	TotalSqInch      float64               `json:"totalSqInch"`
	FrontendPrice    float64               `json:"frontendPrice"`
	LightingIncluded bool                  `json:"lightingIncluded"`
	FittingIncluded  bool                  `json:"fittingIncluded"`
	CustomerAddress  model.CustomerAddress `json:"customerAddress"`
}

type checkoutResponse struct {
	Message    string `json:"message"`
	OrderID    string `json:"orderId"`
	PaymentURL string `json:"paymentUrl"`
}

// Checkout оформляет заказ и возвращает адрес страницы оплаты.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := validation.CheckoutInput(req.TotalSqInch, req.FrontendPrice); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.service.Checkout(r.Context(), service.CheckoutRequest{
		Category:         req.Category,
		Material:         req.Material,
		Size:             req.Size,
		TotalSqInch:      req.TotalSqInch,
		FrontendPrice:    req.FrontendPrice,
		LightingIncluded: req.LightingIncluded,
		FittingIncluded:  req.FittingIncluded,
		CustomerAddress:  req.CustomerAddress,
		UserIP:           clientIP(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPriceMismatch):
			http.Error(w, "Price mismatch detected. Order flagged.", http.StatusBadRequest)
		case errors.Is(err, pricing.ErrUnknownMaterial):
			h.logger.Error("checkout rejected", zap.Error(err), zap.String("material", req.Material))
			http.Error(w, "Unknown material", http.StatusInternalServerError)
		case errors.Is(err, gateway.ErrGateway):
			http.Error(w, "Failed to initiate payment", http.StatusInternalServerError)
		default:
			h.logger.Error("checkout error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		Message:    "Order Created",
		OrderID:    res.OrderID,
		PaymentURL: res.PaymentURL,
	})
}

type orderResponse struct {
	OrderID               string                `json:"orderId"`
	Category              string                `json:"category"`
	Material              string                `json:"material"`
	Size                  string                `json:"size"`
	ServerCalculatedPrice float64               `json:"serverCalculatedPrice"`
	PaymentStatus         string                `json:"paymentStatus"`
	CustomerAddress       model.CustomerAddress `json:"customerAddress"`
	CreatedAt             string                `json:"createdAt"`
}

// GetOrder возвращает сводку по заказу.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	if !validation.IsValidOrderID(orderID) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	o, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get order error", zap.Error(err), zap.String("orderID", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, orderResponse{
		OrderID:               o.ID,
		Category:              o.Category,
		Material:              o.Material,
		Size:                  o.Size,
		ServerCalculatedPrice: o.ServerPrice,
		PaymentStatus:         string(o.PaymentStatus),
		CustomerAddress:       o.CustomerAddress,
		CreatedAt:             o.CreatedAt.Format(time.RFC3339),
	})
}

type paymentNotification struct {
	Response string `json:"response"`
}

// PaymentNotification принимает уведомление платёжного шлюза о результате оплаты.
func (h *Handler) PaymentNotification(w http.ResponseWriter, r *http.Request) {
	// Тело, которое не удалось разобрать, всё равно проходит проверку подписи и отклоняется ею.
	var req paymentNotification
	_ = json.NewDecoder(r.Body).Decode(&req)

	res, err := h.service.HandlePaymentCallback(r.Context(), req.Response, r.Header.Get("X-VERIFY"))
	if err != nil {
		if errors.Is(err, service.ErrSignatureInvalid) {
			h.logger.Warn("payment callback rejected", zap.String("remoteAddr", r.RemoteAddr))
			http.Error(w, "Invalid Checksum", http.StatusBadRequest)
			return
		}
		h.logger.Error("payment callback error", zap.Error(err))
		http.Error(w, "Error processing callback", http.StatusInternalServerError)
		return
	}

	h.logger.Debug("payment callback processed",
		zap.String("orderID", res.OrderID),
		zap.String("paymentStatus", string(res.Status)),
		zap.Bool("duplicate", res.Duplicate),
	)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Received"))
}

// Health сообщает о доступности хранилища.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
