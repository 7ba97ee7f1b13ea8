package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/decorom-storefront/internal/gateway"
	"github.com/mmeshcher/decorom-storefront/internal/metrics"
	"github.com/mmeshcher/decorom-storefront/internal/model"
	"github.com/mmeshcher/decorom-storefront/internal/pricing"
	"github.com/mmeshcher/decorom-storefront/internal/repository"
	"github.com/mmeshcher/decorom-storefront/internal/service"
)

const testOrderID = "6f1c2f1e-8a4b-4c1d-9e2f-3a4b5c6d7e8f"

type stubService struct {
	checkoutReq  service.CheckoutRequest
	checkoutResp *service.CheckoutResult
	checkoutErr  error

	order    *model.Order
	orderErr error

	callbackSignature string
	callbackResp      *service.CallbackResult
	callbackErr       error

	pingErr error
}

func (s *stubService) Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error) {
	s.checkoutReq = req
	return s.checkoutResp, s.checkoutErr
}

func (s *stubService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubService) HandlePaymentCallback(ctx context.Context, encodedResponse, signature string) (*service.CallbackResult, error) {
	s.callbackSignature = signature
	return s.callbackResp, s.callbackErr
}

func (s *stubService) Ping(ctx context.Context) error {
	return s.pingErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewHandler(svc, logger, metrics.New())
}

func checkoutBody(t *testing.T, frontendPrice float64) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(checkoutRequest{
		Category:      "Name Plate",
		Material:      "Acrylic",
		Size:          "8x10",
		TotalSqInch:   80,
		FrontendPrice: frontendPrice,
		CustomerAddress: model.CustomerAddress{
			FullName: "Asha Rao",
			Email:    "asha@example.com",
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(body)
}

func TestCheckout_Success(t *testing.T) {
	svc := &stubService{
		checkoutResp: &service.CheckoutResult{OrderID: testOrderID, PaymentURL: "https://pay.example.com/page/1"},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/checkout", checkoutBody(t, 1040))
	req.RemoteAddr = "203.0.113.7:53211"
	rec := httptest.NewRecorder()

	h.Checkout(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var body checkoutResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.OrderID != testOrderID || body.PaymentURL != "https://pay.example.com/page/1" || body.Message == "" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if svc.checkoutReq.UserIP != "203.0.113.7" {
		t.Fatalf("user ip = %q, want 203.0.113.7", svc.checkoutReq.UserIP)
	}
	if svc.checkoutReq.CustomerAddress.Email != "asha@example.com" {
		t.Fatalf("customer address not forwarded: %+v", svc.checkoutReq.CustomerAddress)
	}
}

func TestCheckout_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "price mismatch", err: fmt.Errorf("%w: order flagged", service.ErrPriceMismatch), status: http.StatusBadRequest},
		{name: "unknown material", err: fmt.Errorf("%w: %q", pricing.ErrUnknownMaterial, "vinyl"), status: http.StatusInternalServerError},
		{name: "gateway failure", err: &gateway.StatusError{StatusCode: http.StatusBadGateway, Reason: "unexpected status"}, status: http.StatusInternalServerError},
		{name: "store failure", err: errors.New("db down"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{
				checkoutResp: &service.CheckoutResult{OrderID: testOrderID},
				checkoutErr:  tt.err,
			})

			rec := httptest.NewRecorder()
			h.Checkout(rec, httptest.NewRequest(http.MethodPost, "/checkout", checkoutBody(t, 1040)))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestCheckout_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"material":`},
		{name: "zero area", body: `{"material":"Acrylic","totalSqInch":0,"frontendPrice":10}`},
		{name: "negative price", body: `{"material":"Acrylic","totalSqInch":80,"frontendPrice":-1}`},
		{name: "oversized area", body: `{"material":"SS","totalSqInch":9223372036854776000,"frontendPrice":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			h := newTestHandler(t, svc)

			rec := httptest.NewRecorder()
			h.Checkout(rec, httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(tt.body)))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if svc.checkoutReq.Material != "" {
				t.Fatalf("service must not be called")
			}
		})
	}
}

func TestGetOrder_JSONResponse(t *testing.T) {
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	svc := &stubService{
		order: &model.Order{
			ID:            testOrderID,
			Category:      "Name Plate",
			Material:      "Acrylic",
			Size:          "8x10",
			ServerPrice:   1040,
			PaymentStatus: model.PaymentStatusSuccess,
			CreatedAt:     created,
		},
	}
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+testOrderID, nil))

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var body orderResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ServerCalculatedPrice != 1040 || body.PaymentStatus != "SUCCESS" || body.CreatedAt != "2026-10-01T12:00:00Z" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	tests := []struct {
		name string
		id   string
		svc  *stubService
	}{
		{name: "unknown order", id: testOrderID, svc: &stubService{orderErr: repository.ErrOrderNotFound}},
		{name: "malformed id", id: "not-a-uuid", svc: &stubService{order: &model.Order{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.svc)

			req := httptest.NewRequest(http.MethodGet, "/orders/"+tt.id, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("orderId", tt.id)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			rec := httptest.NewRecorder()
			h.GetOrder(rec, req)

			if rec.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
			}
		})
	}
}

func TestPaymentNotification_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		resp   *service.CallbackResult
		err    error
		status int
	}{
		{name: "applied", resp: &service.CallbackResult{OrderID: testOrderID, Status: model.PaymentStatusSuccess}, status: http.StatusOK},
		{name: "duplicate", resp: &service.CallbackResult{OrderID: testOrderID, Status: model.PaymentStatusSuccess, Duplicate: true}, status: http.StatusOK},
		{name: "bad signature", err: service.ErrSignatureInvalid, status: http.StatusBadRequest},
		{name: "malformed payload", err: fmt.Errorf("%w: decode json", service.ErrProcessing), status: http.StatusInternalServerError},
		{name: "unknown order", err: fmt.Errorf("load order: %w", repository.ErrOrderNotFound), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{callbackResp: tt.resp, callbackErr: tt.err}
			h := newTestHandler(t, svc)

			req := httptest.NewRequest(http.MethodPost, "/payment-notification", bytes.NewBufferString(`{"response":"eyJjb2RlIjoiUEFZTUVOVF9TVUNDRVNTIn0="}`))
			req.Header.Set("X-VERIFY", "abc###1")
			rec := httptest.NewRecorder()

			h.PaymentNotification(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if svc.callbackSignature != "abc###1" {
				t.Fatalf("signature = %q, want abc###1", svc.callbackSignature)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	h = newTestHandler(t, &stubService{pingErr: errors.New("db down")})
	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/orders", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCheckout_UserIPFromConnection(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		wantIP string
	}{
		{name: "forwarded headers ignored by default", wantIP: "192.0.2.10"},
		{name: "forwarded headers honoured behind trusted proxy", opts: []Option{WithTrustedProxy()}, wantIP: "6.6.6.6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				checkoutResp: &service.CheckoutResult{OrderID: testOrderID, PaymentURL: "https://pay.example.com/page/1"},
			}
			h := NewHandler(svc, zap.NewNop(), metrics.New(), tt.opts...)

			req := httptest.NewRequest(http.MethodPost, "/checkout", checkoutBody(t, 1040))
			req.RemoteAddr = "192.0.2.10:53211"
			req.Header.Set("X-Forwarded-For", "6.6.6.6")
			req.Header.Set("X-Real-IP", "6.6.6.6")
			req.Header.Set("True-Client-IP", "6.6.6.6")

			rec := httptest.NewRecorder()
			h.SetupRouter().ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if svc.checkoutReq.UserIP != tt.wantIP {
				t.Fatalf("UserIP = %q, want %q", svc.checkoutReq.UserIP, tt.wantIP)
			}
		})
	}
}

func TestRouter_PanicIsCountedInMetrics(t *testing.T) {
	h := NewHandler(&stubService{}, zap.NewNop(), metrics.New())
	r := h.SetupRouter()
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `storefront_http_requests_total{route="/boom",status="500"} 1`
	if !bytes.Contains(rec.Body.Bytes(), []byte(want)) {
		t.Fatalf("metrics output does not contain %q", want)
	}
}
