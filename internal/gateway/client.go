// Package gateway предоставляет клиент платёжного шлюза: подписанную инициацию платежа
// и проверку подписи входящих уведомлений.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/decorom-storefront/internal/model"
)

// PayPath задаёт путь API инициации платежа и участвует в подписи запроса.
const PayPath = "/pg/v1/pay"

const (
	redirectModeRedirect = "REDIRECT"
	instrumentPayPage    = "PAY_PAGE"
	maxResponseBody      = 1 << 20
)

// Options задаёт адреса шлюза и ограничения по времени.
type Options struct {
	BaseURL     string
	CallbackURL string
	RedirectURL string
	Timeout     time.Duration
}

type paymentInstrument struct {
	Type string `json:"type"`
}

// PayRequest описывает полезную нагрузку запроса инициации платежа.
type PayRequest struct {
	MerchantID            string            `json:"merchantId"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	MerchantUserID        string            `json:"merchantUserId"`
	Amount                int64             `json:"amount"`
	RedirectURL           string            `json:"redirectUrl"`
	RedirectMode          string            `json:"redirectMode"`
	CallbackURL           string            `json:"callbackUrl"`
	PaymentInstrument     paymentInstrument `json:"paymentInstrument"`
}

type payEnvelope struct {
	Request string `json:"request"`
}

type payResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		InstrumentResponse *struct {
			RedirectInfo *struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

func (r *payResponse) redirectURL() string {
	if r.Data == nil || r.Data.InstrumentResponse == nil || r.Data.InstrumentResponse.RedirectInfo == nil {
		return ""
	}
	return r.Data.InstrumentResponse.RedirectInfo.URL
}

// ToMinorUnits переводит сумму в пайсы с отбрасыванием дробной части.
// Сумма должна быть положительной и помещаться в int64.
func ToMinorUnits(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: amount %v is not a number", ErrInvalidAmount, amount)
	}
	d := decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Truncate(0)
	if !d.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: amount %v overflows minor units", ErrInvalidAmount, amount)
	}
	minor := d.IntPart()
	if minor <= 0 {
		return 0, fmt.Errorf("%w: amount %v is not positive", ErrInvalidAmount, amount)
	}
	return minor, nil
}

// NewPayRequest собирает запрос инициации платежа для заказа.
func NewPayRequest(creds Credentials, opts Options, order *model.Order) (*PayRequest, error) {
	redirect, err := withOrderID(opts.RedirectURL, order.ID)
	if err != nil {
		return nil, fmt.Errorf("build redirect url: %w", err)
	}

	amount, err := ToMinorUnits(order.ServerPrice)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", order.ID, err)
	}

	return &PayRequest{
		MerchantID:            creds.MerchantID,
		MerchantTransactionID: order.ID,
		MerchantUserID:        "USER_" + order.ID,
		Amount:                amount,
		RedirectURL:           redirect,
		RedirectMode:          redirectModeRedirect,
		CallbackURL:           opts.CallbackURL,
		PaymentInstrument:     paymentInstrument{Type: instrumentPayPage},
	}, nil
}

// Encode сериализует запрос в JSON и кодирует его в base64.
func (r *PayRequest) Encode() (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal pay request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func withOrderID(rawURL, orderID string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("orderId", orderID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Client инкапсулирует HTTP-взаимодействие с платёжным шлюзом.
type Client struct {
	baseURL    string
	creds      Credentials
	opts       Options
	httpClient *retryablehttp.Client
	logger     *zap.Logger
}

// NewClient создаёт клиент шлюза. Повторы выполняются только при сетевых ошибках и ответах 5xx:
// идентификатор транзакции совпадает с ID заказа, поэтому повторная инициация безопасна.
func NewClient(creds Credentials, opts Options, logger *zap.Logger) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{logger.Sugar()}

	return &Client{
		baseURL:    base,
		creds:      creds,
		opts:       opts,
		httpClient: rc,
		logger:     logger,
	}
}

// Initiate регистрирует платёж по заказу и возвращает адрес страницы оплаты.
func (c *Client) Initiate(ctx context.Context, order *model.Order) (string, error) {
	payReq, err := NewPayRequest(c.creds, c.opts, order)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGateway, err)
	}

	payload, err := payReq.Encode()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGateway, err)
	}

	body, err := json.Marshal(payEnvelope{Request: payload})
	if err != nil {
		return "", fmt.Errorf("%w: marshal envelope: %w", ErrGateway, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PayPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", ErrGateway, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", c.creds.SignRequest(payload, PayPath))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: do request: %w", ErrGateway, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(respBody), Reason: "unexpected status"}
	}

	var result payResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(respBody), Reason: "decode response"}
	}

	redirect := result.redirectURL()
	if redirect == "" {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(respBody), Reason: "missing redirect url"}
	}

	c.logger.Info("payment initiated",
		zap.String("orderID", order.ID),
		zap.Int64("amount", payReq.Amount),
		zap.String("code", result.Code),
	)

	return redirect, nil
}

type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) { l.s.Errorw(msg, keysAndValues...) }
func (l leveledLogger) Warn(msg string, keysAndValues ...interface{})  { l.s.Warnw(msg, keysAndValues...) }
func (l leveledLogger) Info(msg string, keysAndValues ...interface{})  { l.s.Debugw(msg, keysAndValues...) }
func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) { l.s.Debugw(msg, keysAndValues...) }
