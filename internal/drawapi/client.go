// Package drawapi предоставляет клиент для внешнего сервиса кампаний и розыгрышей.
package drawapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/mmeshcher/roulette-draw/internal/ledger"
	"github.com/mmeshcher/roulette-draw/internal/model"
)

// Ошибки клиента сервиса розыгрышей.
var (
	ErrNotConfigured = errors.New("draw service client not configured")
	ErrNotFound      = errors.New("not found")
)

// RequestIDHeader передаёт идентификатор запроса розыгрыша для сопоставления с логами сервиса.
const RequestIDHeader = "X-Request-Id"

// StatusError описывает неожиданный код ответа сервиса.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("unexpected status: %d", e.Code)
}

// RateLimitError возвращается, когда сервис просит повторить запрос позже.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("draw service rate limited, retry after %s", e.RetryAfter)
}

const (
	requestTimeout = 5 * time.Second
	maxErrorBody   = 4 << 10
)

// Client инкапсулирует HTTP-взаимодействие с сервисом розыгрышей.
// Розыгрыш выполняется ровно одним запросом, чтения повторяются при временных сбоях.
type Client struct {
	baseURL    string
	httpClient *http.Client
	reader     *retryablehttp.Client
}

// NewClient создаёт клиент сервиса розыгрышей по указанному адресу.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	reader := retryablehttp.NewClient()
	reader.HTTPClient.Timeout = requestTimeout
	reader.RetryMax = 3
	reader.RetryWaitMin = 100 * time.Millisecond
	reader.RetryWaitMax = 2 * time.Second
	reader.Logger = leveledLogger{logger.Named("drawapi").Sugar()}

	return &Client{
		baseURL: normalizeBase(baseURL),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		reader: reader,
	}
}

func normalizeBase(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base
}

func (c *Client) endpoint(parts ...string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", ErrNotConfigured
	}
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return c.baseURL + "/api/" + strings.Join(escaped, "/"), nil
}

// DrawOnce выполняет один розыгрыш в кампании. Запрос не повторяется.
// Отказ сервиса с телом {success:false, message} возвращается как неуспешный результат без ошибки.
func (c *Client) DrawOnce(ctx context.Context, campaignID string) (*model.DrawResult, error) {
	u, err := c.endpoint("campaigns", campaignID, "draw")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request %s: %w", requestID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, &RateLimitError{RetryAfter: retryAfter}
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, ErrNotFound)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var dto drawResultDTO
	decodeErr := json.Unmarshal(body, &dto)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && dto.Message != "" && resp.StatusCode < 500 {
			dto.Success = false
			return dto.toModel(), nil
		}
		return nil, &StatusError{Code: resp.StatusCode, Message: errorText(body)}
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}

	return dto.toModel(), nil
}

// FetchCampaignList запрашивает список кампаний.
func (c *Client) FetchCampaignList(ctx context.Context) ([]model.Campaign, error) {
	var dtos []campaignDTO
	if err := c.getJSON(ctx, &dtos, "campaigns"); err != nil {
		return nil, err
	}

	campaigns := make([]model.Campaign, 0, len(dtos))
	for _, d := range dtos {
		campaigns = append(campaigns, d.toModel())
	}
	return campaigns, nil
}

// FetchCampaignDetail запрашивает кампанию вместе с упорядоченными участниками.
func (c *Client) FetchCampaignDetail(ctx context.Context, id string) (*model.CampaignDetail, error) {
	var dto campaignDTO
	if err := c.getJSON(ctx, &dto, "campaigns", id); err != nil {
		return nil, err
	}
	return dto.toDetail(), nil
}

// FetchPrizes запрашивает призы кампании в исходном виде.
func (c *Client) FetchPrizes(ctx context.Context, id string) ([]ledger.RawPrize, error) {
	var dtos []prizeDTO
	if err := c.getJSON(ctx, &dtos, "campaigns", id, "prizes"); err != nil {
		return nil, err
	}

	raws := make([]ledger.RawPrize, 0, len(dtos))
	for _, d := range dtos {
		raws = append(raws, d.toRaw())
	}
	return raws, nil
}

func (c *Client) getJSON(ctx context.Context, dst any, parts ...string) error {
	u, err := c.endpoint(parts...)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.reader.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", strings.Join(parts, "/"), ErrNotFound)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Message: errorText(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorText достаёт сообщение из тела ответа с ошибкой.
func errorText(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// leveledLogger направляет журнал повторов retryablehttp в zap.
type leveledLogger struct {
	l *zap.SugaredLogger
}

func (z leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	z.l.Errorw(msg, keysAndValues...)
}

func (z leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	z.l.Infow(msg, keysAndValues...)
}

func (z leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	z.l.Debugw(msg, keysAndValues...)
}

func (z leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	z.l.Warnw(msg, keysAndValues...)
}
