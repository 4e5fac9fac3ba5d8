package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/observability"
	"go.uber.org/zap"
)

const (
	defaultGatewayTimeout = 15 * time.Second

	// MaxAttempts bounds the POSTs issued by one SendText call.
	MaxAttempts     = 3
	baseBackoff     = time.Second
	maxJitterMillis = 1000

	typingDelayMillis = 1200
	typingPresence    = "composing"
)

var sendTextSuffix = regexp.MustCompile(`/message/sendText.*$`)

type GatewayConfig struct {
	BaseURL  string
	APIKey   string
	Instance string
	Timeout  time.Duration
}

type sendTextRequest struct {
	Number  string          `json:"number"`
	Text    string          `json:"text"`
	Options sendTextOptions `json:"options"`
}

type sendTextOptions struct {
	Delay    int    `json:"delay"`
	Presence string `json:"presence"`
}

var _ Gateway = (*EvolutionClient)(nil)

// EvolutionClient posts text messages to an Evolution API instance, retrying
// transient failures with exponential backoff and jitter.
type EvolutionClient struct {
	client   *resty.Client
	cfg      GatewayConfig
	recorder DeliveryRecorder
	logger   *zap.Logger
	metrics  *observability.Metrics
	sleep    func(ctx context.Context, d time.Duration) error
	randIntn func(n int) int
}

func NewEvolutionClient(cfg GatewayConfig, recorder DeliveryRecorder, logger *zap.Logger) *EvolutionClient {
	client := resty.New()
	client.SetRetryCount(0)

	return NewEvolutionClientWithClient(cfg, client, recorder, logger)
}

func NewEvolutionClientWithClient(cfg GatewayConfig, client *resty.Client, recorder DeliveryRecorder, logger *zap.Logger) *EvolutionClient {
	if client == nil {
		client = resty.New()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGatewayTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(0)

	return &EvolutionClient{
		client:   client,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
		sleep:    sleepWithContext,
		randIntn: rand.Intn,
	}
}

func (c *EvolutionClient) WithMetrics(metrics *observability.Metrics) *EvolutionClient {
	c.metrics = metrics
	return c
}

func (c *EvolutionClient) SendText(ctx context.Context, msg TextMessage) (*SendResult, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("gateway client is not initialized")
	}

	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(msg.Number) == "" {
		return nil, fmt.Errorf("%w: number is required", domain.ErrValidation)
	}
	if strings.TrimSpace(msg.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrValidation)
	}

	reqBody := sendTextRequest{
		Number: msg.Number,
		Text:   msg.Text,
		Options: sendTextOptions{
			Delay:    typingDelayMillis,
			Presence: typingPresence,
		},
	}

	var lastErr *GatewayError
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		start := time.Now()
		result, sendErr := c.post(ctx, endpoint, reqBody)
		c.metrics.ObserveGatewayDuration(time.Since(start))

		if sendErr == nil {
			result.Attempts = attempt
			c.metrics.IncGatewayAttempt("success")
			c.record(ctx, msg, DeliveryRecord{
				Success:    true,
				Attempts:   attempt,
				StatusCode: result.StatusCode,
				Body:       result.Body,
			})
			return result, nil
		}

		sendErr.Attempts = attempt
		lastErr = sendErr

		if !sendErr.Transient {
			c.metrics.IncGatewayAttempt("permanent_error")
			break
		}
		c.metrics.IncGatewayAttempt("transient_error")

		c.logger.Warn("gateway send attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("status", sendErr.StatusCode),
			zap.Error(sendErr),
		)

		if attempt == MaxAttempts {
			break
		}
		if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
			lastErr = &GatewayError{
				StatusCode:   sendErr.StatusCode,
				Body:         sendErr.Body,
				ResponseBody: sendErr.ResponseBody,
				Attempts:     attempt,
				Cause:        err,
			}
			break
		}
	}

	c.record(ctx, msg, DeliveryRecord{
		Attempts:     lastErr.Attempts,
		StatusCode:   lastErr.StatusCode,
		Body:         lastErr.ResponseBody,
		ErrorMessage: errorMessage(lastErr),
	})
	return nil, lastErr
}

func (c *EvolutionClient) post(ctx context.Context, endpoint string, body sendTextRequest) (*SendResult, *GatewayError) {
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("apikey", c.cfg.APIKey).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return nil, &GatewayError{
			Body:      "gateway request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &GatewayError{
			Body:      "gateway returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	raw := response.Body()

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResult{
			StatusCode: statusCode,
			Body:       jsonBody(raw),
		}, nil
	}

	return nil, &GatewayError{
		StatusCode:   statusCode,
		Body:         strings.TrimSpace(string(raw)),
		ResponseBody: jsonBody(raw),
		Transient:    isRetryableStatus(statusCode),
	}
}

func (c *EvolutionClient) record(ctx context.Context, msg TextMessage, record DeliveryRecord) {
	if c.recorder == nil {
		return
	}
	record.Number = msg.Number
	record.Meta = msg.Meta
	c.recorder.Record(ctx, record)
}

// backoff returns the wait before attempt+1: 2^attempt seconds plus up to 1s jitter.
func (c *EvolutionClient) backoff(attempt int) time.Duration {
	jitter := time.Duration(c.randIntn(maxJitterMillis+1)) * time.Millisecond
	return time.Duration(1<<attempt)*baseBackoff + jitter
}

func (c *EvolutionClient) endpoint() (string, error) {
	base := strings.TrimSpace(c.cfg.BaseURL)
	key := strings.TrimSpace(c.cfg.APIKey)
	instance := strings.TrimSpace(c.cfg.Instance)
	if base == "" || key == "" || instance == "" {
		return "", ErrNotConfigured
	}

	base = sanitizeBaseURL(base)
	if _, err := url.ParseRequestURI(base); err != nil {
		return "", fmt.Errorf("%w: invalid gateway url: %v", ErrNotConfigured, err)
	}

	return base + "/message/sendText/" + url.PathEscape(instance), nil
}

func sanitizeBaseURL(base string) string {
	base = strings.TrimRight(base, "/")
	base = sendTextSuffix.ReplaceAllString(base, "")
	return strings.TrimRight(base, "/")
}

func jsonBody(raw []byte) json.RawMessage {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return nil
	}
	return json.RawMessage(trimmed)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
