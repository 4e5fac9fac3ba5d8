package handler

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/message"
	"github.com/raspapremio/prize-notifier/internal/observability"
	"github.com/raspapremio/prize-notifier/internal/provider"
	"github.com/raspapremio/prize-notifier/internal/service"
	"github.com/raspapremio/prize-notifier/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T, register func(app *fiber.App) error) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
	app.Use(observability.CorrelationMiddleware())

	if err := register(app); err != nil {
		t.Fatalf("register routes error = %v", err)
	}
	return app
}

func performRequest(t *testing.T, app *fiber.App, method string, path string, body string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

type stubSweeper struct {
	sweepFn func(ctx context.Context) (service.SweepSummary, error)
}

func (s *stubSweeper) Sweep(ctx context.Context) (service.SweepSummary, error) {
	return s.sweepFn(ctx)
}

type stubReminderRunner struct {
	runFn func(ctx context.Context) (service.ReminderSummary, error)
}

func (s *stubReminderRunner) Run(ctx context.Context) (service.ReminderSummary, error) {
	return s.runFn(ctx)
}

type stubPrizeSender struct {
	sendFn func(ctx context.Context, kind string, phone string, payload message.Payload) (*provider.SendResult, error)
}

func (s *stubPrizeSender) SendPrize(ctx context.Context, kind string, phone string, payload message.Payload) (*provider.SendResult, error) {
	if s.sendFn != nil {
		return s.sendFn(ctx, kind, phone, payload)
	}
	return &provider.SendResult{StatusCode: 201, Attempts: 1}, nil
}

type stubAchievementChecker struct {
	checkFn func(ctx context.Context, phone string) ([]domain.Achievement, error)
}

func (s *stubAchievementChecker) Check(ctx context.Context, phone string) ([]domain.Achievement, error) {
	if s.checkFn != nil {
		return s.checkFn(ctx, phone)
	}
	return []domain.Achievement{}, nil
}

type stubWebhookEventHandler struct {
	handleFn func(ctx context.Context, event service.WebhookEvent) (int, error)
}

func (s *stubWebhookEventHandler) HandleEvent(ctx context.Context, event service.WebhookEvent) (int, error) {
	return s.handleFn(ctx, event)
}

type stubPrizeService struct {
	registerFn func(ctx context.Context, in service.RegisterInput) (*service.RegisterResult, error)
	redeemFn   func(ctx context.Context, in service.RedeemInput) (*service.RedeemResult, error)
}

func (s *stubPrizeService) Register(ctx context.Context, in service.RegisterInput) (*service.RegisterResult, error) {
	return s.registerFn(ctx, in)
}

func (s *stubPrizeService) Redeem(ctx context.Context, in service.RedeemInput) (*service.RedeemResult, error) {
	return s.redeemFn(ctx, in)
}

type stubLoyaltyService struct {
	sendFn   func(ctx context.Context, phone string) error
	verifyFn func(ctx context.Context, phone string, code string) (*domain.CustomerLoyalty, error)
}

func (s *stubLoyaltyService) SendAccessCode(ctx context.Context, phone string) error {
	return s.sendFn(ctx, phone)
}

func (s *stubLoyaltyService) VerifyAccessCode(ctx context.Context, phone string, code string) (*domain.CustomerLoyalty, error) {
	return s.verifyFn(ctx, phone, code)
}

type stubReceiptService struct {
	generateFn func(ctx context.Context, registrationID string) (*service.ReceiptResult, error)
	renderFn   func(ctx context.Context, w io.Writer, code string) error
}

func (s *stubReceiptService) Generate(ctx context.Context, registrationID string) (*service.ReceiptResult, error) {
	return s.generateFn(ctx, registrationID)
}

func (s *stubReceiptService) Render(ctx context.Context, w io.Writer, code string) error {
	return s.renderFn(ctx, w, code)
}

type memoryDeliveryLogRepo struct {
	mu   sync.Mutex
	logs []domain.DeliveryLog
}

func (r *memoryDeliveryLogRepo) Create(ctx context.Context, log *domain.DeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

type stubConnector struct {
	pingErr error
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn(c), nil
}

func (c stubConnector) Driver() driver.Driver {
	return stubDriver(c)
}

type stubDriver struct {
	pingErr error
}

func (d stubDriver) Open(string) (driver.Conn, error) {
	return stubConn(d), nil
}

type stubConn struct {
	pingErr error
}

func (c stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c stubConn) Close() error                        { return nil }
func (c stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }
func (c stubConn) Ping(context.Context) error          { return c.pingErr }

type stubRedisHook struct {
	pingErr error
}

func (h stubRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h stubRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "ping") && h.pingErr != nil {
			cmd.SetErr(h.pingErr)
			return h.pingErr
		}
		cmd.SetErr(nil)
		return nil
	}
}

func (h stubRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			cmd.SetErr(nil)
		}
		return nil
	}
}

func newStubRedisClient(pingErr error) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  time.Millisecond,
		ReadTimeout:  time.Millisecond,
		WriteTimeout: time.Millisecond,
	})
	rdb.AddHook(stubRedisHook{pingErr: pingErr})
	return rdb
}
