package service

import (
	"context"
	"sync"
	"time"

	"github.com/raspapremio/prize-notifier/internal/domain"
	"github.com/raspapremio/prize-notifier/internal/message"
	"github.com/raspapremio/prize-notifier/internal/provider"
	"github.com/raspapremio/prize-notifier/internal/queue"
	"github.com/raspapremio/prize-notifier/internal/repository"
)

type fakeQueueRepo struct {
	mu             sync.Mutex
	claimDueFn     func(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error)
	releaseStaleFn func(ctx context.Context, cutoff time.Time) (int64, error)
	sent           []string
	failed         map[string]string
	released       map[string]string
}

func (f *fakeQueueRepo) Enqueue(ctx context.Context, entry *domain.QueueEntry) error {
	return nil
}

func (f *fakeQueueRepo) GetByID(ctx context.Context, id string) (*domain.QueueEntry, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeQueueRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error) {
	if f.claimDueFn != nil {
		return f.claimDueFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeQueueRepo) MarkSent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeQueueRepo) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[id] = errorMessage
	return nil
}

func (f *fakeQueueRepo) Release(ctx context.Context, id string, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released == nil {
		f.released = map[string]string{}
	}
	f.released[id] = errorMessage
	return nil
}

func (f *fakeQueueRepo) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.releaseStaleFn != nil {
		return f.releaseStaleFn(ctx, cutoff)
	}
	return 0, nil
}

type sentPrize struct {
	kind    string
	phone   string
	payload message.Payload
}

type fakePrizeSender struct {
	mu     sync.Mutex
	sendFn func(ctx context.Context, kind string, phone string, payload message.Payload) (*provider.SendResult, error)
	sent   []sentPrize
	textFn func(ctx context.Context, kind string, phone string, text string) (*provider.SendResult, error)
	texts  []string
}

func (f *fakePrizeSender) SendPrize(ctx context.Context, kind string, phone string, payload message.Payload) (*provider.SendResult, error) {
	f.mu.Lock()
	f.sent = append(f.sent, sentPrize{kind: kind, phone: phone, payload: payload})
	f.mu.Unlock()
	if f.sendFn != nil {
		return f.sendFn(ctx, kind, phone, payload)
	}
	return &provider.SendResult{StatusCode: 200, Attempts: 1}, nil
}

func (f *fakePrizeSender) SendText(ctx context.Context, kind string, phone string, text string) (*provider.SendResult, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.textFn != nil {
		return f.textFn(ctx, kind, phone, text)
	}
	return &provider.SendResult{StatusCode: 200, Attempts: 1}, nil
}

type fakeAchievementChecker struct {
	checkFn func(ctx context.Context, phone string) ([]domain.Achievement, error)
	phones  []string
}

func (f *fakeAchievementChecker) Check(ctx context.Context, phone string) ([]domain.Achievement, error) {
	f.phones = append(f.phones, phone)
	if f.checkFn != nil {
		return f.checkFn(ctx, phone)
	}
	return nil, nil
}

type fakeRegistrationRepo struct {
	dueExpiryFn    func(ctx context.Context, now time.Time, limit int) ([]domain.Registration, error)
	expireFn       func(ctx context.Context, cardIDs []string) (int64, error)
	dueFirstFn     func(ctx context.Context, now time.Time, limit int) ([]domain.Registration, error)
	dueSecondFn    func(ctx context.Context, now time.Time, limit int) ([]domain.Registration, error)
	recentFn       func(ctx context.Context, phone string, limit int) ([]domain.Registration, error)
	expiredCards   []string
	reminded       []string
	secondReminded []string
}

func (f *fakeRegistrationRepo) DueExpiries(ctx context.Context, now time.Time, limit int) ([]domain.Registration, error) {
	if f.dueExpiryFn != nil {
		return f.dueExpiryFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeRegistrationRepo) ExpireCards(ctx context.Context, cardIDs []string) (int64, error) {
	f.expiredCards = append(f.expiredCards, cardIDs...)
	if f.expireFn != nil {
		return f.expireFn(ctx, cardIDs)
	}
	return int64(len(cardIDs)), nil
}

func (f *fakeRegistrationRepo) DueFirstReminders(ctx context.Context, now time.Time, limit int) ([]domain.Registration, error) {
	if f.dueFirstFn != nil {
		return f.dueFirstFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeRegistrationRepo) DueSecondReminders(ctx context.Context, now time.Time, limit int) ([]domain.Registration, error) {
	if f.dueSecondFn != nil {
		return f.dueSecondFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeRegistrationRepo) MarkReminded(ctx context.Context, id string, at time.Time) error {
	f.reminded = append(f.reminded, id)
	return nil
}

func (f *fakeRegistrationRepo) MarkSecondReminded(ctx context.Context, id string, at time.Time) error {
	f.secondReminded = append(f.secondReminded, id)
	return nil
}

func (f *fakeRegistrationRepo) RecentByPhone(ctx context.Context, phone string, limit int) ([]domain.Registration, error) {
	if f.recentFn != nil {
		return f.recentFn(ctx, phone, limit)
	}
	return nil, nil
}

type fakeLocker struct {
	held     bool
	err      error
	released int
}

func (f *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held {
		return nil, false, nil
	}
	f.held = true
	return func(context.Context) error {
		f.held = false
		f.released++
		return nil
	}, true, nil
}

type fakeLoyaltyRepo struct {
	customers map[string]*domain.CustomerLoyalty
	getErr    error
	codes     map[string]string
	consumed  []string
}

func (f *fakeLoyaltyRepo) GetByPhone(ctx context.Context, phone string) (*domain.CustomerLoyalty, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.customers[phone]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeLoyaltyRepo) SetAccessCode(ctx context.Context, phone string, code string, expiresAt time.Time) error {
	c, ok := f.customers[phone]
	if !ok {
		return domain.ErrNotFound
	}
	if f.codes == nil {
		f.codes = map[string]string{}
	}
	f.codes[phone] = code
	c.AuthCode = &code
	c.AuthCodeExpiresAt = &expiresAt
	return nil
}

func (f *fakeLoyaltyRepo) ConsumeAccessCode(ctx context.Context, phone string, at time.Time) error {
	c, ok := f.customers[phone]
	if !ok {
		return domain.ErrNotFound
	}
	c.AuthCode = nil
	c.AuthCodeExpiresAt = nil
	c.LastLoginAt = &at
	f.consumed = append(f.consumed, phone)
	return nil
}

type fakeAchievementRepo struct {
	all        []domain.Achievement
	unlocked   []domain.CustomerAchievement
	unlockErr  map[string]error
	newUnlocks []domain.CustomerAchievement
	// persist makes stored unlocks visible to later ListUnlocked calls.
	persist bool
}

func (f *fakeAchievementRepo) ListAll(ctx context.Context) ([]domain.Achievement, error) {
	return f.all, nil
}

func (f *fakeAchievementRepo) ListUnlocked(ctx context.Context, phone string) ([]domain.CustomerAchievement, error) {
	return f.unlocked, nil
}

func (f *fakeAchievementRepo) Unlock(ctx context.Context, unlocked *domain.CustomerAchievement) error {
	if err, ok := f.unlockErr[unlocked.AchievementID]; ok {
		return err
	}
	f.newUnlocks = append(f.newUnlocks, *unlocked)
	if f.persist {
		f.unlocked = append(f.unlocked, *unlocked)
	}
	return nil
}

type fakeChatMessageRepo struct {
	messages []domain.ChatMessage
	err      error
}

func (f *fakeChatMessageRepo) Create(ctx context.Context, msg *domain.ChatMessage) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, *msg)
	return nil
}

type fakeDeliveryLogRepo struct {
	logs []domain.DeliveryLog
	err  error
}

func (f *fakeDeliveryLogRepo) Create(ctx context.Context, log *domain.DeliveryLog) error {
	if f.err != nil {
		return f.err
	}
	f.logs = append(f.logs, *log)
	return nil
}

type fakeCardRepo struct {
	registerFn func(ctx context.Context, serialCode string, reg *domain.Registration, outbox repository.OutboxBuilder) (*domain.ScratchCard, []*domain.QueueEntry, error)
	redeemFn   func(ctx context.Context, serialCode string, redemption *domain.Redemption, outbox repository.OutboxBuilder) (*domain.Registration, []*domain.QueueEntry, error)
}

func (f *fakeCardRepo) Register(ctx context.Context, serialCode string, reg *domain.Registration, outbox repository.OutboxBuilder) (*domain.ScratchCard, []*domain.QueueEntry, error) {
	return f.registerFn(ctx, serialCode, reg, outbox)
}

func (f *fakeCardRepo) Redeem(ctx context.Context, serialCode string, redemption *domain.Redemption, outbox repository.OutboxBuilder) (*domain.Registration, []*domain.QueueEntry, error) {
	return f.redeemFn(ctx, serialCode, redemption, outbox)
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.WakeupMessage) error
	published []queue.WakeupMessage
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.WakeupMessage) error {
	f.published = append(f.published, msg)
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	return nil
}

type fakeGateway struct {
	sendFn   func(ctx context.Context, msg provider.TextMessage) (*provider.SendResult, error)
	messages []provider.TextMessage
}

func (f *fakeGateway) SendText(ctx context.Context, msg provider.TextMessage) (*provider.SendResult, error) {
	f.messages = append(f.messages, msg)
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return &provider.SendResult{StatusCode: 200, Attempts: 1}, nil
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, bucket string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, bucket string) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, bucket string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, bucket)
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}

type fakeReceiptRepo struct {
	receipts  map[string]*domain.Receipt
	details   map[string]*domain.ReceiptDetails
	createErr error
	// onCreate runs before a receipt is stored.
	onCreate func(receipt *domain.Receipt)
	created  int
}

func (f *fakeReceiptRepo) GetByRegistration(ctx context.Context, registrationID string) (*domain.Receipt, error) {
	r, ok := f.receipts[registrationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeReceiptRepo) GetByVerificationCode(ctx context.Context, code string) (*domain.Receipt, error) {
	for _, r := range f.receipts {
		if r.VerificationCode == code {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeReceiptRepo) Create(ctx context.Context, receipt *domain.Receipt) error {
	if f.onCreate != nil {
		f.onCreate(receipt)
	}
	if f.createErr != nil {
		return f.createErr
	}
	if f.receipts == nil {
		f.receipts = map[string]*domain.Receipt{}
	}
	if _, ok := f.receipts[receipt.RegistrationID]; ok {
		return domain.ErrConflict
	}
	f.receipts[receipt.RegistrationID] = receipt
	f.created++
	return nil
}

func (f *fakeReceiptRepo) Details(ctx context.Context, registrationID string) (*domain.ReceiptDetails, error) {
	d, ok := f.details[registrationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}
