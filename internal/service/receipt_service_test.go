package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/raspapremio/prize-notifier/internal/domain"
	"go.uber.org/zap"
)

const testRegistrationID = "8c1f3b8e-6a7e-4c89-9f10-0c2a4b1d2e3f"

var receiptNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestReceiptService(t *testing.T, repo *fakeReceiptRepo) *ReceiptService {
	t.Helper()

	s, err := NewReceiptService(repo, "https://premios.example.com/", zap.NewNop())
	if err != nil {
		t.Fatalf("NewReceiptService() error = %v", err)
	}
	s.now = func() time.Time { return receiptNow }
	return s
}

func receiptDetails() map[string]*domain.ReceiptDetails {
	return map[string]*domain.ReceiptDetails{
		testRegistrationID: {
			RegistrationID: testRegistrationID,
			CustomerName:   "Ana",
			CustomerPhone:  "5511987654321",
			SerialCode:     "RSP-0001",
			PrizeName:      ptr("Fone"),
			PrizeValue:     89.9,
			RegisteredAt:   receiptNow.Add(-24 * time.Hour),
		},
	}
}

func TestReceiptServiceGenerate(t *testing.T) {
	t.Parallel()

	repo := &fakeReceiptRepo{details: receiptDetails()}
	s := newTestReceiptService(t, repo)

	result, err := s.Generate(context.Background(), testRegistrationID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !result.Created {
		t.Fatal("Created = false on first generation")
	}

	wantCode := "RSP-0001-1773144000000"
	if result.Receipt.VerificationCode != wantCode {
		t.Fatalf("verification code = %q, want %q", result.Receipt.VerificationCode, wantCode)
	}
	if result.Receipt.ReceiptURL != "https://premios.example.com/v1/receipts/"+wantCode {
		t.Fatalf("receipt url = %q", result.Receipt.ReceiptURL)
	}
	if !result.Receipt.GeneratedAt.Equal(receiptNow) {
		t.Fatalf("generatedAt = %s", result.Receipt.GeneratedAt)
	}
}

func TestReceiptServiceGenerateReturnsExisting(t *testing.T) {
	t.Parallel()

	repo := &fakeReceiptRepo{details: receiptDetails()}
	s := newTestReceiptService(t, repo)

	first, err := s.Generate(context.Background(), testRegistrationID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	s.now = func() time.Time { return receiptNow.Add(time.Hour) }

	second, err := s.Generate(context.Background(), testRegistrationID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if second.Created {
		t.Fatal("Created = true for an existing receipt")
	}
	if second.Receipt.VerificationCode != first.Receipt.VerificationCode {
		t.Fatalf("verification code changed: %q -> %q", first.Receipt.VerificationCode, second.Receipt.VerificationCode)
	}
	if repo.created != 1 {
		t.Fatalf("receipts stored = %d, want 1", repo.created)
	}
}

func TestReceiptServiceGenerateConcurrentIssue(t *testing.T) {
	t.Parallel()

	stored := &domain.Receipt{ID: "rc-1", RegistrationID: testRegistrationID, VerificationCode: "RSP-0001-1"}
	repo := &fakeReceiptRepo{details: receiptDetails()}
	repo.onCreate = func(*domain.Receipt) {
		// Another request wins the insert first.
		repo.receipts = map[string]*domain.Receipt{testRegistrationID: stored}
	}
	s := newTestReceiptService(t, repo)

	result, err := s.Generate(context.Background(), testRegistrationID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Created || result.Receipt != stored {
		t.Fatalf("result = %+v, want the stored receipt", result)
	}
}

func TestReceiptServiceGenerateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		registrationID string
		repo           *fakeReceiptRepo
		want           error
	}{
		{name: "invalid id", registrationID: "abc", repo: &fakeReceiptRepo{}, want: domain.ErrValidation},
		{name: "unknown registration", registrationID: testRegistrationID, repo: &fakeReceiptRepo{}, want: domain.ErrNotFound},
		{
			name:           "store failure",
			registrationID: testRegistrationID,
			repo:           &fakeReceiptRepo{details: receiptDetails(), createErr: errors.New("db unavailable")},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestReceiptService(t, tt.repo)
			_, err := s.Generate(context.Background(), tt.registrationID)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("Generate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReceiptServiceRender(t *testing.T) {
	t.Parallel()

	repo := &fakeReceiptRepo{details: receiptDetails()}
	s := newTestReceiptService(t, repo)

	result, err := s.Generate(context.Background(), testRegistrationID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var buf bytes.Buffer
	if err := s.Render(context.Background(), &buf, result.Receipt.VerificationCode); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"Fone", "R$ 89,90", result.Receipt.VerificationCode} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("receipt missing %q", want)
		}
	}

	if err := s.Render(context.Background(), &bytes.Buffer{}, "RSP-9999-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Render() unknown code error = %v, want not found", err)
	}
}
