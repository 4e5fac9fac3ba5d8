package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raspapremio/prize-notifier/internal/domain"
)

type fakeRecorder struct {
	mu      sync.Mutex
	records []DeliveryRecord
}

func (r *fakeRecorder) Record(ctx context.Context, record DeliveryRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
}

func (r *fakeRecorder) all() []DeliveryRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DeliveryRecord(nil), r.records...)
}

func newTestClient(t *testing.T, baseURL string, recorder DeliveryRecorder) (*EvolutionClient, *[]time.Duration) {
	t.Helper()

	client := NewEvolutionClient(GatewayConfig{
		BaseURL:  baseURL,
		APIKey:   "secret-key",
		Instance: "loja-1",
		Timeout:  2 * time.Second,
	}, recorder, nil)

	sleeps := make([]time.Duration, 0, MaxAttempts)
	client.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	client.randIntn = func(n int) int { return 0 }

	return client, &sleeps
}

func testMessage() TextMessage {
	return TextMessage{
		Number: "5511987654321",
		Text:   "hello",
		Meta:   DeliveryMeta{CustomerName: "Ana", PrizeName: "Fone", SerialCode: "RSP-0001"},
	}
}

func TestEvolutionClientSendTextSuccess(t *testing.T) {
	t.Parallel()

	var gotBody sendTextRequest
	var gotPath, gotKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"key":{"id":"wamid-1"},"status":"PENDING"}`))
	}))
	defer server.Close()

	recorder := &fakeRecorder{}
	client, sleeps := newTestClient(t, server.URL+"/", recorder)

	result, err := client.SendText(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("SendText() unexpected error: %v", err)
	}

	if result.StatusCode != http.StatusCreated {
		t.Fatalf("StatusCode = %d, want %d", result.StatusCode, http.StatusCreated)
	}
	if result.Attempts != 1 {
		t.Fatalf("Attempts = %d, want 1", result.Attempts)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("sleep calls = %d, want 0", len(*sleeps))
	}
	if gotPath != "/message/sendText/loja-1" {
		t.Fatalf("path = %q, want /message/sendText/loja-1", gotPath)
	}
	if gotKey != "secret-key" {
		t.Fatalf("apikey = %q, want secret-key", gotKey)
	}
	if gotBody.Number != "5511987654321" || gotBody.Text != "hello" {
		t.Fatalf("request body = %+v", gotBody)
	}
	if gotBody.Options.Delay != 1200 || gotBody.Options.Presence != "composing" {
		t.Fatalf("request options = %+v, want delay 1200 presence composing", gotBody.Options)
	}

	records := recorder.all()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if !records[0].Success || records[0].StatusCode != http.StatusCreated || records[0].Attempts != 1 {
		t.Fatalf("record = %+v, want success/201/1", records[0])
	}
	if records[0].Meta.SerialCode != "RSP-0001" || records[0].Number != "5511987654321" {
		t.Fatalf("record meta = %+v", records[0])
	}
	if string(records[0].Body) != `{"key":{"id":"wamid-1"},"status":"PENDING"}` {
		t.Fatalf("record body = %s", records[0].Body)
	}
}

func TestEvolutionClientRetriesServerErrorsThreeTimes(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	recorder := &fakeRecorder{}
	client, sleeps := newTestClient(t, server.URL, recorder)

	_, err := client.SendText(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	if got := calls.Load(); got != MaxAttempts {
		t.Fatalf("POST count = %d, want %d", got, MaxAttempts)
	}

	var gatewayErr *GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("error = %T, want *GatewayError", err)
	}
	if gatewayErr.StatusCode != http.StatusInternalServerError || gatewayErr.Attempts != MaxAttempts {
		t.Fatalf("gateway error = %+v", gatewayErr)
	}
	if !IsTransient(err) {
		t.Fatal("exhausted 5xx should stay classified transient")
	}

	wantSleeps := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*sleeps) != len(wantSleeps) {
		t.Fatalf("sleep calls = %v, want %v", *sleeps, wantSleeps)
	}
	for i, want := range wantSleeps {
		if (*sleeps)[i] != want {
			t.Fatalf("sleep[%d] = %s, want %s", i, (*sleeps)[i], want)
		}
	}

	records := recorder.all()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].Success || records[0].Attempts != MaxAttempts || records[0].StatusCode != http.StatusInternalServerError {
		t.Fatalf("record = %+v, want failed/3/500", records[0])
	}
	if records[0].ErrorMessage != `{"error":"boom"}` {
		t.Fatalf("record error message = %q", records[0].ErrorMessage)
	}
}

func TestEvolutionClientDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		statusCode int
	}{
		{name: "bad request", statusCode: http.StatusBadRequest},
		{name: "unauthorized", statusCode: http.StatusUnauthorized},
		{name: "instance not found", statusCode: http.StatusNotFound},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte("not json"))
			}))
			defer server.Close()

			recorder := &fakeRecorder{}
			client, sleeps := newTestClient(t, server.URL, recorder)

			_, err := client.SendText(context.Background(), testMessage())
			if err == nil {
				t.Fatal("expected error for 4xx")
			}
			if got := calls.Load(); got != 1 {
				t.Fatalf("POST count = %d, want 1", got)
			}
			if len(*sleeps) != 0 {
				t.Fatalf("sleep calls = %d, want 0", len(*sleeps))
			}
			if IsTransient(err) {
				t.Fatal("4xx should be permanent")
			}

			records := recorder.all()
			if len(records) != 1 || records[0].Success || records[0].Attempts != 1 {
				t.Fatalf("records = %+v, want one failed record at attempt 1", records)
			}
			if records[0].Body != nil {
				t.Fatalf("record body = %s, want nil for non-json response", records[0].Body)
			}
		})
	}
}

func TestEvolutionClientRetriesTooManyRequests(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	recorder := &fakeRecorder{}
	client, sleeps := newTestClient(t, server.URL, recorder)
	client.randIntn = func(n int) int {
		if n != maxJitterMillis+1 {
			t.Errorf("randIntn(%d), want %d", n, maxJitterMillis+1)
		}
		return 250
	}

	result, err := client.SendText(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("SendText() unexpected error: %v", err)
	}
	if result.Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2", result.Attempts)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("POST count = %d, want 2", got)
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != 2*time.Second+250*time.Millisecond {
		t.Fatalf("sleeps = %v, want [2.25s]", *sleeps)
	}

	records := recorder.all()
	if len(records) != 1 || !records[0].Success || records[0].Attempts != 2 {
		t.Fatalf("records = %+v, want one success record at attempt 2", records)
	}
}

func TestEvolutionClientMissingConfiguration(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	testCases := []struct {
		name string
		cfg  GatewayConfig
	}{
		{name: "missing url", cfg: GatewayConfig{APIKey: "k", Instance: "i"}},
		{name: "missing key", cfg: GatewayConfig{BaseURL: server.URL, Instance: "i"}},
		{name: "missing instance", cfg: GatewayConfig{BaseURL: server.URL, APIKey: "k"}},
		{name: "invalid url", cfg: GatewayConfig{BaseURL: "not a url", APIKey: "k", Instance: "i"}},
	}

	for _, tc := range testCases {
		recorder := &fakeRecorder{}
		client := NewEvolutionClient(tc.cfg, recorder, nil)

		_, err := client.SendText(context.Background(), testMessage())
		if !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("%s: SendText() error = %v, want ErrNotConfigured", tc.name, err)
		}
		if !errors.Is(err, domain.ErrConfiguration) {
			t.Fatalf("%s: SendText() error = %v, want domain.ErrConfiguration", tc.name, err)
		}
		if len(recorder.all()) != 0 {
			t.Fatalf("%s: configuration errors must not be logged as deliveries", tc.name)
		}
	}

	if got := calls.Load(); got != 0 {
		t.Fatalf("POST count = %d, want 0", got)
	}
}

func TestEvolutionClientStopsWhenContextCanceledDuringBackoff(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	recorder := &fakeRecorder{}
	client, _ := newTestClient(t, server.URL, recorder)
	client.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	_, err := client.SendText(context.Background(), testMessage())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SendText() error = %v, want context.Canceled", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("POST count = %d, want 1", got)
	}
	if records := recorder.all(); len(records) != 1 || records[0].StatusCode != http.StatusBadGateway {
		t.Fatalf("records = %+v, want one failed record with status 502", records)
	}
}

func TestSanitizeBaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{input: "https://evo.example.com", want: "https://evo.example.com"},
		{input: "https://evo.example.com///", want: "https://evo.example.com"},
		{input: "https://evo.example.com/message/sendText/old-instance", want: "https://evo.example.com"},
		{input: "https://evo.example.com/api/message/sendText/", want: "https://evo.example.com/api"},
	}

	for _, tt := range tests {
		if got := sanitizeBaseURL(tt.input); got != tt.want {
			t.Fatalf("sanitizeBaseURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "transient gateway error", err: &GatewayError{StatusCode: 503, Transient: true}, want: true},
		{name: "permanent gateway error", err: &GatewayError{StatusCode: 400}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tc := range testCases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Fatalf("%s: IsTransient() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
