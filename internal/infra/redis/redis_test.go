package redis

import "testing"

func TestNewRedisRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
	}{
		{name: "malformed url", url: "://nope"},
		{name: "unreachable", url: "redis://127.0.0.1:1/0"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if client, err := NewRedis(tt.url); err == nil {
				_ = client.Close()
				t.Fatalf("NewRedis(%q) expected error", tt.url)
			}
		})
	}
}
