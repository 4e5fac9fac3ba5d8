package ratelimit

import "context"

// GatewayBucket is the bucket every outbound WhatsApp send draws from.
const GatewayBucket = "whatsapp"

// RateLimiter caps outbound sends per bucket.
type RateLimiter interface {
	Allow(ctx context.Context, bucket string) (bool, error)
	Wait(ctx context.Context, bucket string) error
}
