package utils

import (
	"context"
	"testing"
	"time"
)

func TestRedisConfig_Defaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379", MinIdleConns: -3}.withDefaults()
	if c.MinIdleConns != 0 {
		t.Fatalf("expected negative idle conns clamped, got %d", c.MinIdleConns)
	}
	if c.PoolSize != 20 || c.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestPublishJSON_RequiresClientAndStream(t *testing.T) {
	if _, err := PublishJSON(context.Background(), nil, "s", map[string]string{}, 0); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
