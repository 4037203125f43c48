package cache

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_UnreachableRedisDisablesCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if c.IsAvailable() {
		t.Fatal("expected cache to be disabled")
	}
}

func TestDisabledCache_IsANoOp(t *testing.T) {
	ctx := context.Background()
	c := &Cache{logger: zerolog.Nop(), config: DefaultConfig(), disabled: true}

	if err := c.SetConversationList(ctx, "u1", []CachedConversation{{ID: "a"}}); err != nil {
		t.Fatalf("SetConversationList: %v", err)
	}
	if _, ok := c.GetConversationList(ctx, "u1"); ok {
		t.Fatal("disabled cache must never hit")
	}
	if err := c.InvalidateConversationList(ctx, "u1"); err != nil {
		t.Fatalf("InvalidateConversationList: %v", err)
	}
	if err := c.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
