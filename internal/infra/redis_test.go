package infra

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr(), "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
}

func TestNewRedisClient_RequiresURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "", "wallet-test"); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestNewGormDB_RequiresPool(t *testing.T) {
	if _, err := NewGormDB(nil, false); err == nil {
		t.Fatalf("expected error for nil pool")
	}
}
