package ristretto_test

import (
	"testing"
	"time"

	"github.com/habitquest/delegate/internal/adapter/ristretto"
	"github.com/habitquest/delegate/internal/domain/delegation"
)

func TestRouteCacheSetGet(t *testing.T) {
	rc, err := ristretto.NewRouteCache(1<<20, time.Minute)
	if err != nil {
		t.Fatalf("NewRouteCache: %v", err)
	}
	defer rc.Close()

	sig := delegation.Signature("cafef00d")
	if _, ok := rc.Get(sig); ok {
		t.Fatal("empty cache must miss")
	}

	rc.Set(sig, "email")
	rc.Wait()

	et, ok := rc.Get(sig)
	if !ok || et != "email" {
		t.Errorf("Get = %q ok=%v, want cached email route", et, ok)
	}
}

func TestRouteCacheTTLExpiry(t *testing.T) {
	rc, err := ristretto.NewRouteCache(1<<20, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	sig := delegation.Signature("cafef00d")
	rc.Set(sig, "email")
	rc.Wait()
	time.Sleep(50 * time.Millisecond)

	if _, ok := rc.Get(sig); ok {
		t.Error("entry must expire after its TTL")
	}
}
