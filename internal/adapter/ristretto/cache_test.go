package ristretto_test

import (
	"context"
	"testing"
	"time"

	"github.com/quizmasterhq/quizmaster/internal/adapter/ristretto"
	"github.com/quizmasterhq/quizmaster/internal/port/cache/cachetest"
)

func newCache(t *testing.T) *ristretto.Cache {
	t.Helper()
	c, err := ristretto.New(1 << 20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestCompliance(t *testing.T) {
	cachetest.RunComplianceTests(t, newCache(t))
}

func TestExpiredEntryIsNeverServed(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "short-lived", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	time.Sleep(30 * time.Millisecond)

	_, found, err := c.Get(ctx, "short-lived")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected miss after TTL expiry")
	}
}

func TestDeletePrefixLeavesOthers(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	keys := []string{"get_chapters.subject_id=7", "get_chapters.subject_id=7.page=2", "get_chapters.subject_id=8"}
	for _, k := range keys {
		if err := c.Set(ctx, k, []byte("x"), time.Minute); err != nil {
			t.Fatal(err)
		}
	}

	n, err := c.DeletePrefix(ctx, "get_chapters.subject_id=7")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 purged, got %d", n)
	}

	if _, found, _ := c.Get(ctx, "get_chapters.subject_id=8"); !found {
		t.Fatal("expected unrelated subject's key untouched")
	}
}
