// Package cachetest provides a compliance suite run against every cache
// adapter to verify the port contract.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/quizmasterhq/quizmaster/internal/port/cache"
)

// RunComplianceTests runs the standard compliance test suite against any
// Cache implementation.
func RunComplianceTests(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "compliance-key", []byte("compliance-val"), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := c.Get(ctx, "compliance-key")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != "compliance-val" {
			t.Fatalf("expected compliance-val, got %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "nonexistent-key")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for nonexistent key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "del-key", []byte("del-val"), time.Minute)
		if err := c.Delete(ctx, "del-key"); err != nil {
			t.Fatal(err)
		}
		_, found, err := c.Get(ctx, "del-key")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		if err := c.Delete(ctx, "never-existed"); err != nil {
			t.Fatal("Delete of nonexistent key should not error")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "ow-key", []byte("v1"), time.Minute)
		_ = c.Set(ctx, "ow-key", []byte("v2"), time.Minute)
		val, found, err := c.Get(ctx, "ow-key")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after overwrite")
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %s", val)
		}
	})

	t.Run("DeletePrefix", func(t *testing.T) {
		_ = c.Set(ctx, "pfx.a", []byte("1"), time.Minute)
		_ = c.Set(ctx, "pfx.b", []byte("2"), time.Minute)
		_ = c.Set(ctx, "other.c", []byte("3"), time.Minute)

		n, err := c.DeletePrefix(ctx, "pfx.")
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Fatalf("expected 2 deletions, got %d", n)
		}

		if _, found, _ := c.Get(ctx, "pfx.a"); found {
			t.Fatal("expected pfx.a purged")
		}
		if _, found, _ := c.Get(ctx, "pfx.b"); found {
			t.Fatal("expected pfx.b purged")
		}
		if _, found, _ := c.Get(ctx, "other.c"); !found {
			t.Fatal("expected other.c untouched")
		}
	})

	t.Run("DeletePrefixNoMatch", func(t *testing.T) {
		n, err := c.DeletePrefix(ctx, "no-such-prefix.")
		if err != nil {
			t.Fatal("DeletePrefix with no matches should not error")
		}
		if n != 0 {
			t.Fatalf("expected 0 deletions, got %d", n)
		}
	})
}
