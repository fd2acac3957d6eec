package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/bitem-heg-geneve/occmatch/pkg/matching"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, time.Minute)
}

func TestCacheScoreComputesOnceOnMiss(t *testing.T) {
	c := newTestCache(t)
	subject := matching.Occurrence{"country": "France"}
	related := matching.Occurrence{"country": "France"}

	calls := 0
	compute := func() (matching.Result, error) {
		calls++
		return matching.Score(subject, related)
	}

	first, err := c.Score(context.Background(), subject, related, compute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.Score(context.Background(), subject, related, compute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected compute to run once, ran %d times", calls)
	}
	if first[matching.GlobalKey] != second[matching.GlobalKey] {
		t.Fatalf("expected identical cached result, got %v vs %v", first, second)
	}
}

func TestCacheScoreDistinguishesPairs(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	a := matching.Occurrence{"country": "France"}
	b := matching.Occurrence{"country": "Germany"}

	resultA, err := c.Score(ctx, a, a, func() (matching.Result, error) { return matching.Score(a, a) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resultB, err := c.Score(ctx, a, b, func() (matching.Result, error) { return matching.Score(a, b) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resultA[matching.GlobalKey] == resultB[matching.GlobalKey] {
		t.Fatalf("expected distinct pairs to have different keys, both scored %v", resultA[matching.GlobalKey])
	}
}
