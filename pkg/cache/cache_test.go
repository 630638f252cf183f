package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type point struct {
	X float64 `json:"x"`
	T string  `json:"t"`
}

func TestMemoryCache_TypedRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "p", []point{{X: 1.5, T: "a"}}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got []point
	if err := mc.Get(ctx, "p", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 || got[0].X != 1.5 || got[0].T != "a" {
		t.Fatalf("got %+v", got)
	}
	if err := mc.Get(ctx, "missing", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("want miss, got %v", err)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	_ = mc.Set(ctx, "short", 1, time.Second)
	_ = mc.Set(ctx, "forever", 2, NoExpiration)
	now = now.Add(2 * time.Second)

	var v int
	if err := mc.Get(ctx, "short", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expired entry returned: %v", err)
	}
	if err := mc.Get(ctx, "forever", &v); err != nil || v != 2 {
		t.Fatalf("forever entry: v=%d err=%v", v, err)
	}
	now = now.Add(365 * 24 * time.Hour)
	if ok, _ := mc.Exists(ctx, "forever"); !ok {
		t.Fatalf("entry without expiry must not expire")
	}
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { now = now.Add(time.Millisecond); return now }

	_ = mc.Set(ctx, "a", 1, 0)
	_ = mc.Set(ctx, "b", 2, 0)
	var v int
	_ = mc.Get(ctx, "a", &v) // a is now more recent than b
	_ = mc.Set(ctx, "c", 3, 0)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if ok, _ := mc.Exists(ctx, "a", "c"); !ok || mc.Len() != 2 {
		t.Fatalf("unexpected contents, len=%d", mc.Len())
	}
}

func TestGetOrLoad(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	calls := 0
	load := func(context.Context) ([]float64, error) {
		calls++
		return []float64{1, 2, 3}, nil
	}
	for i := 0; i < 3; i++ {
		v, err := GetOrLoad(ctx, mc, "k", time.Minute, load)
		if err != nil || len(v) != 3 {
			t.Fatalf("v=%v err=%v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times", calls)
	}

	boom := errors.New("boom")
	_, err := GetOrLoad(ctx, mc, "bad", time.Minute, func(context.Context) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if ok, _ := mc.Exists(ctx, "bad"); ok {
		t.Fatalf("failed load must not be cached")
	}
}

func TestLayeredCache_PromotesFromRemote(t *testing.T) {
	remote := NewMemoryCache()
	defer remote.Close()
	lc := NewLayeredCache(remote)
	defer lc.Close()
	ctx := context.Background()

	_ = remote.Set(ctx, "k", point{X: 7}, 0)
	var p point
	if err := lc.Get(ctx, "k", &p); err != nil || p.X != 7 {
		t.Fatalf("p=%+v err=%v", p, err)
	}
	_ = remote.Delete(ctx, "k")
	p = point{}
	if err := lc.Get(ctx, "k", &p); err != nil || p.X != 7 {
		t.Fatalf("L1 should serve promoted entry: p=%+v err=%v", p, err)
	}

	_ = lc.Set(ctx, "w", point{X: 9}, time.Minute)
	var r point
	if err := remote.Get(ctx, "w", &r); err != nil || r.X != 9 {
		t.Fatalf("write-through missing: %+v %v", r, err)
	}
}

func TestLayeredCache_MemorySizeOption(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		size     int
		keepsOld bool
	}{
		{1, false},
		{0, true}, // ignored, default size applies
	} {
		remote := NewMemoryCache()
		lc := NewLayeredCache(remote, WithLayeredMemorySize(tc.size), WithLayeredMemoryTTL(time.Hour))

		_ = remote.Set(ctx, "a", point{X: 1}, 0)
		_ = remote.Set(ctx, "b", point{X: 2}, 0)
		var p point
		_ = lc.Get(ctx, "a", &p)
		_ = lc.Get(ctx, "b", &p)
		_ = remote.Delete(ctx, "a", "b")

		if err := lc.Get(ctx, "b", &p); err != nil || p.X != 2 {
			t.Fatalf("size %d: newest entry lost: %+v %v", tc.size, p, err)
		}
		err := lc.Get(ctx, "a", &p)
		if tc.keepsOld && err != nil {
			t.Fatalf("size %d: a should still be in L1: %v", tc.size, err)
		}
		if !tc.keepsOld && !errors.Is(err, ErrCacheMiss) {
			t.Fatalf("size %d: a should be evicted, got %v", tc.size, err)
		}
		_ = lc.Close()
		_ = remote.Close()
	}
}
