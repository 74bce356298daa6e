package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRateSource_FallbackWhenFetchNeverSucceeds(t *testing.T) {
	failing := func(ctx context.Context) (map[string]decimal.Decimal, error) {
		return nil, errors.New("unreachable")
	}
	src := NewRateSourceForTest(time.Now, failing, time.Hour)

	rates := src.Rates(context.Background())
	if !rates["COP"].Equal(decimal.NewFromInt(4200)) {
		t.Fatalf("expected fallback COP rate 4200, got %s", rates["COP"])
	}
	if !rates["VES"].Equal(decimal.RequireFromString("36.5")) {
		t.Fatalf("expected fallback VES rate 36.5, got %s", rates["VES"])
	}
}

func TestRateSource_ServesStaleCacheOnFetchFailure(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	calls := 0
	fetch := func(ctx context.Context) (map[string]decimal.Decimal, error) {
		calls++
		if calls == 1 {
			return map[string]decimal.Decimal{
				"USD": decimal.NewFromInt(1),
				"COP": decimal.NewFromInt(4000),
			}, nil
		}
		return nil, errors.New("upstream down")
	}

	src := NewRateSourceForTest(now, fetch, time.Hour)
	ctx := context.Background()

	if got := src.Rates(ctx)["COP"]; !got.Equal(decimal.NewFromInt(4000)) {
		t.Fatalf("first fetch: got COP %s", got)
	}

	// Within the TTL no refetch happens.
	clock = clock.Add(30 * time.Minute)
	src.Rates(ctx)
	if calls != 1 {
		t.Fatalf("expected cached read, fetch called %d times", calls)
	}

	// Past the TTL the refetch fails and the stale map is kept.
	clock = clock.Add(31 * time.Minute)
	if got := src.Rates(ctx)["COP"]; !got.Equal(decimal.NewFromInt(4000)) {
		t.Fatalf("stale cache: got COP %s", got)
	}
	if calls != 2 {
		t.Fatalf("expected a refetch attempt, fetch called %d times", calls)
	}
}

func TestRateSource_ConversionsDoNotBlockBehindRefresh(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	entered := make(chan struct{})
	release := make(chan struct{})
	calls := 0
	fetch := func(ctx context.Context) (map[string]decimal.Decimal, error) {
		calls++
		if calls == 1 {
			return map[string]decimal.Decimal{
				"USD": decimal.NewFromInt(1),
				"COP": decimal.NewFromInt(4000),
			}, nil
		}
		close(entered)
		<-release
		return map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(1),
			"COP": decimal.NewFromInt(4100),
		}, nil
	}

	src := NewRateSourceForTest(now, fetch, time.Hour)
	ctx := context.Background()
	src.Rates(ctx)

	clock = clock.Add(2 * time.Hour)
	done := make(chan struct{})
	go func() {
		defer close(done)
		src.Rates(ctx)
	}()
	<-entered

	// While the refresh is in flight other callers get the stale map
	// immediately instead of queueing on the fetch.
	if got := src.Rates(ctx)["COP"]; !got.Equal(decimal.NewFromInt(4000)) {
		t.Fatalf("in-flight refresh: got COP %s", got)
	}

	close(release)
	<-done
	if got := src.Rates(ctx)["COP"]; !got.Equal(decimal.NewFromInt(4100)) {
		t.Fatalf("after refresh: got COP %s", got)
	}
	if calls != 2 {
		t.Fatalf("fetch called %d times, want 2", calls)
	}
}

func TestRateSource_ToCanonicalDividesByRate(t *testing.T) {
	src := NewRateSourceForTest(time.Now, nil, time.Hour)
	ctx := context.Background()

	got := src.ToCanonical(ctx, decimal.NewFromInt(8400), "COP")
	if !got.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("8400 COP should be 2 USD, got %s", got)
	}

	same := src.ToCanonical(ctx, decimal.NewFromInt(50), "USD")
	if !same.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("USD passthrough changed the amount: %s", same)
	}

	unknown := src.ToCanonical(ctx, decimal.NewFromInt(50), "XYZ")
	if !unknown.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unknown currency should pass through, got %s", unknown)
	}
}

func TestRateSource_FromCanonicalMultipliesByRate(t *testing.T) {
	src := NewRateSourceForTest(time.Now, nil, time.Hour)

	got := src.FromCanonical(context.Background(), decimal.NewFromInt(2), "COP")
	if !got.Equal(decimal.NewFromInt(8400)) {
		t.Fatalf("2 USD should be 8400 COP, got %s", got)
	}
}
