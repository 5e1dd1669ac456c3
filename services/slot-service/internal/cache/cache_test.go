package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/slots"
	"github.com/redis/go-redis/v9"
)

type countingTypes struct {
	calls int
	types map[string]slots.AppointmentType
}

func (c *countingTypes) Get(_ context.Context, id string) (slots.AppointmentType, error) {
	c.calls++
	at, ok := c.types[id]
	if !ok {
		return slots.AppointmentType{}, slots.ErrNotFound
	}
	return at, nil
}

func TestTypeCache_HitsAndEviction(t *testing.T) {
	inner := &countingTypes{types: map[string]slots.AppointmentType{"consult": {ID: "consult", Name: "Consultation"}}}
	c := NewTypeCache(inner, 16, time.Minute)

	for i := 0; i < 3; i++ {
		at, err := c.Get(context.Background(), "consult")
		if err != nil || at.Name != "Consultation" {
			t.Fatalf("unexpected result %+v (%v)", at, err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.calls)
	}

	if !c.Evict("consult") {
		t.Fatalf("expected eviction of cached type")
	}
	if _, err := c.Get(context.Background(), "consult"); err != nil {
		t.Fatalf("get after evict: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected reload after eviction, got %d calls", inner.calls)
	}
}

func TestTypeCache_DoesNotCacheErrors(t *testing.T) {
	inner := &countingTypes{types: map[string]slots.AppointmentType{}}
	c := NewTypeCache(inner, 16, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := c.Get(context.Background(), "missing"); !errors.Is(err, slots.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if inner.calls != 2 || c.Len() != 0 {
		t.Fatalf("expected misses to reach the store every time, got %d calls and %d entries", inner.calls, c.Len())
	}
}

type countingCalendars struct {
	calls     int
	lastStart time.Time
	lastEnd   time.Time
	intervals map[string][]slots.Interval
}

func (c *countingCalendars) Intervals(_ context.Context, ids []string, start, end time.Time) (map[string][]slots.Interval, error) {
	c.calls++
	c.lastStart, c.lastEnd = start, end
	out := map[string][]slots.Interval{}
	for _, id := range ids {
		if iv, ok := c.intervals[id]; ok {
			out[id] = iv
		}
	}
	return out, nil
}

func mon(h, m int) time.Time {
	return time.Date(2022, 2, 14, h, m, 0, 0, time.UTC)
}

func newIntervalCache(t *testing.T, inner slots.WorkingCalendarProvider) (*IntervalCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewIntervalCache(inner, rdb, time.Minute, logger), mr
}

func TestIntervalCache_ServesFromRedisAndClips(t *testing.T) {
	inner := &countingCalendars{intervals: map[string][]slots.Interval{
		"e1": {{Start: mon(7, 0), End: mon(11, 0)}, {Start: mon(12, 0), End: mon(16, 0)}},
	}}
	c, _ := newIntervalCache(t, inner)
	ctx := context.Background()

	got, err := c.Intervals(ctx, []string{"e1"}, mon(9, 30), mon(15, 0))
	if err != nil {
		t.Fatalf("intervals: %v", err)
	}
	if inner.calls != 1 || !inner.lastStart.Equal(mon(0, 0)) || !inner.lastEnd.Equal(mon(0, 0).Add(day)) {
		t.Fatalf("expected one day-aligned inner call, got %d calls for %s-%s", inner.calls, inner.lastStart, inner.lastEnd)
	}
	if len(got["e1"]) != 2 || !got["e1"][0].Start.Equal(mon(9, 30)) || !got["e1"][1].End.Equal(mon(15, 0)) {
		t.Fatalf("expected clipped intervals, got %+v", got["e1"])
	}

	again, err := c.Intervals(ctx, []string{"e1"}, mon(8, 0), mon(20, 0))
	if err != nil {
		t.Fatalf("intervals: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected cache hit, got %d inner calls", inner.calls)
	}
	if len(again["e1"]) != 2 || !again["e1"][0].Start.Equal(mon(8, 0)) || !again["e1"][1].End.Equal(mon(16, 0)) {
		t.Fatalf("unexpected cached intervals %+v", again["e1"])
	}
}

func TestIntervalCache_BumpInvalidates(t *testing.T) {
	inner := &countingCalendars{intervals: map[string][]slots.Interval{
		"e1": {{Start: mon(7, 0), End: mon(11, 0)}},
	}}
	c, _ := newIntervalCache(t, inner)
	ctx := context.Background()

	if _, err := c.Intervals(ctx, []string{"e1"}, mon(0, 0), mon(23, 0)); err != nil {
		t.Fatalf("intervals: %v", err)
	}
	inner.intervals["e1"] = []slots.Interval{{Start: mon(13, 0), End: mon(14, 0)}}
	if err := c.Bump(ctx, "e1"); err != nil {
		t.Fatalf("bump: %v", err)
	}
	got, err := c.Intervals(ctx, []string{"e1"}, mon(0, 0), mon(23, 0))
	if err != nil {
		t.Fatalf("intervals: %v", err)
	}
	if inner.calls != 2 || len(got["e1"]) != 1 || !got["e1"][0].Start.Equal(mon(13, 0)) {
		t.Fatalf("expected fresh intervals after bump, got %+v after %d calls", got["e1"], inner.calls)
	}
}

func TestIntervalCache_RedisDownFallsBack(t *testing.T) {
	inner := &countingCalendars{intervals: map[string][]slots.Interval{
		"e1": {{Start: mon(7, 0), End: mon(11, 0)}},
	}}
	c, mr := newIntervalCache(t, inner)
	mr.Close()

	got, err := c.Intervals(context.Background(), []string{"e1"}, mon(8, 0), mon(10, 0))
	if err != nil {
		t.Fatalf("expected fallback to inner provider, got %v", err)
	}
	if inner.calls != 1 || len(got["e1"]) != 1 || !got["e1"][0].Start.Equal(mon(7, 0)) {
		t.Fatalf("unexpected fallback result %+v", got["e1"])
	}
}

func TestAlignToDays(t *testing.T) {
	s, e := alignToDays(mon(9, 30), mon(0, 0).Add(day))
	if !s.Equal(mon(0, 0)) || !e.Equal(mon(0, 0).Add(day)) {
		t.Fatalf("unexpected alignment %s-%s", s, e)
	}
}
