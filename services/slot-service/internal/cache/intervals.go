package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/slots"
	"github.com/redis/go-redis/v9"
)

const day = 24 * time.Hour

// IntervalCache stores expanded working intervals per employee in Redis. Entries cover whole
// UTC days so neighbouring queries share them, and their keys embed a per-employee version
// that Bump increments, which orphans stale entries until their TTL expires.
//
// Redis failures degrade to the inner provider.
type IntervalCache struct {
	inner  slots.WorkingCalendarProvider
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewIntervalCache(inner slots.WorkingCalendarProvider, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *IntervalCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &IntervalCache{inner: inner, rdb: rdb, ttl: ttl, prefix: "slots:wi", logger: logger}
}

func (c *IntervalCache) versionKey(employeeID string) string {
	return c.prefix + ":ver:" + employeeID
}

func (c *IntervalCache) entryKey(employeeID, version string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%d:%d", c.prefix, employeeID, version, start.Unix(), end.Unix())
}

// Bump invalidates every cached window of one employee.
func (c *IntervalCache) Bump(ctx context.Context, employeeID string) error {
	return c.rdb.Incr(ctx, c.versionKey(employeeID)).Err()
}

func (c *IntervalCache) Intervals(ctx context.Context, employeeIDs []string, start, end time.Time) (map[string][]slots.Interval, error) {
	if len(employeeIDs) == 0 {
		return map[string][]slots.Interval{}, nil
	}
	dayStart, dayEnd := alignToDays(start, end)

	keys, err := c.keys(ctx, employeeIDs, dayStart, dayEnd)
	if err != nil {
		c.logger.Warn("interval cache unavailable", "err", err)
		return c.inner.Intervals(ctx, employeeIDs, start, end)
	}

	cached, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("interval cache read failed", "err", err)
		return c.inner.Intervals(ctx, employeeIDs, start, end)
	}

	out := make(map[string][]slots.Interval, len(employeeIDs))
	var missing []string
	missingKeys := map[string]string{}
	for i, id := range employeeIDs {
		raw, ok := cached[i].(string)
		if !ok {
			missing = append(missing, id)
			missingKeys[id] = keys[i]
			continue
		}
		intervals, err := decodeIntervals(raw)
		if err != nil {
			c.logger.Warn("interval cache entry corrupt", "employee_id", id, "err", err)
			missing = append(missing, id)
			missingKeys[id] = keys[i]
			continue
		}
		out[id] = clip(intervals, start, end)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.inner.Intervals(ctx, missing, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	pipe := c.rdb.Pipeline()
	for _, id := range missing {
		intervals := fresh[id]
		if encoded, err := encodeIntervals(intervals); err == nil {
			pipe.Set(ctx, missingKeys[id], encoded, c.ttl)
		}
		if _, ok := fresh[id]; ok {
			out[id] = clip(intervals, start, end)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("interval cache write failed", "err", err)
	}
	return out, nil
}

func (c *IntervalCache) keys(ctx context.Context, employeeIDs []string, start, end time.Time) ([]string, error) {
	versionKeys := make([]string, len(employeeIDs))
	for i, id := range employeeIDs {
		versionKeys[i] = c.versionKey(id)
	}
	versions, err := c.rdb.MGet(ctx, versionKeys...).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(employeeIDs))
	for i, id := range employeeIDs {
		v, _ := versions[i].(string)
		if v == "" {
			v = "0"
		}
		keys[i] = c.entryKey(id, v, start, end)
	}
	return keys, nil
}

// alignToDays widens [start, end] to whole UTC days.
func alignToDays(start, end time.Time) (time.Time, time.Time) {
	s := start.UTC().Truncate(day)
	e := end.UTC().Truncate(day)
	if e.Before(end.UTC()) {
		e = e.Add(day)
	}
	return s, e
}

func clip(in []slots.Interval, start, end time.Time) []slots.Interval {
	out := make([]slots.Interval, 0, len(in))
	for _, iv := range in {
		s, e := iv.Start, iv.End
		if s.Before(start) {
			s = start
		}
		if e.After(end) {
			e = end
		}
		if e.After(s) {
			out = append(out, slots.Interval{Start: s, End: e})
		}
	}
	return out
}

// Entries are [[startUnixMilli, endUnixMilli], ...].
func encodeIntervals(in []slots.Interval) (string, error) {
	pairs := make([][2]int64, 0, len(in))
	for _, iv := range in {
		pairs = append(pairs, [2]int64{iv.Start.UnixMilli(), iv.End.UnixMilli()})
	}
	b, err := json.Marshal(pairs)
	return string(b), err
}

func decodeIntervals(raw string) ([]slots.Interval, error) {
	var pairs [][2]int64
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, err
	}
	out := make([]slots.Interval, 0, len(pairs))
	for _, p := range pairs {
		if p[1] <= p[0] {
			return nil, errors.New("non-positive interval " + strconv.FormatInt(p[0], 10))
		}
		out = append(out, slots.Interval{Start: time.UnixMilli(p[0]).UTC(), End: time.UnixMilli(p[1]).UTC()})
	}
	return out, nil
}
