// Package forecast collapses 3-hour forecast samples into daily summaries.
//
// Days are bucketed by shifting each timestamp by the location's fixed UTC
// offset and reading the UTC calendar date. No time zone database is used, so
// a location observing DST may see samples near local midnight attributed to
// the neighbouring day.
package forecast

import (
	"math"
	"sort"
	"time"
)

// DefaultDays is the number of days returned to clients.
const DefaultDays = 5

const noonHour = 12

// Sample is a single forecast slot from the provider.
type Sample struct {
	Timestamp   int64 // unix seconds
	Temp        *float64
	TempMin     *float64
	TempMax     *float64
	Icon        *string
	Description *string
}

// Day is the daily summary returned to clients.
type Day struct {
	Date        *int64   `json:"date"` // local ms epoch of the representative sample
	Min         *float64 `json:"min"`
	Max         *float64 `json:"max"`
	Description *string  `json:"description"`
	Icon        *string  `json:"icon"`
}

type bucket struct {
	dateKey     string
	minC        float64
	maxC        float64
	icon        *string
	description *string
	localMs     int64
}

// localTime returns the offset-shifted instant as a UTC time.
func localTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// DateKey returns the YYYY-MM-DD key for a UTC instant shifted by offset seconds.
func DateKey(t time.Time, tzOffsetSeconds int64) string {
	return localTime(t.UnixMilli() + tzOffsetSeconds*1000).Format(time.DateOnly)
}

func noonDistance(ms int64) int {
	h := localTime(ms).Hour() - noonHour
	if h < 0 {
		return -h
	}
	return h
}

func valueOr(v *float64, fallback *float64) float64 {
	if v != nil {
		return *v
	}
	if fallback != nil {
		return *fallback
	}
	return math.NaN()
}

// foldMin keeps NaN only while no numeric value has been seen.
func foldMin(cur, v float64) float64 {
	if math.IsNaN(v) {
		return cur
	}
	if math.IsNaN(cur) || v < cur {
		return v
	}
	return cur
}

func foldMax(cur, v float64) float64 {
	if math.IsNaN(v) {
		return cur
	}
	if math.IsNaN(cur) || v > cur {
		return v
	}
	return cur
}

func (b *bucket) fold(s Sample, localMs int64) {
	b.minC = foldMin(b.minC, valueOr(s.TempMin, s.Temp))
	b.maxC = foldMax(b.maxC, valueOr(s.TempMax, s.Temp))

	if noonDistance(localMs) < noonDistance(b.localMs) {
		b.icon = s.Icon
		b.description = s.Description
		b.localMs = localMs
	}
}

func (b *bucket) day() Day {
	date := b.localMs
	return Day{
		Date:        &date,
		Min:         finite(b.minC),
		Max:         finite(b.maxC),
		Description: b.description,
		Icon:        b.icon,
	}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Aggregate groups samples into local calendar days, drops the current local
// day and returns up to daysWanted days in chronological order.
func Aggregate(samples []Sample, tzOffsetSeconds int64, now time.Time, daysWanted int) []Day {
	if daysWanted <= 0 {
		return []Day{}
	}

	index := make(map[string]*bucket)
	ordered := make([]*bucket, 0, 8)

	for _, s := range samples {
		localMs := (s.Timestamp + tzOffsetSeconds) * 1000
		key := localTime(localMs).Format(time.DateOnly)

		b, ok := index[key]
		if !ok {
			index[key] = &bucket{
				dateKey:     key,
				minC:        valueOr(s.TempMin, s.Temp),
				maxC:        valueOr(s.TempMax, s.Temp),
				icon:        s.Icon,
				description: s.Description,
				localMs:     localMs,
			}
			ordered = append(ordered, index[key])
			continue
		}
		b.fold(s, localMs)
	}

	todayKey := DateKey(now, tzOffsetSeconds)

	upcoming := make([]*bucket, 0, len(ordered))
	for _, b := range ordered {
		if b.dateKey != todayKey {
			upcoming = append(upcoming, b)
		}
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].localMs < upcoming[j].localMs
	})

	if len(upcoming) > daysWanted {
		upcoming = upcoming[:daysWanted]
	}

	days := make([]Day, 0, len(upcoming))
	for _, b := range upcoming {
		days = append(days, b.day())
	}
	return days
}
