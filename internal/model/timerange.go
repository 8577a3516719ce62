package model

import (
	"fmt"
	"math"
	"time"
)

type RangeSelector string

const (
	RangeToday      RangeSelector = "today"
	RangeThisWeek   RangeSelector = "thisWeek"
	RangeLastWeek   RangeSelector = "lastWeek"
	RangeLast7Days  RangeSelector = "7d"
	RangeLast30Days RangeSelector = "30d"
	RangeThisMonth  RangeSelector = "thisMonth"
	RangeCustom     RangeSelector = "custom"
	// RangeRecent is the entries-list mode: no time bounds, the store
	// returns the most recent page by insertion order.
	RangeRecent RangeSelector = "recent"
)

// DateRange is a concrete, resolved window. OpenEnded selectors capture "now"
// as To at resolution time so that server-side filters and client-side bucket
// indexing agree on the same span; filters then omit the upper bound.
type DateRange struct {
	Selector  RangeSelector `json:"selector"`
	From      time.Time     `json:"from"`
	To        time.Time     `json:"to"`
	OpenEnded bool          `json:"open_ended"`
}

// ResolveRange translates a symbolic selector into a concrete window, all in
// local wall-clock. custom expects from/to dates; every other selector is
// deterministic given now.
func ResolveRange(sel RangeSelector, now time.Time, customFrom, customTo time.Time) (DateRange, error) {
	switch sel {
	case RangeToday:
		start := startOfDay(now)
		return DateRange{Selector: sel, From: start, To: endOfDay(start)}, nil
	case RangeThisWeek:
		start := startOfDay(now).AddDate(0, 0, -int(now.Weekday()))
		return DateRange{Selector: sel, From: start, To: now, OpenEnded: true}, nil
	case RangeLastWeek:
		thisSunday := startOfDay(now).AddDate(0, 0, -int(now.Weekday()))
		return DateRange{Selector: sel, From: thisSunday.AddDate(0, 0, -7), To: thisSunday}, nil
	case RangeLast7Days:
		return DateRange{Selector: sel, From: startOfDay(now.AddDate(0, 0, -7)), To: now, OpenEnded: true}, nil
	case RangeLast30Days:
		return DateRange{Selector: sel, From: startOfDay(now.AddDate(0, 0, -30)), To: now, OpenEnded: true}, nil
	case RangeThisMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return DateRange{Selector: sel, From: start, To: now, OpenEnded: true}, nil
	case RangeCustom:
		if customFrom.IsZero() {
			return DateRange{}, fmt.Errorf("custom range requires a start date")
		}
		from := startOfDay(customFrom)
		to := customTo
		if to.IsZero() || to.Before(from) {
			to = from
		}
		return DateRange{Selector: sel, From: from, To: endOfDay(startOfDay(to))}, nil
	case RangeRecent:
		return DateRange{Selector: sel, OpenEnded: true}, nil
	default:
		return DateRange{}, fmt.Errorf("unknown range selector %q", sel)
	}
}

func (r DateRange) Unbounded() bool { return r.Selector == RangeRecent }

// HourlyBuckets spans the window in one-hour buckets, floored at 24.
func (r DateRange) HourlyBuckets() int {
	n := int(math.Ceil(r.To.Sub(r.From).Hours()))
	if n < 24 {
		n = 24
	}
	return n
}

// DailyBuckets spans the window in 24-hour buckets, floored at 1.
func (r DateRange) DailyBuckets() int {
	n := int(math.Ceil(r.To.Sub(r.From).Hours() / 24))
	if n < 1 {
		n = 1
	}
	return n
}

// HourIndex places t in the hourly histogram. The second return is false when
// t falls outside the displayed window; such records are silently dropped.
func (r DateRange) HourIndex(t time.Time) (int, bool) {
	if t.Before(r.From) {
		return 0, false
	}
	idx := int(t.Sub(r.From) / time.Hour)
	if idx >= r.HourlyBuckets() {
		return 0, false
	}
	return idx, true
}

func (r DateRange) DayIndex(t time.Time) (int, bool) {
	if t.Before(r.From) {
		return 0, false
	}
	idx := int(t.Sub(r.From) / (24 * time.Hour))
	if idx >= r.DailyBuckets() {
		return 0, false
	}
	return idx, true
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(dayStart time.Time) time.Time {
	return dayStart.Add(24*time.Hour - time.Millisecond)
}
