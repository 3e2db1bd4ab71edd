package reconcile

import (
	"time"

	"github.com/septivank/water-metering-sync/tools/timeparser"
)

// Window is a half-open time range [From, Until). A nil bound is unbounded.
type Window struct {
	From  *time.Time
	Until *time.Time
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.Until != nil && !t.Before(*w.Until) {
		return false
	}
	return true
}

// IndexWindow keeps index readings taken on or after UTC midnight of the day
// lookbackDays before now.
func IndexWindow(now time.Time, lookbackDays int) Window {
	from := timeparser.DaysAgoUTCMidnight(now, lookbackDays)
	return Window{From: &from}
}

// QminWindow keeps qmin readings between olderDays and newerDays ago. The
// newest days are excluded because their qmin is not consolidated yet.
func QminWindow(now time.Time, olderDays, newerDays int) Window {
	from := timeparser.DaysAgoUTCMidnight(now, olderDays)
	until := timeparser.DaysAgoUTCMidnight(now, newerDays)
	return Window{From: &from, Until: &until}
}
