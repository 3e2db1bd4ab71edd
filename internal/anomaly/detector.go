package anomaly

import (
	"cmp"
	"slices"

	"github.com/septivank/water-metering-sync/internal/config"
	"github.com/septivank/water-metering-sync/internal/db"
	"github.com/septivank/water-metering-sync/internal/directory"
)

// Entry pairs a connection's consumption with the building owning it
type Entry struct {
	Snapshot db.ConsumptionSnapshot
	Building *directory.Building
}

// Status returns the current mission status of the entry's building
func (e Entry) Status() string {
	if e.Building == nil {
		return ""
	}
	return e.Building.CurrentStatus()
}

// BuildingName returns the building name, or "" for unmatched connections
func (e Entry) BuildingName() string {
	if e.Building == nil {
		return ""
	}
	return e.Building.Name
}

// Warning is an entry whose daily differential crossed the threshold
type Warning struct {
	Entry
	Daily    *float64
	Weekly   *float64
	Priority int
}

// Detector flags and ranks differential warnings with configurable thresholds
type Detector struct {
	rules      config.AlertRules
	priorities map[string]int
}

// NewDetector creates a new differential detector with the given rules
func NewDetector(rules config.AlertRules) *Detector {
	return &Detector{
		rules:      rules,
		priorities: rules.PriorityMap(),
	}
}

// Rules returns the rules the detector was built with
func (d *Detector) Rules() config.AlertRules {
	return d.rules
}

// Join attaches buildings to snapshots by connection id. Connections without
// a building are kept with a nil Building.
func Join(snapshots []db.ConsumptionSnapshot, buildings []directory.Building) []Entry {
	byPDS := directory.IndexByPDS(buildings)

	entries := make([]Entry, 0, len(snapshots))
	for _, s := range snapshots {
		entry := Entry{Snapshot: s}
		if b, ok := byPDS[s.PDS]; ok {
			entry.Building = &b
		}
		entries = append(entries, entry)
	}
	return entries
}

// Delta returns last minus reference, or nil when either is missing
func Delta(last, reference *float64) *float64 {
	if last == nil || reference == nil {
		return nil
	}
	d := *last - *reference
	return &d
}

// Priority ranks a mission status; unknown and missing statuses sort last
func (d *Detector) Priority(status string) int {
	if p, ok := d.priorities[status]; ok && status != "" {
		return p
	}
	return d.rules.UnknownPriority
}

// QminWarnings returns the entries whose qmin rose by more than the threshold
// in a day, excluding abandoned buildings. Warnings are ordered by status
// priority, then daily and weekly rise, largest first.
func (d *Detector) QminWarnings(entries []Entry) []Warning {
	var warnings []Warning
	for _, e := range entries {
		daily := Delta(e.Snapshot.LastQmin, e.Snapshot.QminDailyDifferential)
		if daily == nil || *daily <= d.rules.QminThreshold {
			continue
		}
		if e.Status() == d.rules.ExcludedStatus {
			continue
		}
		warnings = append(warnings, Warning{
			Entry:    e,
			Daily:    daily,
			Weekly:   Delta(e.Snapshot.LastQmin, e.Snapshot.QminWeeklyDifferential),
			Priority: d.Priority(e.Status()),
		})
	}

	slices.SortStableFunc(warnings, func(a, b Warning) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		if c := cmp.Compare(orZero(b.Daily), orZero(a.Daily)); c != 0 {
			return c
		}
		return cmp.Compare(orZero(b.Weekly), orZero(a.Weekly))
	})
	return warnings
}

// IndexWarnings returns the entries whose index rose by more than the
// threshold in a day, largest rise first.
func (d *Detector) IndexWarnings(entries []Entry) []Warning {
	var warnings []Warning
	for _, e := range entries {
		daily := Delta(e.Snapshot.LastIndex, e.Snapshot.IndexDailyDifferential)
		if daily == nil || *daily <= d.rules.IndexThreshold {
			continue
		}
		warnings = append(warnings, Warning{
			Entry:    e,
			Daily:    daily,
			Weekly:   Delta(e.Snapshot.LastIndex, e.Snapshot.IndexWeeklyDifferential),
			Priority: d.Priority(e.Status()),
		})
	}

	slices.SortStableFunc(warnings, func(a, b Warning) int {
		return cmp.Compare(orZero(b.Daily), orZero(a.Daily))
	})
	return warnings
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
