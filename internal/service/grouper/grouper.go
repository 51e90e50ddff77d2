// Package grouper partitions one employee's raw biometric punches into
// shift instances against the resolved schedule windows.
package grouper

import (
	"fmt"
	"sort"
	"time"

	"github.com/shiftsync/attendance-engine/internal/domain/scan"
	"github.com/shiftsync/attendance-engine/internal/domain/schedule"
)

// Params are the grouping tunables that are not part of the schedule
// itself. TailWindow bounds how long after scheduled clock-out a punch
// can still belong to the shift.
type Params struct {
	TailWindow time.Duration
}

// DefaultTailWindow tolerates overtime punches a few hours past the end
// of shift without bleeding into the next day's window.
const DefaultTailWindow = 4 * time.Hour

// ShiftInstance is a candidate pairing of observed scans to one shift
// window, keyed to the window's reference date.
type ShiftInstance struct {
	EmployeeID string
	Date       time.Time
	Window     schedule.ShiftWindow
	TimeIn     *scan.Record
	TimeOut    *scan.Record
	// Extra holds claimed scans that ended up as neither time-in nor
	// time-out (repeated taps). They are kept for audit, never dropped.
	Extra []scan.Record
	// WorkedRestDay marks punches found on a scheduled rest day.
	WorkedRestDay bool
	// NoSchedule marks punches found on a date with no window at all.
	NoSchedule bool
	// ReviewReasons, when non-empty, force the instance to manual review.
	ReviewReasons []string
}

// Result is the grouping outcome for one employee over a date range.
// Instances are ordered by reference date ascending; Unmatched carries
// the scans no window could claim, for the anomaly report.
type Result struct {
	Instances []ShiftInstance
	Unmatched []scan.Record
}

type Grouper struct {
	params Params
}

func New(params Params) *Grouper {
	if params.TailWindow <= 0 {
		params.TailWindow = DefaultTailWindow
	}
	return &Grouper{params: params}
}

// Group assigns each of one employee's scans to exactly one shift
// instance. Windows and scans may arrive unordered; claiming is
// deterministic regardless.
func (g *Grouper) Group(employeeID string, windows []schedule.ShiftWindow, scans []scan.Record) Result {
	windows = sortedWindows(windows)
	scans, dupes := dedupe(sortedScans(scans))

	work := make([]schedule.ShiftWindow, 0, len(windows))
	rest := make([]schedule.ShiftWindow, 0)
	for _, w := range windows {
		if w.RestDay {
			rest = append(rest, w)
		} else {
			work = append(work, w)
		}
	}

	claims := make(map[int][]scan.Record, len(work)) // work index -> scans
	tied := make(map[int]bool)
	var leftovers []scan.Record

	for _, s := range scans {
		idx, tie := g.claim(work, s.Timestamp)
		if idx < 0 {
			leftovers = append(leftovers, s)
			continue
		}
		claims[idx] = append(claims[idx], s)
		if tie >= 0 {
			// Equidistant between two windows: the earlier date keeps
			// the scan, both instances go to manual review.
			tied[idx] = true
			tied[tie] = true
		}
	}

	restByDay, orphanByDay, unmatched := g.splitLeftovers(work, rest, leftovers)

	var instances []ShiftInstance
	for i, w := range work {
		inst := buildInstance(w, claims[i])
		if tied[i] {
			inst.ReviewReasons = append(inst.ReviewReasons,
				fmt.Sprintf("scan claim tied with an adjacent window around %s", w.ScheduledIn.Format("2006-01-02 15:04")))
		}
		// Scanless scheduled days are still emitted; the evaluator
		// decides between ncns and advised absence.
		instances = append(instances, inst)
	}
	for _, w := range rest {
		day := dayKey(w.Date)
		claimed := restByDay[day]
		if len(claimed) == 0 {
			// Rest day without punches produces no instance at all.
			continue
		}
		inst := buildInstance(w, claimed)
		inst.WorkedRestDay = true
		inst.ReviewReasons = append(inst.ReviewReasons,
			fmt.Sprintf("%d scan(s) recorded on a scheduled rest day", len(claimed)))
		instances = append(instances, inst)
	}
	for day, orphaned := range orphanByDay {
		// Punches on a date with no schedule at all are surfaced as a
		// review instance rather than silently parked in the anomaly
		// list: the requested range must not have invisible holes.
		inst := buildInstance(schedule.ShiftWindow{
			EmployeeID: employeeID,
			Date:       day,
		}, orphaned)
		inst.NoSchedule = true
		inst.ReviewReasons = append(inst.ReviewReasons, "no schedule defined for this date")
		instances = append(instances, inst)
	}

	sort.SliceStable(instances, func(i, j int) bool {
		return instances[i].Date.Before(instances[j].Date)
	})

	unmatched = append(unmatched, dupes...)
	sort.SliceStable(unmatched, func(i, j int) bool {
		return unmatched[i].Timestamp.Before(unmatched[j].Timestamp)
	})
	return Result{Instances: instances, Unmatched: unmatched}
}

// claim picks the window whose scheduled time-in is nearest to ts among
// windows whose match interval contains ts. Returns the winning index
// and, when the distance was exactly tied, the losing index; (-1, -1)
// when no window can claim the scan. Ties resolve to the earlier
// reference date so claiming stays deterministic and date-ordered.
func (g *Grouper) claim(work []schedule.ShiftWindow, ts time.Time) (int, int) {
	best := -1
	tie := -1
	var bestDist time.Duration
	for i, w := range work {
		if !w.Contains(ts, g.params.TailWindow) {
			continue
		}
		d := absDuration(ts.Sub(w.ScheduledIn))
		switch {
		case best < 0 || d < bestDist:
			best, bestDist, tie = i, d, -1
		case d == bestDist:
			// Earlier date already holds best because work is sorted.
			tie = i
		}
	}
	return best, tie
}

// splitLeftovers routes scans no work window claimed: to a rest-day
// window covering the scan's date, to a no-schedule bucket when the date
// has no window at all, or to the unmatched anomaly list when the date
// is scheduled but the punch fell outside the match interval.
func (g *Grouper) splitLeftovers(work, rest []schedule.ShiftWindow, leftovers []scan.Record) (map[time.Time][]scan.Record, map[time.Time][]scan.Record, []scan.Record) {
	restDays := make(map[time.Time]bool, len(rest))
	for _, w := range rest {
		restDays[dayKey(w.Date)] = true
	}
	workDays := make(map[time.Time]bool, len(work))
	for _, w := range work {
		workDays[dayKey(w.Date)] = true
	}

	restByDay := make(map[time.Time][]scan.Record)
	orphanByDay := make(map[time.Time][]scan.Record)
	var unmatched []scan.Record
	for _, s := range leftovers {
		day := dayKey(s.Timestamp)
		switch {
		case restDays[day]:
			restByDay[day] = append(restByDay[day], s)
		case !workDays[day]:
			orphanByDay[day] = append(orphanByDay[day], s)
		default:
			unmatched = append(unmatched, s)
		}
	}
	return restByDay, orphanByDay, unmatched
}

// buildInstance pairs a window's claimed scans: earliest is time-in, the
// latest strictly-later one is time-out, everything between is extra.
func buildInstance(w schedule.ShiftWindow, claimed []scan.Record) ShiftInstance {
	inst := ShiftInstance{
		EmployeeID: w.EmployeeID,
		Date:       dayKey(w.Date),
		Window:     w,
	}
	if len(claimed) == 0 {
		return inst
	}
	sort.SliceStable(claimed, func(i, j int) bool {
		return claimed[i].Timestamp.Before(claimed[j].Timestamp)
	})

	in := claimed[0]
	inst.TimeIn = &in
	if last := claimed[len(claimed)-1]; last.Timestamp.After(in.Timestamp) {
		out := last
		inst.TimeOut = &out
		inst.Extra = append(inst.Extra, claimed[1:len(claimed)-1]...)
	} else {
		inst.Extra = append(inst.Extra, claimed[1:]...)
	}
	return inst
}

// dedupe collapses duplicate taps at the same instant to one record,
// keeping the surplus for the anomaly list.
func dedupe(scans []scan.Record) ([]scan.Record, []scan.Record) {
	var kept, dupes []scan.Record
	for _, s := range scans {
		if n := len(kept); n > 0 && kept[n-1].SameInstant(s) {
			dupes = append(dupes, s)
			continue
		}
		kept = append(kept, s)
	}
	return kept, dupes
}

func sortedWindows(windows []schedule.ShiftWindow) []schedule.ShiftWindow {
	out := make([]schedule.ShiftWindow, len(windows))
	copy(out, windows)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func sortedScans(scans []scan.Record) []scan.Record {
	out := make([]scan.Record, len(scans))
	copy(out, scans)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// dayKey truncates to local midnight so scans and windows compare on the
// calendar date the site observed.
func dayKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
