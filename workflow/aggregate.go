package workflow

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"servicetrack/store"
)

// StageAverage is the mean paired duration of a stage, in milliseconds.
type StageAverage struct {
	StageName string  `json:"stageName"`
	AvgTime   float64 `json:"avgTime"`
	Samples   int     `json:"samples"`
}

// StageCount is how many visits touched a stage.
type StageCount struct {
	StageName     string `json:"stageName"`
	TotalVehicles int    `json:"totalVehicles"`
}

// StageDurations averages the paired duration of every Start across
// visits. Stages that never paired are omitted.
func StageDurations(visits []*store.Visit, t PairingTable) []StageAverage {
	type acc struct {
		total time.Duration
		n     int
	}
	sums := map[string]*acc{}
	for _, v := range visits {
		for i := range v.Events {
			ev := &v.Events[i]
			if ev.EventType != store.EventStart {
				continue
			}
			p := t.Pair(v.Events, i)
			if p == nil {
				continue
			}
			a := sums[ev.StageName]
			if a == nil {
				a = &acc{}
				sums[ev.StageName] = a
			}
			a.total += p.Timestamp.Sub(ev.Timestamp)
			a.n++
		}
	}
	out := make([]StageAverage, 0, len(sums))
	for name, a := range sums {
		ms := float64(a.total) / float64(time.Millisecond)
		out = append(out, StageAverage{StageName: name, AvgTime: ms / float64(a.n), Samples: a.n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StageName < out[j].StageName })
	return out
}

// StageOccupancy counts, per stage name, the visits that have at least one
// event for it.
func StageOccupancy(visits []*store.Visit) []StageCount {
	counts := map[string]int{}
	for _, v := range visits {
		seen := map[string]bool{}
		for _, ev := range v.Events {
			if !seen[ev.StageName] {
				seen[ev.StageName] = true
				counts[ev.StageName]++
			}
		}
	}
	out := make([]StageCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, StageCount{StageName: name, TotalVehicles: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StageName < out[j].StageName })
	return out
}

// WindowStart turns a "days" query value into the earliest entry time to
// include. "", "all" and values without a leading integer mean no filter.
// Only the leading integer counts, so "7d" is seven days; a negative count
// puts the window start in the future and selects nothing.
func WindowStart(days string, now time.Time) *time.Time {
	days = strings.TrimSpace(days)
	if days == "" || strings.EqualFold(days, "all") {
		return nil
	}
	n, ok := leadingInt(days)
	if !ok {
		return nil
	}
	since := now.AddDate(0, 0, -n)
	return &since
}

func leadingInt(s string) (int, bool) {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
