package workflow

import (
	"fmt"
	"time"

	"servicetrack/store"
)

// StillInProgress is the duration label of an unpaired Start.
const StillInProgress = "Still In Progress"

// Labels of the synthesized bookend entries in a full-visit timeline.
const (
	LabelSecurityIn  = "Security IN"
	LabelSecurityOut = "Security Out"
)

// TimelineEntry is one stage occurrence. Bookend entries carry only one
// timestamp and no duration.
type TimelineEntry struct {
	StageName string     `json:"stageName"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Duration  *string    `json:"duration"`
	// Elapsed is nil while the stage is open and for bookends.
	Elapsed *time.Duration `json:"-"`
}

type Timeline struct {
	CurrentStage *string         `json:"currentStage"`
	Entries      []TimelineEntry `json:"stageTimeline"`
}

// FormatDuration renders d as "{h}h {m}m {s}s", truncating each unit.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	mins := secs / 60
	hours := mins / 60
	return fmt.Sprintf("%dh %dm %ds", hours, mins%60, secs%60)
}

// BuildTimeline replays the visit's Start events through the pairing table.
// The last unpaired Start becomes the current stage.
func BuildTimeline(v *store.Visit, t PairingTable) Timeline {
	return buildTimeline(v, t, "")
}

// BuildVisitTimeline is BuildTimeline with "Security IN"/"Security Out"
// bookends; Starts of the gate stage are left out of the entries.
func BuildVisitTimeline(v *store.Visit, t PairingTable, gateStage string) Timeline {
	entry := v.EntryTime
	tl := Timeline{Entries: []TimelineEntry{{StageName: LabelSecurityIn, StartTime: &entry}}}
	inner := buildTimeline(v, t, gateStage)
	tl.CurrentStage = inner.CurrentStage
	tl.Entries = append(tl.Entries, inner.Entries...)
	if v.ExitTime != nil {
		exit := *v.ExitTime
		tl.Entries = append(tl.Entries, TimelineEntry{StageName: LabelSecurityOut, EndTime: &exit})
	}
	return tl
}

func buildTimeline(v *store.Visit, t PairingTable, suppress string) Timeline {
	tl := Timeline{Entries: []TimelineEntry{}}
	for i := range v.Events {
		ev := &v.Events[i]
		if ev.EventType != store.EventStart {
			continue
		}
		start := ev.Timestamp
		e := TimelineEntry{StageName: ev.StageName, StartTime: &start}
		if p := t.Pair(v.Events, i); p != nil {
			end := p.Timestamp
			elapsed := end.Sub(start)
			label := FormatDuration(elapsed)
			e.EndTime = &end
			e.Elapsed = &elapsed
			e.Duration = &label
		} else {
			name := ev.StageName
			tl.CurrentStage = &name
			label := StillInProgress
			e.Duration = &label
		}
		if suppress != "" && ev.StageName == suppress {
			continue
		}
		tl.Entries = append(tl.Entries, e)
	}
	return tl
}
