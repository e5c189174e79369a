package workflow

import (
	"strings"
	"time"

	"servicetrack/store"
)

// BayWorkItem is one work type on one visit in the bay board.
type BayWorkItem struct {
	VisitID       int64     `json:"visitId"`
	VehicleNumber string    `json:"vehicleNumber"`
	WorkType      string    `json:"workType"`
	BayNumber     *int      `json:"bayNumber"`
	Timestamp     time.Time `json:"timestamp"`
}

// BayWorkBoard splits bay work into running and finished items.
type BayWorkBoard struct {
	InProgress []BayWorkItem `json:"inProgressVehicles"`
	Finished   []BayWorkItem `json:"finishedVehicles"`
}

type bayGroup struct {
	workType  string
	lastStart *store.StageEvent
	lastEnd   *store.StageEvent
}

// BuildBayWorkBoard groups each visit's bay-work events by work type. A
// group is in progress when its last Start follows its last End; running
// items carry the Start time, finished ones the End time.
func (c *Catalog) BuildBayWorkBoard(visits []*store.Visit) BayWorkBoard {
	board := BayWorkBoard{InProgress: []BayWorkItem{}, Finished: []BayWorkItem{}}
	for _, v := range visits {
		var groups []*bayGroup
		index := map[string]*bayGroup{}
		for i := range v.Events {
			ev := &v.Events[i]
			st := c.Parse(ev.StageName)
			if st.Kind != KindBayWork {
				continue
			}
			g := index[st.WorkType]
			if g == nil {
				g = &bayGroup{workType: st.WorkType}
				index[st.WorkType] = g
				groups = append(groups, g)
			}
			if ev.EventType == store.EventStart {
				g.lastStart = ev
			} else {
				g.lastEnd = ev
			}
		}
		for _, g := range groups {
			if g.lastStart == nil {
				continue
			}
			item := BayWorkItem{
				VisitID:       v.ID,
				VehicleNumber: v.VehicleNumber,
				WorkType:      g.workType,
				BayNumber:     g.lastStart.BayNumber,
			}
			if g.lastEnd == nil || g.lastStart.Seq > g.lastEnd.Seq {
				item.Timestamp = g.lastStart.Timestamp
				board.InProgress = append(board.InProgress, item)
			} else {
				item.Timestamp = g.lastEnd.Timestamp
				board.Finished = append(board.Finished, item)
			}
		}
	}
	return board
}

// boardStage reports whether a stage feeds the bay-in-progress query. The
// list is fixed; new catalog entries do not widen it.
func boardStage(name string) bool {
	return name == StageBayAllocation || interactiveStage(name)
}

func interactiveStage(name string) bool {
	return name == StageInteractiveBay || strings.HasPrefix(name, BayWorkPrefix)
}

// HasOpenBayStage reports whether bay allocation, the interactive bay or any
// bay work on the visit has more Starts than Ends.
func HasOpenBayStage(v *store.Visit) bool {
	balance := map[string]int{}
	for _, ev := range v.Events {
		if !boardStage(ev.StageName) {
			continue
		}
		if ev.EventType == store.EventStart {
			balance[ev.StageName]++
		} else {
			balance[ev.StageName]--
		}
	}
	for _, n := range balance {
		if n > 0 {
			return true
		}
	}
	return false
}

// FinishedInteractive reports whether the visit has both a Start and an End
// among the interactive bay and bay work stages.
func FinishedInteractive(v *store.Visit) bool {
	var started, ended bool
	for _, ev := range v.Events {
		if !interactiveStage(ev.StageName) {
			continue
		}
		if ev.EventType == store.EventStart {
			started = true
		} else {
			ended = true
		}
	}
	return started && ended
}
