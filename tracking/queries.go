package tracking

import (
	"fmt"
	"time"

	"servicetrack/store"
	"servicetrack/workflow"
)

// VehicleTimeline is a visit's timeline labeled with its vehicle.
type VehicleTimeline struct {
	VisitID       int64  `json:"visitId"`
	VehicleNumber string `json:"vehicleNumber"`
	workflow.Timeline
}

// FloorEntry is one vehicle currently inside the center.
type FloorEntry struct {
	VisitID       int64     `json:"visitId"`
	VehicleNumber string    `json:"vehicleNumber"`
	EntryTime     time.Time `json:"entryTime"`
	CurrentStage  *string   `json:"currentStage"`
	LastEventAt   time.Time `json:"lastEventAt"`
}

// Visit returns the latest visit for a vehicle.
func (t *Tracker) Visit(vehicleNumber string) (*store.Visit, error) {
	return t.latest(workflow.NormalizeVehicle(vehicleNumber))
}

// Visits returns every visit, newest first.
func (t *Tracker) Visits() ([]*store.Visit, error) {
	return t.list(store.VisitFilter{})
}

func (t *Tracker) list(f store.VisitFilter) ([]*store.Visit, error) {
	visits, err := t.log.ListVisits(f)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	if visits == nil {
		visits = []*store.Visit{}
	}
	return visits, nil
}

// Timeline builds the single-vehicle timeline with the configured detail
// pairing profile.
func (t *Tracker) Timeline(vehicleNumber string) (*VehicleTimeline, error) {
	v, err := t.Visit(vehicleNumber)
	if err != nil {
		return nil, err
	}
	return &VehicleTimeline{
		VisitID:       v.ID,
		VehicleNumber: v.VehicleNumber,
		Timeline:      workflow.BuildTimeline(v, t.detail),
	}, nil
}

// AllTimelines builds the full-visit timeline, with bookends, for every visit.
func (t *Tracker) AllTimelines() ([]VehicleTimeline, error) {
	visits, err := t.Visits()
	if err != nil {
		return nil, err
	}
	out := make([]VehicleTimeline, 0, len(visits))
	for _, v := range visits {
		out = append(out, VehicleTimeline{
			VisitID:       v.ID,
			VehicleNumber: v.VehicleNumber,
			Timeline:      workflow.BuildVisitTimeline(v, t.summary, t.rules.GateStage()),
		})
	}
	return out, nil
}

func (t *Tracker) windowed(days string) ([]*store.Visit, error) {
	return t.list(store.VisitFilter{EnteredSince: workflow.WindowStart(days, t.now())})
}

// StageDurations averages stage durations over visits entered in the window.
func (t *Tracker) StageDurations(days string) ([]workflow.StageAverage, error) {
	visits, err := t.windowed(days)
	if err != nil {
		return nil, err
	}
	return workflow.StageDurations(visits, t.summary), nil
}

// StageOccupancy counts visits per stage over the window.
func (t *Tracker) StageOccupancy(days string) ([]workflow.StageCount, error) {
	visits, err := t.windowed(days)
	if err != nil {
		return nil, err
	}
	return workflow.StageOccupancy(visits), nil
}

// VisitsWithStartedStage returns visits that have a Start matching any of
// the given stages.
func (t *Tracker) VisitsWithStartedStage(matches ...store.StageMatch) ([]*store.Visit, error) {
	for i := range matches {
		matches[i].EventType = store.EventStart
	}
	return t.list(store.VisitFilter{AnyStage: matches})
}

// BayAllocationStarted lists visits where bay allocation has started.
func (t *Tracker) BayAllocationStarted() ([]*store.Visit, error) {
	return t.VisitsWithStartedStage(store.StageMatch{Name: workflow.StageBayAllocation})
}

// InteractiveStarted lists visits where interactive bay or bay work started.
func (t *Tracker) InteractiveStarted() ([]*store.Visit, error) {
	return t.VisitsWithStartedStage(
		store.StageMatch{Name: workflow.StageInteractiveBay},
		store.StageMatch{Name: workflow.BayWorkPrefix, Prefix: true},
	)
}

// VisitsWithOpenBayStage lists visits with a bay stage started more often
// than it ended.
func (t *Tracker) VisitsWithOpenBayStage() ([]*store.Visit, error) {
	return t.filter(workflow.HasOpenBayStage)
}

// VisitsFinishedInteractive lists visits with both a Start and an End among
// their interactive and bay-work stages.
func (t *Tracker) VisitsFinishedInteractive() ([]*store.Visit, error) {
	return t.filter(workflow.FinishedInteractive)
}

func (t *Tracker) filter(keep func(*store.Visit) bool) ([]*store.Visit, error) {
	visits, err := t.Visits()
	if err != nil {
		return nil, err
	}
	out := make([]*store.Visit, 0, len(visits))
	for _, v := range visits {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// BayWorkBoard reports running and finished bay work per visit.
func (t *Tracker) BayWorkBoard() (workflow.BayWorkBoard, error) {
	visits, err := t.list(store.VisitFilter{AnyStage: []store.StageMatch{
		{Name: workflow.BayWorkPrefix, Prefix: true},
	}})
	if err != nil {
		return workflow.BayWorkBoard{}, err
	}
	return t.rules.Catalog.BuildBayWorkBoard(visits), nil
}

// EnteredToday counts visits entered since local midnight.
func (t *Tracker) EnteredToday() (int, error) {
	now := t.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	n, err := t.log.CountVisitsSince(midnight)
	if err != nil {
		return 0, fmt.Errorf("count today: %w", err)
	}
	return n, nil
}

// Floor lists open visits with their current stage, oldest entry first.
func (t *Tracker) Floor() ([]FloorEntry, error) {
	visits, err := t.list(store.VisitFilter{OpenOnly: true})
	if err != nil {
		return nil, err
	}
	out := make([]FloorEntry, 0, len(visits))
	for i := len(visits) - 1; i >= 0; i-- {
		out = append(out, FloorEntryFor(visits[i], t.summary))
	}
	return out, nil
}

// FloorEntryFor summarizes one visit for the floor board.
func FloorEntryFor(v *store.Visit, pairing workflow.PairingTable) FloorEntry {
	e := FloorEntry{
		VisitID:       v.ID,
		VehicleNumber: v.VehicleNumber,
		EntryTime:     v.EntryTime,
		CurrentStage:  workflow.BuildTimeline(v, pairing).CurrentStage,
		LastEventAt:   v.EntryTime,
	}
	if n := len(v.Events); n > 0 {
		e.LastEventAt = v.Events[n-1].Timestamp
	}
	return e
}

// FloorEntry summarizes one visit with the tracker's summary pairing.
func (t *Tracker) FloorEntry(v *store.Visit) FloorEntry {
	return FloorEntryFor(v, t.summary)
}
