package tracking

import (
	"errors"
	"fmt"
	"log"
	"time"

	"servicetrack/store"
	"servicetrack/workflow"
)

var (
	// ErrConcurrencyConflict means another submission for the same visit
	// won the race. Nothing was written; retry the submission.
	ErrConcurrencyConflict = errors.New("visit changed concurrently, retry")
	// ErrNotFound means no visit matched.
	ErrNotFound = errors.New("vehicle not found")
)

// EventLog is the persistence the tracker needs. *store.DB satisfies it.
type EventLog interface {
	GetLatestVisit(vehicleNumber string) (*store.Visit, error)
	ListVisits(f store.VisitFilter) ([]*store.Visit, error)
	CreateVisit(v *store.Visit, first *store.StageEvent) error
	AppendEvent(visitID int64, expectedVersion int, ev *store.StageEvent, closeAt *time.Time) error
	CountVisitsSince(t time.Time) (int, error)
	DeleteAllVisits() (int64, error)
}

// Result is an accepted submission.
type Result struct {
	Visit    *store.Visit     `json:"vehicle"`
	Event    store.StageEvent `json:"event"`
	Message  string           `json:"message"`
	NewVisit bool             `json:"newVehicle"`
}

// Tracker records stage events and answers the read-side queries.
type Tracker struct {
	log     EventLog
	rules   *workflow.Rules
	emitter Emitter
	detail  workflow.PairingTable
	summary workflow.PairingTable
	locks   keyedMutex
	now     func() time.Time
}

// New builds a tracker. detail selects the pairing profile for the
// single-vehicle timeline; summaries always use the bay-work profile.
func New(eventLog EventLog, rules *workflow.Rules, emitter Emitter, detail workflow.Profile) (*Tracker, error) {
	detailTable, err := workflow.Pairing(detail)
	if err != nil {
		return nil, err
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Tracker{
		log:     eventLog,
		rules:   rules,
		emitter: emitter,
		detail:  detailTable,
		summary: workflow.MustPairing(workflow.ProfileBayWork),
		now:     time.Now,
	}, nil
}

// SetClock replaces the time source. Tests only.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

// Rules returns the workshop rules the tracker validates with.
func (t *Tracker) Rules() *workflow.Rules { return t.rules }

// Submit validates s against the vehicle's latest visit and appends the
// resulting event. Rejections come back as *workflow.Rejection.
func (t *Tracker) Submit(s workflow.Submission) (*Result, error) {
	vehicle := workflow.NormalizeVehicle(s.VehicleNumber)
	unlock := t.locks.lock(vehicle)
	defer unlock()

	visit, err := t.latest(vehicle)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := t.now().UTC()
	d, err := t.rules.Decide(visit, s, now)
	if err != nil {
		var rej *workflow.Rejection
		if errors.As(err, &rej) {
			log.Printf("tracking: %s rejected %s %s: %s", vehicle, s.StageName, s.EventType, rej.Message)
			t.emitter.EmitStageRejected(vehicle, s, rej)
		}
		return nil, err
	}

	ev := d.Event
	if d.NewVisit {
		visit = &store.Visit{VehicleNumber: d.VehicleNumber, EntryTime: now}
		if err := t.log.CreateVisit(visit, &ev); err != nil {
			return nil, storeErr("create visit", err)
		}
		log.Printf("tracking: %s new visit %d (%s %s)", vehicle, visit.ID, ev.StageName, ev.EventType)
		t.emitter.EmitVisitOpened(visit)
		t.emitter.EmitStageRecorded(visit, ev, d.Message)
		return &Result{Visit: visit, Event: ev, Message: d.Message, NewVisit: true}, nil
	}

	if err := t.log.AppendEvent(visit.ID, visit.Version, &ev, d.CloseAt); err != nil {
		return nil, storeErr("append event", err)
	}
	visit.Events = append(visit.Events, ev)
	visit.Version++
	if d.CloseAt != nil {
		visit.ExitTime = d.CloseAt
	}
	log.Printf("tracking: %s visit %d %s %s", vehicle, visit.ID, ev.StageName, ev.EventType)
	t.emitter.EmitStageRecorded(visit, ev, d.Message)
	if d.CloseAt != nil {
		t.emitter.EmitVisitClosed(visit)
	}
	return &Result{Visit: visit, Event: ev, Message: d.Message}, nil
}

func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%s: %w", op, ErrConcurrencyConflict)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (t *Tracker) latest(vehicle string) (*store.Visit, error) {
	v, err := t.log.GetLatestVisit(vehicle)
	if err != nil {
		return nil, storeErr("load visit", err)
	}
	return v, nil
}

// Reset deletes every visit.
func (t *Tracker) Reset() (int64, error) {
	n, err := t.log.DeleteAllVisits()
	if err != nil {
		return 0, err
	}
	log.Printf("tracking: reset removed %d visits", n)
	t.emitter.EmitVisitsReset(n)
	return n, nil
}
