package workflow

import (
	"fmt"
	"strings"
	"time"

	"servicetrack/config"
	"servicetrack/store"
)

// Submission is one Start/End report from a role at a stage.
type Submission struct {
	VehicleNumber string   `json:"vehicleNumber"`
	Role          string   `json:"role"`
	StageName     string   `json:"stageName"`
	EventType     string   `json:"eventType"`
	InKM          *float64 `json:"inKM,omitempty"`
	OutKM         *float64 `json:"outKM,omitempty"`
	InDriver      *string  `json:"inDriver,omitempty"`
	OutDriver     *string  `json:"outDriver,omitempty"`
	WorkType      *string  `json:"workType,omitempty"`
	BayNumber     *int     `json:"bayNumber,omitempty"`
}

// Decision is an accepted submission: the event to append and its effects.
type Decision struct {
	VehicleNumber string
	NewVisit      bool
	Event         store.StageEvent
	// CloseAt is set when the event ends the visit.
	CloseAt *time.Time
	Message string
}

// NormalizeVehicle trims and uppercases a vehicle number.
func NormalizeVehicle(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Rules holds the static workshop vocabulary the validator checks against.
type Rules struct {
	Catalog     *Catalog
	roles       map[string]bool
	workTypes   map[string]bool
	bayMin      int
	bayMax      int
	gateStage   string
	endDebounce time.Duration
}

func NewRules(w config.WorkshopConfig) *Rules {
	r := &Rules{
		Catalog:     NewCatalog(w.Stages),
		roles:       make(map[string]bool, len(w.Roles)),
		workTypes:   make(map[string]bool, len(w.WorkTypes)),
		bayMin:      w.BayMin,
		bayMax:      w.BayMax,
		gateStage:   w.GateStage,
		endDebounce: w.EndDebounce,
	}
	for _, role := range w.Roles {
		r.roles[role] = true
	}
	for _, wt := range w.WorkTypes {
		r.workTypes[wt] = true
	}
	if r.gateStage == "" {
		r.gateStage = StageSecurityGate
	}
	return r
}

// GateStage is the stage whose Security Guard End closes a visit.
func (r *Rules) GateStage() string { return r.gateStage }

// Decide checks s against the latest visit for the vehicle (nil if none)
// and returns the event to append, or a *Rejection.
func (r *Rules) Decide(visit *store.Visit, s Submission, now time.Time) (*Decision, error) {
	vehicle := NormalizeVehicle(s.VehicleNumber)
	stage := strings.TrimSpace(s.StageName)
	if vehicle == "" || s.Role == "" || stage == "" || s.EventType == "" {
		return nil, reject(MissingFields, stage, "Required fields are missing.")
	}
	if s.EventType != store.EventStart && s.EventType != store.EventEnd {
		return nil, reject(InvalidEventType, stage, "Invalid event type.")
	}
	if !r.roles[s.Role] {
		return nil, reject(UnknownRole, stage, fmt.Sprintf("Unknown role %q.", s.Role))
	}

	workType := ""
	if s.Role == RoleBayTechnician && s.WorkType != nil {
		workType = strings.TrimSpace(*s.WorkType)
	}
	if workType != "" && !r.workTypes[workType] {
		return nil, reject(InvalidWorkType, stage, fmt.Sprintf("Unknown work type %q.", workType))
	}
	if s.Role == RoleBayTechnician && s.EventType == store.EventStart && s.BayNumber != nil {
		if n := *s.BayNumber; n < r.bayMin || n > r.bayMax {
			return nil, reject(InvalidBayNumber, stage,
				fmt.Sprintf("Bay number must be between %d and %d.", r.bayMin, r.bayMax))
		}
	}

	actual := stage
	if workType != "" {
		actual = BayWorkName(workType)
	}
	ev := gatedEvent(s, actual, workType, now)
	d := &Decision{VehicleNumber: vehicle, Event: ev}

	if visit == nil || !visit.IsOpen(now) {
		d.NewVisit = true
		d.Message = "New vehicle entry recorded."
		return d, nil
	}

	bay := r.Catalog.Parse(stage).BayRelated() || r.Catalog.Parse(actual).BayRelated()

	if s.EventType == store.EventStart {
		if !bay {
			if last := lastNamed(visit.Events, stage); last != nil {
				if last.EventType == store.EventEnd {
					return nil, reject(StageAlreadyCompleted, stage,
						fmt.Sprintf("Cannot restart %s. It has already been completed.", stage))
				}
				return nil, reject(StageAlreadyStarted, stage,
					fmt.Sprintf("%s has already started. Complete it before starting again.", stage))
			}
		}
		d.Message = actual + " started."
		return d, nil
	}

	if last := lastNamed(visit.Events, actual); last != nil && now.Sub(last.Timestamp) < r.endDebounce {
		return nil, reject(TooSoonToEnd, actual,
			fmt.Sprintf("Wait at least %d seconds before completing %s.", int(r.endDebounce/time.Second), actual))
	}
	if !bay {
		if last := lastNamed(visit.Events, stage); last == nil || last.EventType != store.EventStart {
			return nil, reject(StageNotStarted, stage, fmt.Sprintf("%s was not started.", stage))
		}
	}
	if s.Role == RoleSecurityGuard && stage == r.gateStage {
		exit := now
		d.CloseAt = &exit
	}
	d.Message = actual + " completed."
	return d, nil
}

// gatedEvent builds the stored event, keeping only the optional fields the
// role and event type are allowed to set.
func gatedEvent(s Submission, stageName, workType string, now time.Time) store.StageEvent {
	ev := store.StageEvent{
		StageName: stageName,
		Role:      s.Role,
		EventType: s.EventType,
		Timestamp: now,
	}
	start := s.EventType == store.EventStart
	switch s.Role {
	case RoleSecurityGuard:
		if start {
			ev.InKM = s.InKM
			ev.InDriver = s.InDriver
		} else {
			ev.OutKM = s.OutKM
			ev.OutDriver = s.OutDriver
		}
	case RoleBayTechnician:
		if start {
			if workType != "" {
				ev.WorkType = &workType
			}
			ev.BayNumber = s.BayNumber
		}
	}
	return ev
}

// lastNamed returns the most recently appended event with the given name.
func lastNamed(events []store.StageEvent, name string) *store.StageEvent {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].StageName == name {
			return &events[i]
		}
	}
	return nil
}
