package workflow

import (
	"fmt"
	"strings"

	"servicetrack/store"
)

// SuccessorMatcher identifies the event that closes a Start.
// An empty Name means "the End of the same stage".
type SuccessorMatcher struct {
	Name      string
	Prefix    bool
	EventType string
}

func (m SuccessorMatcher) matches(start, e *store.StageEvent) bool {
	if m.Name == "" {
		return e.EventType == store.EventEnd && e.StageName == start.StageName
	}
	if e.EventType != m.EventType {
		return false
	}
	if m.Prefix {
		return strings.HasPrefix(e.StageName, m.Name)
	}
	return e.StageName == m.Name
}

// Profile names one pairing table.
type Profile string

const (
	// ProfileBayWork closes bay allocation at the first bay-work Start.
	ProfileBayWork Profile = "bay_work"
	// ProfileMaintenance closes bay allocation at "Maintenance Started".
	ProfileMaintenance Profile = "maintenance"
)

// PairingTable maps a stage name to its successor matcher. Stages absent
// from the table pair with their own End.
type PairingTable map[string]SuccessorMatcher

var sameStageEnd = SuccessorMatcher{}

// Pairing returns the table for a profile.
func Pairing(p Profile) (PairingTable, error) {
	t := PairingTable{
		StageJobCard: {Name: StageBayAllocation, EventType: store.EventStart},
	}
	switch p {
	case ProfileBayWork, "":
		t[StageBayAllocation] = SuccessorMatcher{Name: BayWorkPrefix, Prefix: true, EventType: store.EventStart}
	case ProfileMaintenance:
		t[StageBayAllocation] = SuccessorMatcher{Name: StageMaintenance, EventType: store.EventStart}
	default:
		return nil, fmt.Errorf("unknown pairing profile %q", p)
	}
	return t, nil
}

// MustPairing is Pairing for known profiles.
func MustPairing(p Profile) PairingTable {
	t, err := Pairing(p)
	if err != nil {
		panic(err)
	}
	return t
}

func (t PairingTable) matcher(stage string) SuccessorMatcher {
	if m, ok := t[stage]; ok {
		return m
	}
	return sameStageEnd
}

// Pair finds the first event in the log that closes events[i], or nil.
// The whole log is searched, so a repeated Start pairs with the earliest
// match even when it precedes the Start.
func (t PairingTable) Pair(events []store.StageEvent, i int) *store.StageEvent {
	start := &events[i]
	m := t.matcher(start.StageName)
	for j := range events {
		if j != i && m.matches(start, &events[j]) {
			return &events[j]
		}
	}
	return nil
}
