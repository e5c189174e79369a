package workflow

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"servicetrack/store"
)

func at(d time.Duration) *time.Time {
	t := base.Add(d)
	return &t
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0h 0m 0s"},
		{999 * time.Millisecond, "0h 0m 0s"},
		{61 * time.Second, "0h 1m 1s"},
		{3*time.Hour + 2*time.Minute + 5*time.Second + 999*time.Millisecond, "3h 2m 5s"},
		{26 * time.Hour, "26h 0m 0s"},
		{-time.Second, "0h 0m 0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildTimelineJobCardPairsWithBayAllocation(t *testing.T) {
	v := openVisit(
		ev(StageJobCard, "Service Advisor", "Start", 0),
		ev(StageBayAllocation, "Job Controller", "Start", 100*time.Millisecond),
	)

	got := BuildTimeline(v, MustPairing(ProfileBayWork))

	elapsed := 100 * time.Millisecond
	want := Timeline{
		CurrentStage: ptr(StageBayAllocation),
		Entries: []TimelineEntry{
			{StageName: StageJobCard, StartTime: at(0), EndTime: at(elapsed), Duration: ptr("0h 0m 0s"), Elapsed: &elapsed},
			{StageName: StageBayAllocation, StartTime: at(elapsed), Duration: ptr(StillInProgress)},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("timeline mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTimelineProfiles(t *testing.T) {
	v := openVisit(
		ev(StageBayAllocation, "Job Controller", "Start", 0),
		ev(StageMaintenance, "Job Controller", "Start", 10*time.Minute),
		ev("Bay Work: PM", RoleBayTechnician, "Start", 25*time.Minute),
	)

	bayWork := BuildTimeline(v, MustPairing(ProfileBayWork))
	if got := *bayWork.Entries[0].Duration; got != "0h 25m 0s" {
		t.Errorf("bay_work allocation duration = %q, want 0h 25m 0s", got)
	}

	maint := BuildTimeline(v, MustPairing(ProfileMaintenance))
	if got := *maint.Entries[0].Duration; got != "0h 10m 0s" {
		t.Errorf("maintenance allocation duration = %q, want 0h 10m 0s", got)
	}

	if _, err := Pairing("fastest"); err == nil {
		t.Error("unknown profile should fail")
	}
}

func TestBuildTimelineSameStageEnd(t *testing.T) {
	v := openVisit(
		ev("Washing", "Washing", "Start", 0),
		ev("Final Inspection", "Final Inspection Technician", "Start", time.Minute),
		ev("Washing", "Washing", "End", 90*time.Minute+30*time.Second),
	)
	tl := BuildTimeline(v, MustPairing(ProfileBayWork))

	if len(tl.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(tl.Entries))
	}
	if got := *tl.Entries[0].Duration; got != "1h 30m 30s" {
		t.Errorf("washing = %q, want 1h 30m 30s", got)
	}
	if tl.CurrentStage == nil || *tl.CurrentStage != "Final Inspection" {
		t.Errorf("current = %v, want Final Inspection", tl.CurrentStage)
	}
}

func TestBuildTimelineRepeatedStagePairsFirstMatch(t *testing.T) {
	v := openVisit(
		ev("Bay Work: PM", RoleBayTechnician, "Start", 0),
		ev("Bay Work: PM", RoleBayTechnician, "End", 100*time.Second),
		ev("Bay Work: PM", RoleBayTechnician, "Start", 200*time.Second),
	)
	tl := BuildTimeline(v, MustPairing(ProfileBayWork))

	if len(tl.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(tl.Entries))
	}
	second := tl.Entries[1]
	if second.EndTime == nil || !second.EndTime.Equal(*at(100 * time.Second)) {
		t.Errorf("second start end = %v, want the first End", second.EndTime)
	}
	if got := *second.Duration; got != "0h 0m 0s" {
		t.Errorf("second duration = %q, want 0h 0m 0s", got)
	}
	if tl.CurrentStage != nil {
		t.Errorf("current = %q, want none", *tl.CurrentStage)
	}
}

func TestBuildTimelineDeterministic(t *testing.T) {
	v := openVisit(
		ev(StageSecurityGate, RoleSecurityGuard, "Start", 0),
		ev(StageJobCard, "Service Advisor", "Start", time.Minute),
		ev(StageJobCard, "Service Advisor", "End", 20*time.Minute),
		ev(StageBayAllocation, "Job Controller", "Start", 30*time.Minute),
	)
	p := MustPairing(ProfileBayWork)
	first := BuildTimeline(v, p)
	second := BuildTimeline(v, p)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("replay differs:\n%s", diff)
	}
}

func TestBuildVisitTimelineBookends(t *testing.T) {
	exit := base.Add(4 * time.Hour)
	v := openVisit(
		ev(StageSecurityGate, RoleSecurityGuard, "Start", 0),
		ev("Washing", "Washing", "Start", time.Hour),
		ev("Washing", "Washing", "End", 2*time.Hour),
		ev(StageSecurityGate, RoleSecurityGuard, "End", 4*time.Hour),
	)
	v.ExitTime = &exit

	got := BuildVisitTimeline(v, MustPairing(ProfileBayWork), StageSecurityGate)

	wash := time.Hour
	want := Timeline{
		Entries: []TimelineEntry{
			{StageName: LabelSecurityIn, StartTime: &v.EntryTime},
			{StageName: "Washing", StartTime: at(time.Hour), EndTime: at(2 * time.Hour), Duration: ptr("1h 0m 0s"), Elapsed: &wash},
			{StageName: LabelSecurityOut, EndTime: &exit},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("visit timeline mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildVisitTimelineOpenVisit(t *testing.T) {
	v := openVisit(
		ev(StageSecurityGate, RoleSecurityGuard, "Start", 0),
		ev(StageJobCard, "Service Advisor", "Start", time.Minute),
	)
	got := BuildVisitTimeline(v, MustPairing(ProfileBayWork), StageSecurityGate)

	if n := len(got.Entries); n != 2 {
		t.Fatalf("entries = %d, want 2 (no Security Out while open)", n)
	}
	if got.Entries[0].StageName != LabelSecurityIn || got.Entries[1].StageName != StageJobCard {
		t.Errorf("entries = %s, %s", got.Entries[0].StageName, got.Entries[1].StageName)
	}
	if got.CurrentStage == nil || *got.CurrentStage != StageJobCard {
		t.Errorf("current = %v, want %s", got.CurrentStage, StageJobCard)
	}
}

func TestBuildTimelineEmptyVisit(t *testing.T) {
	tl := BuildTimeline(&store.Visit{}, MustPairing(ProfileBayWork))
	if tl.CurrentStage != nil || len(tl.Entries) != 0 {
		t.Errorf("empty visit timeline = %+v", tl)
	}
}
