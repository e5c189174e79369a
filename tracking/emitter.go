package tracking

import (
	"servicetrack/store"
	"servicetrack/workflow"
)

// Emitter is the interface adapters must satisfy to bridge tracker events to the engine.
type Emitter interface {
	EmitVisitOpened(visit *store.Visit)
	EmitStageRecorded(visit *store.Visit, event store.StageEvent, message string)
	EmitStageRejected(vehicleNumber string, sub workflow.Submission, rej *workflow.Rejection)
	EmitVisitClosed(visit *store.Visit)
	EmitVisitsReset(count int64)
}

type nopEmitter struct{}

func (nopEmitter) EmitVisitOpened(*store.Visit) {}
func (nopEmitter) EmitStageRecorded(*store.Visit, store.StageEvent, string) {}
func (nopEmitter) EmitStageRejected(string, workflow.Submission, *workflow.Rejection) {}
func (nopEmitter) EmitVisitClosed(*store.Visit) {}
func (nopEmitter) EmitVisitsReset(int64) {}
