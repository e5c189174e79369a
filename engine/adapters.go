package engine

import (
	"servicetrack/store"
	"servicetrack/workflow"
)

// trackingEmitter bridges the tracker's emitter interface to the EventBus.
type trackingEmitter struct {
	bus *EventBus
}

func (e *trackingEmitter) EmitVisitOpened(visit *store.Visit) {
	e.bus.Emit(Event{Type: EventVisitOpened, Payload: VisitOpenedEvent{Visit: visit}})
}

func (e *trackingEmitter) EmitStageRecorded(visit *store.Visit, event store.StageEvent, message string) {
	e.bus.Emit(Event{Type: EventStageRecorded, Payload: StageRecordedEvent{
		Visit:   visit,
		Event:   event,
		Message: message,
	}})
}

func (e *trackingEmitter) EmitStageRejected(vehicleNumber string, sub workflow.Submission, rej *workflow.Rejection) {
	e.bus.Emit(Event{Type: EventStageRejected, Payload: StageRejectedEvent{
		VehicleNumber: vehicleNumber,
		Submission:    sub,
		Rejection:     rej,
	}})
}

func (e *trackingEmitter) EmitVisitClosed(visit *store.Visit) {
	e.bus.Emit(Event{Type: EventVisitClosed, Payload: VisitClosedEvent{Visit: visit}})
}

func (e *trackingEmitter) EmitVisitsReset(count int64) {
	e.bus.Emit(Event{Type: EventVisitsReset, Payload: VisitsResetEvent{Count: count}})
}
