package engine

import (
	"servicetrack/store"
	"servicetrack/workflow"
)

const (
	EventVisitOpened EventType = iota + 1
	EventStageRecorded
	EventStageRejected
	EventVisitClosed
	EventVisitsReset
	EventMessagingConnected
	EventMessagingDisconnected
)

// --- Event payloads ---

type VisitOpenedEvent struct {
	Visit *store.Visit
}

type StageRecordedEvent struct {
	Visit   *store.Visit
	Event   store.StageEvent
	Message string
}

type StageRejectedEvent struct {
	VehicleNumber string
	Submission    workflow.Submission
	Rejection     *workflow.Rejection
}

type VisitClosedEvent struct {
	Visit *store.Visit
}

type VisitsResetEvent struct {
	Count int64
}

type ConnectionEvent struct {
	Detail string
}
