package engine

import (
	"fmt"

	"servicetrack/protocol"
	"servicetrack/store"
)

func (e *Engine) wireEventHandlers() {
	// Recorded events: audit, refresh the floor projection, announce
	e.Events.OnStageRecorded(func(ev StageRecordedEvent) {
		e.audit(ev.Visit.ID, "stage."+ev.Event.EventType, ev.Event.StageName, ev.Event.Role)
		e.floor.Refresh(ev.Visit)
		e.announce(protocol.TypeStageRecorded, ev.Visit.VehicleNumber, &protocol.StageRecorded{
			VisitID:       ev.Visit.ID,
			VehicleNumber: ev.Visit.VehicleNumber,
			Seq:           ev.Event.Seq,
			StageName:     ev.Event.StageName,
			Role:          ev.Event.Role,
			EventType:     ev.Event.EventType,
			Timestamp:     ev.Event.Timestamp,
			Message:       ev.Message,
		})
	})

	e.Events.OnVisitOpened(func(ev VisitOpenedEvent) {
		e.audit(ev.Visit.ID, "opened", ev.Visit.VehicleNumber, "system")
		e.announce(protocol.TypeVisitOpened, ev.Visit.VehicleNumber, &protocol.VisitOpened{
			VisitID:       ev.Visit.ID,
			VehicleNumber: ev.Visit.VehicleNumber,
			EntryTime:     ev.Visit.EntryTime,
		})
	})

	e.Events.OnVisitClosed(func(ev VisitClosedEvent) {
		e.logFn("engine: %s left the center (visit %d)", ev.Visit.VehicleNumber, ev.Visit.ID)
		e.audit(ev.Visit.ID, "closed", ev.Visit.VehicleNumber, "system")
		p := &protocol.VisitClosed{
			VisitID:       ev.Visit.ID,
			VehicleNumber: ev.Visit.VehicleNumber,
			EntryTime:     ev.Visit.EntryTime,
		}
		if ev.Visit.ExitTime != nil {
			p.ExitTime = *ev.Visit.ExitTime
		}
		e.announce(protocol.TypeVisitClosed, ev.Visit.VehicleNumber, p)
	})

	// Rejections are only logged; bus submitters get a correlated reply from
	// the submit handler, HTTP callers get the error response.
	e.Events.OnStageRejected(func(ev StageRejectedEvent) {
		e.logFn("engine: rejected %s %s %s: %s", ev.VehicleNumber, ev.Submission.StageName, ev.Submission.EventType, ev.Rejection.Kind)
	})

	e.Events.OnVisitsReset(func(ev VisitsResetEvent) {
		e.audit(0, "reset", fmt.Sprintf("%d visits deleted", ev.Count), "admin")
		if err := e.floor.SyncRedisFromSQL(); err != nil {
			e.logFn("engine: floor sync after reset: %v", err)
		}
		e.announce(protocol.TypeVisitsReset, "", &protocol.VisitsReset{Count: ev.Count})
	})

	e.Events.OnConnection(func(connected bool, ev ConnectionEvent) {
		e.logFn("engine: %s", ev.Detail)
	})
}

// audit records a visit audit entry. A failed write is logged and does not
// undo the event it describes.
func (e *Engine) audit(visitID int64, action, value, actor string) {
	if err := e.db.AppendAudit("visit", visitID, action, "", value, actor); err != nil {
		e.logFn("engine: audit %s for visit %d: %v", action, visitID, err)
	}
}

// announce queues a broadcast to the events topic. Nothing is queued when
// the service runs without a bus.
func (e *Engine) announce(msgType, key string, payload any) {
	if e.msgClient == nil {
		return
	}
	src := protocol.Address{Role: protocol.RoleCenter, Station: e.cfg.Messaging.StationID}
	dst := protocol.Address{Role: protocol.RoleKiosk}
	env, err := protocol.NewEnvelope(msgType, src, dst, payload)
	if err != nil {
		e.logFn("engine: build %s: %v", msgType, err)
		return
	}
	data, err := env.Encode()
	if err != nil {
		e.logFn("engine: encode %s: %v", msgType, err)
		return
	}
	if err := e.db.EnqueueOutbox(e.cfg.Messaging.EventsTopic, key, data, msgType); err != nil {
		e.logFn("engine: enqueue %s: %v", msgType, err)
	}
}

// AuditTrail returns the audit entries for one visit, newest first.
func (e *Engine) AuditTrail(visitID int64) ([]*store.AuditEntry, error) {
	return e.db.ListEntityAudit("visit", visitID)
}
