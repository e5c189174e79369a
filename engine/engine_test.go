package engine

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicetrack/config"
	"servicetrack/messaging"
	"servicetrack/protocol"
	"servicetrack/store"
	"servicetrack/workflow"
)

func testEngine(t *testing.T, withBus bool) *Engine {
	t.Helper()
	cfg := config.Defaults()
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(&cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := Config{AppConfig: cfg, DB: db, LogFunc: t.Logf}
	if withBus {
		// Never connected: announcements stay in the outbox.
		c.MsgClient = messaging.NewClient(&cfg.Messaging)
	}
	eng, err := New(c)
	require.NoError(t, err)
	eng.Start()
	t.Cleanup(eng.Stop)
	return eng
}

func gate(eventType string) workflow.Submission {
	return workflow.Submission{
		VehicleNumber: "ka01ab1234",
		Role:          workflow.RoleSecurityGuard,
		StageName:     workflow.StageSecurityGate,
		EventType:     eventType,
	}
}

func TestEventBusFilters(t *testing.T) {
	bus := NewEventBus()
	var all, opened int
	allID := bus.SubscribeTypes(func(Event) { all++ }, EventVisitOpened, EventVisitClosed)
	id := bus.OnVisitOpened(func(VisitOpenedEvent) { opened++ })

	bus.Emit(Event{Type: EventVisitOpened, Payload: VisitOpenedEvent{}})
	bus.Emit(Event{Type: EventVisitClosed, Payload: VisitClosedEvent{}})
	bus.Emit(Event{Type: EventVisitsReset, Payload: VisitsResetEvent{}})
	assert.Equal(t, 2, all)
	assert.Equal(t, 1, opened)

	bus.Unsubscribe(id)
	bus.Emit(Event{Type: EventVisitOpened, Payload: VisitOpenedEvent{}})
	assert.Equal(t, 3, all)
	assert.Equal(t, 1, opened)

	bus.Unsubscribe(allID, 999)
	assert.Equal(t, 0, bus.Len())
}

func TestEventBusTypedPayloads(t *testing.T) {
	bus := NewEventBus()
	var count int64
	var states []bool
	bus.OnVisitsReset(func(ev VisitsResetEvent) { count = ev.Count })
	bus.OnConnection(func(connected bool, _ ConnectionEvent) { states = append(states, connected) })

	bus.Emit(Event{Type: EventVisitsReset, Payload: VisitsResetEvent{Count: 4}})
	bus.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "up"}})
	bus.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "down"}})

	assert.Equal(t, int64(4), count)
	assert.Equal(t, []bool{true, false}, states)
}

func TestEventBusStampsTimestamp(t *testing.T) {
	bus := NewEventBus()
	var got Event
	bus.SubscribeTypes(func(e Event) { got = e }, EventVisitsReset)
	bus.Emit(Event{Type: EventVisitsReset})
	assert.False(t, got.Timestamp.IsZero())
}

func TestSubmitQueuesAnnouncementsAndAudit(t *testing.T) {
	eng := testEngine(t, true)

	var recorded []StageRecordedEvent
	eng.Events.OnStageRecorded(func(ev StageRecordedEvent) {
		recorded = append(recorded, ev)
	})

	res, err := eng.Tracker().Submit(gate(store.EventStart))
	require.NoError(t, err)
	require.True(t, res.NewVisit)
	require.Len(t, recorded, 1)
	assert.Equal(t, "KA01AB1234", recorded[0].Visit.VehicleNumber)

	msgs, err := eng.DB().ListPendingOutbox(10, 10)
	require.NoError(t, err)
	var types []string
	for _, m := range msgs {
		types = append(types, m.MsgType)
		assert.Equal(t, eng.AppConfig().Messaging.EventsTopic, m.Topic)
		assert.Equal(t, "KA01AB1234", m.Key)
	}
	assert.Equal(t, []string{protocol.TypeVisitOpened, protocol.TypeStageRecorded}, types)

	trail, err := eng.AuditTrail(res.Visit.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "stage.Start", trail[0].Action)
	assert.Equal(t, "opened", trail[1].Action)
}

func TestGateEndAnnouncesClose(t *testing.T) {
	eng := testEngine(t, true)
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	tr := eng.Tracker()
	tr.SetClock(func() time.Time { return now })

	_, err := tr.Submit(gate(store.EventStart))
	require.NoError(t, err)
	now = now.Add(2 * time.Hour)
	res, err := tr.Submit(gate(store.EventEnd))
	require.NoError(t, err)
	require.NotNil(t, res.Visit.ExitTime)

	msgs, err := eng.DB().ListPendingOutbox(10, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, protocol.TypeVisitClosed, msgs[3].MsgType)

	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(msgs[3].Payload, &env))
	var p protocol.VisitClosed
	require.NoError(t, env.DecodePayload(&p))
	assert.Equal(t, res.Visit.ID, p.VisitID)
	assert.False(t, p.ExitTime.IsZero())
}

func TestWithoutBusNothingQueued(t *testing.T) {
	eng := testEngine(t, false)
	_, err := eng.Tracker().Submit(gate(store.EventStart))
	require.NoError(t, err)

	msgs, err := eng.DB().ListPendingOutbox(10, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.False(t, eng.MessagingConnected())
}

func TestResetAudits(t *testing.T) {
	eng := testEngine(t, false)
	_, err := eng.Tracker().Submit(gate(store.EventStart))
	require.NoError(t, err)

	var resets []int64
	eng.Events.OnVisitsReset(func(ev VisitsResetEvent) {
		resets = append(resets, ev.Count)
	})

	n, err := eng.Tracker().Reset()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []int64{1}, resets)

	trail, err := eng.AuditTrail(0)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "reset", trail[0].Action)

	floor, err := eng.Floor().Floor()
	require.NoError(t, err)
	assert.Empty(t, floor)
}

func TestUnknownDetailPairing(t *testing.T) {
	cfg := config.Defaults()
	cfg.Workshop.DetailPairing = "nonsense"
	_, err := New(Config{AppConfig: cfg})
	assert.Error(t, err)
}

func TestAuditFailureIsLogged(t *testing.T) {
	cfg := config.Defaults()
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(&cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var mu sync.Mutex
	var lines []string
	logf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, args...))
	}
	eng, err := New(Config{AppConfig: cfg, DB: db, LogFunc: logf})
	require.NoError(t, err)
	eng.Start()
	t.Cleanup(eng.Stop)

	_, err = db.Exec(`DROP TABLE audit_log`)
	require.NoError(t, err)

	res, err := eng.Tracker().Submit(gate(store.EventStart))
	require.NoError(t, err, "a failed audit write must not fail the submission")
	require.True(t, res.NewVisit)

	mu.Lock()
	defer mu.Unlock()
	var audits []string
	for _, l := range lines {
		if strings.HasPrefix(l, "engine: audit ") {
			audits = append(audits, l)
		}
	}
	require.Len(t, audits, 2, "%v", lines)
	assert.Contains(t, audits[0], "opened")
	assert.Contains(t, audits[1], "stage.Start")
}
