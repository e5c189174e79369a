package engine

import (
	"log"
	"sync"
	"time"

	"servicetrack/config"
	"servicetrack/floorstate"
	"servicetrack/messaging"
	"servicetrack/store"
	"servicetrack/tracking"
	"servicetrack/workflow"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig *config.Config
	DB        *store.DB
	Redis     *floorstate.RedisStore // optional
	MsgClient *messaging.Client      // optional
	LogFunc   LogFunc
}

type Engine struct {
	cfg          *config.Config
	db           *store.DB
	tracker      *tracking.Tracker
	floor        *floorstate.Manager
	msgClient    *messaging.Client
	drainer      *messaging.OutboxDrainer
	subscriber   *messaging.Subscriber
	Events       *EventBus
	logFn        LogFunc
	stopOnce     sync.Once
	stopChan     chan struct{}
	msgConnected bool
}

func New(c Config) (*Engine, error) {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	e := &Engine{
		cfg:       c.AppConfig,
		db:        c.DB,
		msgClient: c.MsgClient,
		Events:    NewEventBus(),
		logFn:     logFn,
		stopChan:  make(chan struct{}),
	}

	rules := workflow.NewRules(e.cfg.Workshop)
	tracker, err := tracking.New(e.db, rules, &trackingEmitter{bus: e.Events}, workflow.Profile(e.cfg.Workshop.DetailPairing))
	if err != nil {
		return nil, err
	}
	e.tracker = tracker
	e.floor = floorstate.NewManager(tracker, c.Redis)
	return e, nil
}

func (e *Engine) Start() {
	e.wireEventHandlers()

	if err := e.floor.SyncRedisFromSQL(); err != nil {
		e.logFn("engine: floor sync: %v", err)
	}

	if e.msgClient != nil {
		mc := &e.cfg.Messaging
		e.drainer = messaging.NewOutboxDrainer(e.db, e.msgClient, mc.OutboxDrainInterval)
		e.drainer.Start()

		h := messaging.NewSubmitHandler(e.tracker, e.db, mc.StationID, mc.EventsTopic)
		e.subscriber = messaging.NewSubscriber(e.msgClient, mc.SubmissionsTopic, h)
		if err := e.subscriber.Start(); err != nil {
			e.logFn("engine: subscribe %s: %v", mc.SubmissionsTopic, err)
		}
	}

	e.checkConnectionStatus()
	go e.connectionHealthLoop()

	e.logFn("engine: started (%s store)", e.db.Driver())
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	if e.drainer != nil {
		e.drainer.Stop()
	}
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) DB() *store.DB              { return e.db }
func (e *Engine) AppConfig() *config.Config  { return e.cfg }
func (e *Engine) Tracker() *tracking.Tracker { return e.tracker }
func (e *Engine) Floor() *floorstate.Manager { return e.floor }

// MessagingConnected reports the bus connection state.
func (e *Engine) MessagingConnected() bool {
	return e.msgClient != nil && e.msgClient.IsConnected()
}

func (e *Engine) checkConnectionStatus() {
	if e.MessagingConnected() {
		if !e.msgConnected {
			e.msgConnected = true
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
		}
	} else {
		if e.msgConnected {
			e.msgConnected = false
			e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
		}
	}
}

func (e *Engine) connectionHealthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}
