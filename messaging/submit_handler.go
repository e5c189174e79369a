package messaging

import (
	"errors"
	"log"
	"time"

	"servicetrack/protocol"
	"servicetrack/tracking"
	"servicetrack/workflow"
)

// submitAttempts bounds retries after a concurrency conflict. The wait
// before each retry starts at conflictBackoff and doubles.
const (
	submitAttempts  = 3
	conflictBackoff = 50 * time.Millisecond
)

// Submitter records a stage submission. *tracking.Tracker satisfies it.
type Submitter interface {
	Submit(s workflow.Submission) (*tracking.Result, error)
}

// Enqueuer queues an outbound bus message. *store.DB satisfies it.
type Enqueuer interface {
	EnqueueOutbox(topic, key string, payload []byte, msgType string) error
}

// SubmitHandler consumes stage.submit messages from kiosks. Accepted
// submissions are announced by the engine's event wiring; rejections are
// answered here, correlated to the request.
type SubmitHandler struct {
	protocol.NoOpHandler

	tracker     Submitter
	outbox      Enqueuer
	stationID   string
	eventsTopic string
	sleep       func(time.Duration)
}

func NewSubmitHandler(tracker Submitter, outbox Enqueuer, stationID, eventsTopic string) *SubmitHandler {
	return &SubmitHandler{
		tracker:     tracker,
		outbox:      outbox,
		stationID:   stationID,
		eventsTopic: eventsTopic,
		sleep:       time.Sleep,
	}
}

// Filter accepts messages addressed to the center, or to nobody in particular.
func (h *SubmitHandler) Filter(hdr *protocol.RawHeader) bool {
	if hdr.Dst.Role != "" && hdr.Dst.Role != protocol.RoleCenter {
		return false
	}
	return hdr.Dst.Station == "" || hdr.Dst.Station == h.stationID
}

func (h *SubmitHandler) HandleStageSubmit(env *protocol.Envelope, p *protocol.StageSubmit) {
	s := workflow.Submission{
		VehicleNumber: p.VehicleNumber,
		Role:          p.Role,
		StageName:     p.StageName,
		EventType:     p.EventType,
		InKM:          p.InKM,
		OutKM:         p.OutKM,
		InDriver:      p.InDriver,
		OutDriver:     p.OutDriver,
		WorkType:      p.WorkType,
		BayNumber:     p.BayNumber,
	}

	var err error
	wait := conflictBackoff
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		_, err = h.tracker.Submit(s)
		if !errors.Is(err, tracking.ErrConcurrencyConflict) {
			break
		}
		log.Printf("submit_handler: %s conflict on attempt %d", p.VehicleNumber, attempt)
		if attempt < submitAttempts {
			h.sleep(wait)
			wait *= 2
		}
	}
	if err == nil {
		return
	}

	var rej *workflow.Rejection
	if !errors.As(err, &rej) {
		log.Printf("submit_handler: %s from %s: %v", p.VehicleNumber, env.Src.Station, err)
		return
	}
	h.reply(env, &protocol.StageRejected{
		VehicleNumber: workflow.NormalizeVehicle(p.VehicleNumber),
		StageName:     p.StageName,
		EventType:     p.EventType,
		Kind:          string(rej.Kind),
		Message:       rej.Message,
	})
}

func (h *SubmitHandler) reply(req *protocol.Envelope, p *protocol.StageRejected) {
	src := protocol.Address{Role: protocol.RoleCenter, Station: h.stationID}
	reply, err := protocol.NewReply(protocol.TypeStageRejected, src, req.Src, req.ID, p)
	if err != nil {
		log.Printf("submit_handler: build reply: %v", err)
		return
	}
	data, err := reply.Encode()
	if err != nil {
		log.Printf("submit_handler: encode reply: %v", err)
		return
	}
	if err := h.outbox.EnqueueOutbox(h.eventsTopic, p.VehicleNumber, data, protocol.TypeStageRejected); err != nil {
		log.Printf("submit_handler: enqueue reply: %v", err)
	}
}

// Subscriber wires the submissions topic to a handler through the ingestor.
type Subscriber struct {
	client *Client
	topic  string
	ing    *protocol.Ingestor
}

func NewSubscriber(client *Client, topic string, h *SubmitHandler) *Subscriber {
	return &Subscriber{
		client: client,
		topic:  topic,
		ing:    protocol.NewIngestor(h, h.Filter),
	}
}

func (s *Subscriber) Start() error {
	return s.client.Subscribe(s.topic, s.ing.HandleRaw)
}
