package protocol

import (
	"encoding/json"
	"log"
)

// FilterFunc returns true if the message should be processed.
type FilterFunc func(hdr *RawHeader) bool

// MessageHandler defines callbacks for all protocol message types.
// Embed NoOpHandler and override only the methods you need.
type MessageHandler interface {
	// Kiosk -> Center
	HandleStageSubmit(env *Envelope, p *StageSubmit)

	// Center -> Kiosk
	HandleStageRecorded(env *Envelope, p *StageRecorded)
	HandleStageRejected(env *Envelope, p *StageRejected)
	HandleVisitOpened(env *Envelope, p *VisitOpened)
	HandleVisitClosed(env *Envelope, p *VisitClosed)
	HandleVisitsReset(env *Envelope, p *VisitsReset)
}

// Ingestor performs two-phase decode and dispatches to a MessageHandler.
type Ingestor struct {
	handler MessageHandler
	filter  FilterFunc
}

func NewIngestor(handler MessageHandler, filter FilterFunc) *Ingestor {
	return &Ingestor{handler: handler, filter: filter}
}

// HandleRaw is the entry point for raw message bytes from the messaging layer.
func (ing *Ingestor) HandleRaw(data []byte) {
	// Phase 1: routing header only
	var hdr RawHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		log.Printf("protocol: header decode error: %v", err)
		return
	}
	if IsExpiredHeader(&hdr) {
		log.Printf("protocol: dropping expired message %s (type=%s)", hdr.ID, hdr.Type)
		return
	}
	if ing.filter != nil && !ing.filter(&hdr) {
		return
	}

	// Phase 2: full envelope
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("protocol: envelope decode error: %v", err)
		return
	}

	switch env.Type {
	case TypeStageSubmit:
		decodeAndCall(ing.handler.HandleStageSubmit, &env)
	case TypeStageRecorded:
		decodeAndCall(ing.handler.HandleStageRecorded, &env)
	case TypeStageRejected:
		decodeAndCall(ing.handler.HandleStageRejected, &env)
	case TypeVisitOpened:
		decodeAndCall(ing.handler.HandleVisitOpened, &env)
	case TypeVisitClosed:
		decodeAndCall(ing.handler.HandleVisitClosed, &env)
	case TypeVisitsReset:
		decodeAndCall(ing.handler.HandleVisitsReset, &env)
	default:
		log.Printf("protocol: unknown message type: %s", env.Type)
	}
}

func decodeAndCall[T any](fn func(*Envelope, *T), env *Envelope) {
	var p T
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		log.Printf("protocol: payload decode error for %s: %v", env.Type, err)
		return
	}
	fn(env, &p)
}
