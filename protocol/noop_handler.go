package protocol

// NoOpHandler implements MessageHandler with no-op methods.
type NoOpHandler struct{}

func (NoOpHandler) HandleStageSubmit(*Envelope, *StageSubmit) {}
func (NoOpHandler) HandleStageRecorded(*Envelope, *StageRecorded) {}
func (NoOpHandler) HandleStageRejected(*Envelope, *StageRejected) {}
func (NoOpHandler) HandleVisitOpened(*Envelope, *VisitOpened) {}
func (NoOpHandler) HandleVisitClosed(*Envelope, *VisitClosed) {}
func (NoOpHandler) HandleVisitsReset(*Envelope, *VisitsReset) {}

var _ MessageHandler = NoOpHandler{}
