package workflow

import "errors"

var (
	// ErrValidation matches rejections caused by malformed submissions.
	ErrValidation = errors.New("validation error")
	// ErrStateConflict matches rejections caused by the visit's history.
	ErrStateConflict = errors.New("state conflict")
)

// RejectionKind names why a submission was refused.
type RejectionKind string

const (
	MissingFields         RejectionKind = "MissingFields"
	InvalidEventType      RejectionKind = "InvalidEventType"
	UnknownRole           RejectionKind = "UnknownRole"
	InvalidWorkType       RejectionKind = "InvalidWorkType"
	InvalidBayNumber      RejectionKind = "InvalidBayNumber"
	StageAlreadyCompleted RejectionKind = "StageAlreadyCompleted"
	StageAlreadyStarted   RejectionKind = "StageAlreadyStarted"
	StageNotStarted       RejectionKind = "StageNotStarted"
	TooSoonToEnd          RejectionKind = "TooSoonToEnd"
)

// Rejection is a refused submission. Nothing was appended.
type Rejection struct {
	Kind    RejectionKind `json:"kind"`
	Stage   string        `json:"stage,omitempty"`
	Message string        `json:"message"`
}

func (r *Rejection) Error() string { return r.Message }

// Is lets callers match a rejection against ErrValidation or ErrStateConflict.
func (r *Rejection) Is(target error) bool {
	switch target {
	case ErrValidation:
		return r.Kind.validation()
	case ErrStateConflict:
		return !r.Kind.validation()
	}
	return false
}

func (k RejectionKind) validation() bool {
	switch k {
	case MissingFields, InvalidEventType, UnknownRole, InvalidWorkType, InvalidBayNumber:
		return true
	}
	return false
}

func reject(kind RejectionKind, stage, msg string) *Rejection {
	return &Rejection{Kind: kind, Stage: stage, Message: msg}
}
