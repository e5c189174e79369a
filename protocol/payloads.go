package protocol

import "time"

// StageSubmit asks the center to record a Start or End.
type StageSubmit struct {
	VehicleNumber string   `json:"vehicleNumber"`
	Role          string   `json:"role"`
	StageName     string   `json:"stageName"`
	EventType     string   `json:"eventType"`
	InKM          *float64 `json:"inKM,omitempty"`
	OutKM         *float64 `json:"outKM,omitempty"`
	InDriver      *string  `json:"inDriver,omitempty"`
	OutDriver     *string  `json:"outDriver,omitempty"`
	WorkType      *string  `json:"workType,omitempty"`
	BayNumber     *int     `json:"bayNumber,omitempty"`
}

// StageRecorded announces an appended event.
type StageRecorded struct {
	VisitID       int64     `json:"visitId"`
	VehicleNumber string    `json:"vehicleNumber"`
	Seq           int       `json:"seq"`
	StageName     string    `json:"stageName"`
	Role          string    `json:"role"`
	EventType     string    `json:"eventType"`
	Timestamp     time.Time `json:"timestamp"`
	Message       string    `json:"message"`
}

// StageRejected answers a StageSubmit that was refused.
type StageRejected struct {
	VehicleNumber string `json:"vehicleNumber"`
	StageName     string `json:"stageName"`
	EventType     string `json:"eventType"`
	Kind          string `json:"kind"`
	Message       string `json:"message"`
}

type VisitOpened struct {
	VisitID       int64     `json:"visitId"`
	VehicleNumber string    `json:"vehicleNumber"`
	EntryTime     time.Time `json:"entryTime"`
}

type VisitClosed struct {
	VisitID       int64     `json:"visitId"`
	VehicleNumber string    `json:"vehicleNumber"`
	EntryTime     time.Time `json:"entryTime"`
	ExitTime      time.Time `json:"exitTime"`
}

type VisitsReset struct {
	Count int64 `json:"count"`
}
