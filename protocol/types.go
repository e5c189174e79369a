package protocol

// Message type constants.
const (
	// Kiosk -> Center (published on the submissions topic)
	TypeStageSubmit = "stage.submit"

	// Center -> Kiosk (published on the events topic)
	TypeStageRecorded = "stage.recorded"
	TypeStageRejected = "stage.rejected"
	TypeVisitOpened   = "visit.opened"
	TypeVisitClosed   = "visit.closed"
	TypeVisitsReset   = "visits.reset"
)

// Roles for Address.Role.
const (
	RoleKiosk  = "kiosk"
	RoleCenter = "center"
)

// Protocol version.
const Version = 1
