package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event types.
const (
	EventStart = "Start"
	EventEnd   = "End"
)

// StageEvent is one immutable Start/End fact in a visit's history.
// JSON keys follow the kiosk client's field names.
type StageEvent struct {
	ID        int64     `json:"id"`
	VisitID   int64     `json:"visitId"`
	Seq       int       `json:"seq"`
	StageName string    `json:"stageName"`
	Role      string    `json:"role"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
	InKM      *float64  `json:"inKM"`
	OutKM     *float64  `json:"outKM"`
	InDriver  *string   `json:"inDriver"`
	OutDriver *string   `json:"outDriver"`
	WorkType  *string   `json:"workType"`
	BayNumber *int      `json:"bayNumber"`
}

// Visit is one vehicle's trip through the service center.
type Visit struct {
	ID            int64        `json:"id"`
	VehicleNumber string       `json:"vehicleNumber"`
	EntryTime     time.Time    `json:"entryTime"`
	ExitTime      *time.Time   `json:"exitTime"`
	Version       int          `json:"version"`
	Events        []StageEvent `json:"stages"`
}

// IsOpen reports whether the visit has not yet exited as of now.
func (v *Visit) IsOpen(now time.Time) bool {
	return v.ExitTime == nil || v.ExitTime.After(now)
}

// StageMatch selects events by stage name (exact, or prefix when Prefix is
// set) and optionally by event type.
type StageMatch struct {
	Name      string
	Prefix    bool
	EventType string
}

// VisitFilter narrows ListVisits. Zero value lists everything.
type VisitFilter struct {
	VehicleNumber string
	EnteredSince  *time.Time
	// AnyStage keeps visits having at least one event matching any entry.
	AnyStage []StageMatch
	OpenOnly bool
	Limit    int
}

const visitSelectCols = `id, vehicle_number, entry_time, exit_time, version`

const eventSelectCols = `id, visit_id, seq, stage_name, role, event_type, ts, in_km, out_km, in_driver, out_driver, work_type, bay_number`

func scanVisit(row interface{ Scan(...any) error }) (*Visit, error) {
	var v Visit
	var entryTime, exitTime any
	if err := row.Scan(&v.ID, &v.VehicleNumber, &entryTime, &exitTime, &v.Version); err != nil {
		return nil, err
	}
	v.EntryTime = parseTime(entryTime)
	v.ExitTime = parseTimePtr(exitTime)
	return &v, nil
}

func scanVisits(rows *sql.Rows) ([]*Visit, error) {
	var visits []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func scanEvent(row interface{ Scan(...any) error }) (*StageEvent, error) {
	var e StageEvent
	var ts any
	var inKM, outKM sql.NullFloat64
	var inDriver, outDriver, workType sql.NullString
	var bayNumber sql.NullInt64
	err := row.Scan(&e.ID, &e.VisitID, &e.Seq, &e.StageName, &e.Role, &e.EventType, &ts,
		&inKM, &outKM, &inDriver, &outDriver, &workType, &bayNumber)
	if err != nil {
		return nil, err
	}
	e.Timestamp = parseTime(ts)
	if inKM.Valid {
		e.InKM = &inKM.Float64
	}
	if outKM.Valid {
		e.OutKM = &outKM.Float64
	}
	if inDriver.Valid {
		e.InDriver = &inDriver.String
	}
	if outDriver.Valid {
		e.OutDriver = &outDriver.String
	}
	if workType.Valid {
		e.WorkType = &workType.String
	}
	if bayNumber.Valid {
		n := int(bayNumber.Int64)
		e.BayNumber = &n
	}
	return &e, nil
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// CreateVisit inserts v together with its first event. On success v.ID,
// v.Version and v.Events are set. A second open visit for the same vehicle
// loses to the first and returns ErrConflict.
func (db *DB) CreateVisit(v *Visit, first *StageEvent) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("create visit: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow(db.Q(`INSERT INTO visits (vehicle_number, entry_time, exit_time, version) VALUES (?, ?, ?, 1) RETURNING id`),
		v.VehicleNumber, db.ts(v.EntryTime), db.tsPtr(v.ExitTime)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create visit: %w", err)
	}
	if err := db.insertEvent(tx, id, 1, first); err != nil {
		return fmt.Errorf("create visit first event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create visit commit: %w", err)
	}
	v.ID = id
	v.Version = 1
	v.Events = []StageEvent{*first}
	return nil
}

// AppendEvent adds ev to the visit if the stored version still equals
// expectedVersion. closeAt, when non-nil, sets the visit's exit time in the
// same transaction. Returns ErrConflict if another writer got there first.
func (db *DB) AppendEvent(visitID int64, expectedVersion int, ev *StageEvent, closeAt *time.Time) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	defer tx.Rollback()

	var res sql.Result
	if closeAt != nil {
		res, err = tx.Exec(db.Q(`UPDATE visits SET version=version+1, exit_time=? WHERE id=? AND version=?`),
			db.ts(*closeAt), visitID, expectedVersion)
	} else {
		res, err = tx.Exec(db.Q(`UPDATE visits SET version=version+1 WHERE id=? AND version=?`),
			visitID, expectedVersion)
	}
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRow(db.Q(`SELECT COUNT(*) FROM visits WHERE id=?`), visitID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	if err := db.insertEvent(tx, visitID, expectedVersion+1, ev); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("append event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append event commit: %w", err)
	}
	return nil
}

func (db *DB) insertEvent(tx *sql.Tx, visitID int64, seq int, ev *StageEvent) error {
	var id int64
	err := tx.QueryRow(db.Q(`INSERT INTO stage_events (visit_id, seq, stage_name, role, event_type, ts, in_km, out_km, in_driver, out_driver, work_type, bay_number) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		visitID, seq, ev.StageName, ev.Role, ev.EventType, db.ts(ev.Timestamp),
		nullable(ev.InKM), nullable(ev.OutKM), nullable(ev.InDriver), nullable(ev.OutDriver),
		nullable(ev.WorkType), nullable(ev.BayNumber)).Scan(&id)
	if err != nil {
		return err
	}
	ev.ID = id
	ev.VisitID = visitID
	ev.Seq = seq
	return nil
}

// GetVisit returns a visit with its events.
func (db *DB) GetVisit(id int64) (*Visit, error) {
	v, err := scanVisit(db.QueryRow(db.Q(`SELECT `+visitSelectCols+` FROM visits WHERE id=?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get visit: %w", err)
	}
	if err := db.loadEvents([]*Visit{v}); err != nil {
		return nil, err
	}
	return v, nil
}

// GetLatestVisit returns the most recently entered visit for a vehicle.
func (db *DB) GetLatestVisit(vehicleNumber string) (*Visit, error) {
	v, err := scanVisit(db.QueryRow(db.Q(`SELECT `+visitSelectCols+` FROM visits WHERE vehicle_number=? ORDER BY entry_time DESC, id DESC LIMIT 1`), vehicleNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest visit: %w", err)
	}
	if err := db.loadEvents([]*Visit{v}); err != nil {
		return nil, err
	}
	return v, nil
}

// ListVisits returns visits newest first, each with its full event log.
func (db *DB) ListVisits(f VisitFilter) ([]*Visit, error) {
	var where []string
	var args []any
	if f.VehicleNumber != "" {
		where = append(where, "vehicle_number=?")
		args = append(args, f.VehicleNumber)
	}
	if f.EnteredSince != nil {
		where = append(where, "entry_time >= ?")
		args = append(args, db.ts(*f.EnteredSince))
	}
	if f.OpenOnly {
		where = append(where, "exit_time IS NULL")
	}
	if len(f.AnyStage) > 0 {
		var ors []string
		for _, m := range f.AnyStage {
			var cond string
			if m.Prefix {
				cond = "substr(e.stage_name, 1, ?) = ?"
				args = append(args, len([]rune(m.Name)), m.Name)
			} else {
				cond = "e.stage_name = ?"
				args = append(args, m.Name)
			}
			if m.EventType != "" {
				cond += " AND e.event_type = ?"
				args = append(args, m.EventType)
			}
			ors = append(ors, "("+cond+")")
		}
		where = append(where, "EXISTS (SELECT 1 FROM stage_events e WHERE e.visit_id = visits.id AND ("+strings.Join(ors, " OR ")+"))")
	}

	query := `SELECT ` + visitSelectCols + ` FROM visits`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY entry_time DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.Query(db.Q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()
	visits, err := scanVisits(rows)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	if err := db.loadEvents(visits); err != nil {
		return nil, err
	}
	return visits, nil
}

const eventLoadBatch = 500

// loadEvents fills Events for each visit, in append order.
func (db *DB) loadEvents(visits []*Visit) error {
	byID := make(map[int64]*Visit, len(visits))
	for _, v := range visits {
		v.Events = nil
		byID[v.ID] = v
	}
	for start := 0; start < len(visits); start += eventLoadBatch {
		end := min(start+eventLoadBatch, len(visits))
		batch := visits[start:end]
		placeholders := make([]string, len(batch))
		args := make([]any, len(batch))
		for i, v := range batch {
			placeholders[i] = "?"
			args[i] = v.ID
		}
		rows, err := db.Query(db.Q(`SELECT `+eventSelectCols+` FROM stage_events WHERE visit_id IN (`+strings.Join(placeholders, ",")+`) ORDER BY visit_id, seq`), args...)
		if err != nil {
			return fmt.Errorf("load events: %w", err)
		}
		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("load events: %w", err)
			}
			if v := byID[e.VisitID]; v != nil {
				v.Events = append(v.Events, *e)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("load events: %w", err)
		}
	}
	return nil
}

// CountVisitsSince counts visits entered at or after t.
func (db *DB) CountVisitsSince(t time.Time) (int, error) {
	var n int
	err := db.QueryRow(db.Q(`SELECT COUNT(*) FROM visits WHERE entry_time >= ?`), db.ts(t)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count visits: %w", err)
	}
	return n, nil
}

// DeleteAllVisits removes every visit and event. Returns the number of
// visits removed.
func (db *DB) DeleteAllVisits() (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("delete visits: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM stage_events`); err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM visits`)
	if err != nil {
		return 0, fmt.Errorf("delete visits: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}
