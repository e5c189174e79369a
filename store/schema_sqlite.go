package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS visits (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    vehicle_number  TEXT NOT NULL,
    entry_time      TEXT NOT NULL,
    exit_time       TEXT,
    version         INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_visits_vehicle ON visits(vehicle_number, entry_time);
CREATE INDEX IF NOT EXISTS idx_visits_entry ON visits(entry_time);
CREATE UNIQUE INDEX IF NOT EXISTS idx_visits_open ON visits(vehicle_number) WHERE exit_time IS NULL;

CREATE TABLE IF NOT EXISTS stage_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    visit_id    INTEGER NOT NULL REFERENCES visits(id) ON DELETE CASCADE,
    seq         INTEGER NOT NULL,
    stage_name  TEXT NOT NULL,
    role        TEXT NOT NULL,
    event_type  TEXT NOT NULL,
    ts          TEXT NOT NULL,
    in_km       REAL,
    out_km      REAL,
    in_driver   TEXT,
    out_driver  TEXT,
    work_type   TEXT,
    bay_number  INTEGER
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_stage_events_seq ON stage_events(visit_id, seq);
CREATE INDEX IF NOT EXISTS idx_stage_events_stage ON stage_events(stage_name, event_type);

CREATE TABLE IF NOT EXISTS outbox (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    topic       TEXT NOT NULL,
    msg_key     TEXT NOT NULL DEFAULT '',
    payload     BLOB NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    sent_at     TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;

CREATE TABLE IF NOT EXISTS audit_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type TEXT NOT NULL,
    entity_id   INTEGER NOT NULL DEFAULT 0,
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS admin_users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
`
