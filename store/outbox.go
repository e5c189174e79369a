package store

import (
	"fmt"
	"time"
)

// OutboxMessage is a bus message waiting to be published.
type OutboxMessage struct {
	ID        int64
	Topic     string
	Key       string
	Payload   []byte
	MsgType   string
	Retries   int
	CreatedAt time.Time
	SentAt    *time.Time
}

func (db *DB) EnqueueOutbox(topic, key string, payload []byte, msgType string) error {
	_, err := db.Exec(db.Q(`INSERT INTO outbox (topic, msg_key, payload, msg_type) VALUES (?, ?, ?, ?)`),
		topic, key, payload, msgType)
	if err != nil {
		return fmt.Errorf("enqueue outbox: %w", err)
	}
	return nil
}

// ListPendingOutbox returns unsent messages below maxRetries, oldest first.
func (db *DB) ListPendingOutbox(limit, maxRetries int) ([]*OutboxMessage, error) {
	rows, err := db.Query(db.Q(`SELECT id, topic, msg_key, payload, msg_type, retries, created_at FROM outbox WHERE sent_at IS NULL AND retries < ? ORDER BY id LIMIT ?`), maxRetries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []*OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		var createdAt any
		if err := rows.Scan(&m.ID, &m.Topic, &m.Key, &m.Payload, &m.MsgType, &m.Retries, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

func (db *DB) AckOutbox(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE outbox SET sent_at=? WHERE id=?`), db.localTS(time.Now()), id)
	return err
}

func (db *DB) IncrementOutboxRetries(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE outbox SET retries=retries+1 WHERE id=?`), id)
	return err
}

// PurgeSentOutbox deletes messages sent before the cutoff.
func (db *DB) PurgeSentOutbox(before time.Time) (int64, error) {
	res, err := db.Exec(db.Q(`DELETE FROM outbox WHERE sent_at IS NOT NULL AND sent_at < ?`), db.localTS(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
