package messaging

import (
	"log"
	"sync"
	"time"

	"servicetrack/store"
)

const (
	outboxBatch      = 50
	outboxMaxRetries = 10
	outboxRetention  = 24 * time.Hour
)

// Publisher sends one message on the bus. *Client satisfies it.
type Publisher interface {
	Publish(topic, key string, payload []byte) error
}

// OutboxStore is the persistence the drainer needs. *store.DB satisfies it.
type OutboxStore interface {
	ListPendingOutbox(limit, maxRetries int) ([]*store.OutboxMessage, error)
	AckOutbox(id int64) error
	IncrementOutboxRetries(id int64) error
	PurgeSentOutbox(before time.Time) (int64, error)
}

// OutboxDrainer periodically sends pending outbox messages.
type OutboxDrainer struct {
	db       OutboxStore
	client   Publisher
	interval time.Duration
	started  bool
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

func NewOutboxDrainer(db OutboxStore, client Publisher, interval time.Duration) *OutboxDrainer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OutboxDrainer{
		db:       db,
		client:   client,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (d *OutboxDrainer) Start() {
	d.started = true
	go d.run()
}

// Stop halts the drainer and waits for an in-flight drain to finish.
func (d *OutboxDrainer) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopChan)
		if d.started {
			<-d.done
		}
	})
}

func (d *OutboxDrainer) run() {
	defer close(d.done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	lastPurge := time.Now()
	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.drain()
			if time.Since(lastPurge) > time.Hour {
				d.purge()
				lastPurge = time.Now()
			}
		}
	}
}

// drain publishes one batch and returns how many messages went out.
func (d *OutboxDrainer) drain() int {
	msgs, err := d.db.ListPendingOutbox(outboxBatch, outboxMaxRetries)
	if err != nil {
		log.Printf("outbox: list pending: %v", err)
		return 0
	}
	sent := 0
	for _, msg := range msgs {
		if err := d.client.Publish(msg.Topic, msg.Key, msg.Payload); err != nil {
			log.Printf("outbox: publish %s to %s failed (retry %d): %v", msg.MsgType, msg.Topic, msg.Retries+1, err)
			if err := d.db.IncrementOutboxRetries(msg.ID); err != nil {
				log.Printf("outbox: increment retries %d: %v", msg.ID, err)
			}
			continue
		}
		if err := d.db.AckOutbox(msg.ID); err != nil {
			log.Printf("outbox: ack %d: %v", msg.ID, err)
			continue
		}
		sent++
	}
	return sent
}

func (d *OutboxDrainer) purge() {
	n, err := d.db.PurgeSentOutbox(time.Now().Add(-outboxRetention))
	if err != nil {
		log.Printf("outbox: purge: %v", err)
		return
	}
	if n > 0 {
		log.Printf("outbox: purged %d sent messages", n)
	}
}
