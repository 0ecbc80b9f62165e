package messaging

import (
	"log"
	"sync"
	"time"

	"gridpatrol/store"
)

const (
	outboxBatch      = 50
	outboxMaxRetries = 10
)

// Publisher is the part of Client the drainer needs.
type Publisher interface {
	Publish(topic string, payload []byte) error
	IsConnected() bool
}

// OutboxDrainer periodically sends pending outbox messages.
type OutboxDrainer struct {
	db       *store.DB
	client   Publisher
	interval time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewOutboxDrainer creates a new outbox drainer.
func NewOutboxDrainer(db *store.DB, client Publisher, interval time.Duration) *OutboxDrainer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OutboxDrainer{
		db:       db,
		client:   client,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the outbox drain loop.
func (d *OutboxDrainer) Start() {
	d.wg.Add(1)
	go d.drainLoop()
}

// Stop stops the outbox drain loop.
func (d *OutboxDrainer) Stop() {
	select {
	case <-d.stopChan:
	default:
		close(d.stopChan)
	}
	d.wg.Wait()
}

func (d *OutboxDrainer) drainLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.Drain()
		}
	}
}

// Drain publishes one batch. It returns the number of messages sent.
func (d *OutboxDrainer) Drain() int {
	if !d.client.IsConnected() {
		return 0
	}

	msgs, err := d.db.ListPendingOutbox(outboxBatch, outboxMaxRetries)
	if err != nil {
		log.Printf("outbox: list pending: %v", err)
		return 0
	}

	sent := 0
	for _, msg := range msgs {
		if err := d.client.Publish(msg.Topic, msg.Payload); err != nil {
			log.Printf("outbox: publish msg %d (%s): %v", msg.ID, msg.MsgType, err)
			d.db.IncrementOutboxRetries(msg.ID)
			continue
		}
		if err := d.db.AckOutbox(msg.ID); err != nil {
			log.Printf("outbox: ack msg %d: %v", msg.ID, err)
			continue
		}
		sent++
	}
	return sent
}
