package job

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"marketbill/internal/config"
	"marketbill/internal/infrastructure/mq"
	"marketbill/internal/model"
	"marketbill/internal/repository"
	"marketbill/internal/service"

	"gorm.io/gorm"
)

// SettlementWorker is the at-least-once consumer of durable InvoicePaid
// events. For each pending event it credits seller revenue shares, reduces
// stock, relays the event to Kafka and only then marks the row sent. A crash
// between the side effects and the mark replays the event; the handler's
// idempotency keys make the replay harmless. This replaces any
// delay-and-hope post-commit scheme: either the side effects eventually run,
// or the row lands in FAILED where reconciliation can see it.
type SettlementWorker struct {
	outbox    outboxStore
	revenue   invoicePaidApplier
	publish   func(topic, key, value string) error
	cfg       *config.Config
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

// outboxStore is the slice of the outbox repository the worker drives.
type outboxStore interface {
	GetPendingByTopic(ctx context.Context, topic string, limit int) ([]*model.OutboxMessage, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	IncrementRetryCount(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64) error
}

// invoicePaidApplier applies the local side effects of one paid invoice.
type invoicePaidApplier interface {
	HandleInvoicePaid(ctx context.Context, event *model.InvoicePaidEvent) error
}

func NewSettlementWorker(db *gorm.DB, cfg *config.Config, revenueService *service.RevenueService) *SettlementWorker {
	return &SettlementWorker{
		outbox:    repository.NewOutboxRepository(db),
		revenue:   revenueService,
		publish:   mq.SendMessage,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		interval:  200 * time.Millisecond,
		batchSize: 50,
	}
}

func (w *SettlementWorker) Start(ctx context.Context) {
	log.Println("[SettlementWorker] started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[SettlementWorker] context cancelled, exiting")
			return
		case <-w.stopCh:
			log.Println("[SettlementWorker] stopped")
			return
		case <-ticker.C:
			w.processPendingEvents(ctx)
		}
	}
}

func (w *SettlementWorker) Stop() {
	close(w.stopCh)
}

func (w *SettlementWorker) processPendingEvents(ctx context.Context) {
	messages, err := w.outbox.GetPendingByTopic(ctx, model.TopicInvoicePaid, w.batchSize)
	if err != nil {
		log.Printf("[SettlementWorker] query pending events: %v", err)
		return
	}

	for _, msg := range messages {
		w.processEvent(ctx, msg)
	}
}

func (w *SettlementWorker) processEvent(ctx context.Context, msg *model.OutboxMessage) {
	var event model.InvoicePaidEvent
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		log.Printf("[SettlementWorker] bad payload, marking failed: id=%d, err=%v", msg.ID, err)
		if err := w.outbox.MarkAsFailed(ctx, msg.ID); err != nil {
			log.Printf("[SettlementWorker] mark failed: id=%d, err=%v", msg.ID, err)
		}
		return
	}

	if err := w.revenue.HandleInvoicePaid(ctx, &event); err != nil {
		w.recordFailure(ctx, msg, err)
		return
	}

	if err := w.publish(msg.Topic, msg.MessageKey, msg.Payload); err != nil {
		// side effects are idempotent, so retrying the whole event to get
		// the publish through is safe
		w.recordFailure(ctx, msg, err)
		return
	}

	if err := w.outbox.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); err != nil {
		log.Printf("[SettlementWorker] mark sent failed: id=%d, err=%v", msg.ID, err)
		return
	}
	log.Printf("[SettlementWorker] event processed: invoice=%s, event=%s", msg.MessageKey, event.EventID)
}

func (w *SettlementWorker) recordFailure(ctx context.Context, msg *model.OutboxMessage, cause error) {
	log.Printf("[SettlementWorker] event processing failed: id=%d, invoice=%s, err=%v",
		msg.ID, msg.MessageKey, cause)

	if err := w.outbox.IncrementRetryCount(ctx, msg.ID); err != nil {
		log.Printf("[SettlementWorker] increment retry count: id=%d, err=%v", msg.ID, err)
	}

	if msg.RetryCount+1 >= w.cfg.Business.MaxRetryCount {
		if err := w.outbox.MarkAsFailed(ctx, msg.ID); err != nil {
			log.Printf("[SettlementWorker] mark failed: id=%d, err=%v", msg.ID, err)
		} else {
			log.Printf("[SettlementWorker] retries exhausted, marked failed: id=%d", msg.ID)
		}
	}
}
