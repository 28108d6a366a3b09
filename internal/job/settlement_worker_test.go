package job

import (
	"context"
	"errors"
	"testing"

	"marketbill/internal/config"
	"marketbill/internal/model"
)

type fakeOutboxStore struct {
	retries map[int64]int
	status  map[int64]string
}

func newFakeOutboxStore() *fakeOutboxStore {
	return &fakeOutboxStore{
		retries: make(map[int64]int),
		status:  make(map[int64]string),
	}
}

func (f *fakeOutboxStore) GetPendingByTopic(ctx context.Context, topic string, limit int) ([]*model.OutboxMessage, error) {
	return nil, nil
}

func (f *fakeOutboxStore) UpdateStatus(ctx context.Context, id int64, status string) error {
	f.status[id] = status
	return nil
}

func (f *fakeOutboxStore) IncrementRetryCount(ctx context.Context, id int64) error {
	f.retries[id]++
	return nil
}

func (f *fakeOutboxStore) MarkAsFailed(ctx context.Context, id int64) error {
	f.status[id] = model.OutboxStatusFailed
	return nil
}

type fakeApplier struct {
	err   error
	calls int
}

func (f *fakeApplier) HandleInvoicePaid(ctx context.Context, event *model.InvoicePaidEvent) error {
	f.calls++
	return f.err
}

func newTestWorker(store *fakeOutboxStore, applier *fakeApplier, publish func(topic, key, value string) error) *SettlementWorker {
	if publish == nil {
		publish = func(topic, key, value string) error { return nil }
	}
	return &SettlementWorker{
		outbox:  store,
		revenue: applier,
		publish: publish,
		cfg: &config.Config{
			Business: config.BusinessConfig{MaxRetryCount: 3},
		},
	}
}

func paidEventMessage(id int64, retryCount int) *model.OutboxMessage {
	return &model.OutboxMessage{
		ID:         id,
		EventID:    "evt-1",
		MessageKey: "INV1",
		Topic:      model.TopicInvoicePaid,
		Payload:    `{"event_id":"evt-1","invoice_id":1,"invoice_number":"INV1","user_id":42}`,
		Status:     model.OutboxStatusPending,
		RetryCount: retryCount,
	}
}

func TestProcessEventAcksAfterSideEffects(t *testing.T) {
	store := newFakeOutboxStore()
	applier := &fakeApplier{}
	published := 0
	w := newTestWorker(store, applier, func(topic, key, value string) error {
		published++
		return nil
	})

	w.processEvent(context.Background(), paidEventMessage(1, 0))

	if applier.calls != 1 {
		t.Errorf("side effects applied %d times, want 1", applier.calls)
	}
	if published != 1 {
		t.Errorf("published %d times, want 1", published)
	}
	if store.status[1] != model.OutboxStatusSent {
		t.Errorf("status = %q, want SENT", store.status[1])
	}
	if store.retries[1] != 0 {
		t.Errorf("retry count = %d, want 0", store.retries[1])
	}
}

func TestProcessEventKeepsUnackedOnSideEffectFailure(t *testing.T) {
	store := newFakeOutboxStore()
	applier := &fakeApplier{err: errors.New("reduce stock for product P1: driver: bad connection")}
	published := 0
	w := newTestWorker(store, applier, func(topic, key, value string) error {
		published++
		return nil
	})

	w.processEvent(context.Background(), paidEventMessage(1, 0))

	if _, acked := store.status[1]; acked {
		t.Errorf("status = %q, want no status change so the event is redelivered", store.status[1])
	}
	if published != 0 {
		t.Errorf("published %d times, want 0", published)
	}
	if store.retries[1] != 1 {
		t.Errorf("retry count = %d, want exactly 1", store.retries[1])
	}
}

func TestProcessEventKeepsUnackedOnPublishFailure(t *testing.T) {
	store := newFakeOutboxStore()
	applier := &fakeApplier{}
	w := newTestWorker(store, applier, func(topic, key, value string) error {
		return errors.New("kafka: broker unreachable")
	})

	w.processEvent(context.Background(), paidEventMessage(1, 0))

	if _, acked := store.status[1]; acked {
		t.Errorf("status = %q, want no status change", store.status[1])
	}
	if store.retries[1] != 1 {
		t.Errorf("retry count = %d, want 1", store.retries[1])
	}
}

func TestProcessEventExhaustsRetries(t *testing.T) {
	store := newFakeOutboxStore()
	applier := &fakeApplier{err: errors.New("credit seller 7: driver: bad connection")}
	w := newTestWorker(store, applier, nil)

	// Third attempt on a message that already failed twice.
	w.processEvent(context.Background(), paidEventMessage(1, 2))

	if store.status[1] != model.OutboxStatusFailed {
		t.Errorf("status = %q, want FAILED", store.status[1])
	}
	// One increment per attempt, including the exhausting one.
	if store.retries[1] != 1 {
		t.Errorf("retry increments this attempt = %d, want 1", store.retries[1])
	}
}

func TestProcessEventBadPayloadFailsFast(t *testing.T) {
	store := newFakeOutboxStore()
	applier := &fakeApplier{}
	w := newTestWorker(store, applier, nil)

	msg := paidEventMessage(1, 0)
	msg.Payload = "{not json"
	w.processEvent(context.Background(), msg)

	if applier.calls != 0 {
		t.Errorf("side effects applied %d times, want 0", applier.calls)
	}
	if store.status[1] != model.OutboxStatusFailed {
		t.Errorf("status = %q, want FAILED", store.status[1])
	}
	if store.retries[1] != 0 {
		t.Errorf("retry count = %d, want 0", store.retries[1])
	}
}
