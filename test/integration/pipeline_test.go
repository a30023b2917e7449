// Package integration exercises the fulfillment pipelines end to end: a
// process-order command published to the staging queue must flow through the
// processor, the submission queue and the submitter into completed storage,
// with failures escalating to the notification queue. Everything runs on
// in-memory queue and bucket drivers.
package integration

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	"gocloud.dev/pubsub"

	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/pubsub/mempubsub"

	apperrors "github.com/allisson/fulfillment/internal/errors"
	"github.com/allisson/fulfillment/internal/messaging"
	"github.com/allisson/fulfillment/internal/metrics"
	orderDomain "github.com/allisson/fulfillment/internal/order/domain"
	orderRepository "github.com/allisson/fulfillment/internal/order/repository"
	orderUsecase "github.com/allisson/fulfillment/internal/order/usecase"
	"github.com/allisson/fulfillment/internal/result"
	"github.com/allisson/fulfillment/internal/retry"
	skuDomain "github.com/allisson/fulfillment/internal/sku/domain"
	skuUsecase "github.com/allisson/fulfillment/internal/sku/usecase"
	"github.com/allisson/fulfillment/internal/worker"
)

// stubDetails serves upstream order details, failing transiently for the
// first failBefore calls.
type stubDetails struct {
	details    orderDomain.OrderDetails
	calls      atomic.Int32
	failBefore int32
}

func (s *stubDetails) GetOrderDetails(
	_ context.Context,
	_, _, _ string,
) result.Result[orderDomain.OrderDetails] {
	call := s.calls.Add(1)
	if call <= s.failBefore {
		return result.TransientException[orderDomain.OrderDetails]()
	}
	return result.Success(s.details)
}

// memTemplateRepo is an in-memory TemplateRepository.
type memTemplateRepo struct {
	templates map[string]string
}

func (m *memTemplateRepo) GetBySKU(_ context.Context, sku string) (*skuDomain.Template, error) {
	body, ok := m.templates[sku]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &skuDomain.Template{SKU: sku, Body: body}, nil
}

func (m *memTemplateRepo) List(_ context.Context, _, _ int) ([]*skuDomain.Template, error) {
	return nil, nil
}

func (m *memTemplateRepo) Upsert(_ context.Context, template *skuDomain.Template) error {
	m.templates[template.SKU] = template.Body
	return nil
}

func (m *memTemplateRepo) Delete(_ context.Context, sku string) error {
	delete(m.templates, sku)
	return nil
}

type stubProduction struct {
	reference string
}

func (s *stubProduction) SubmitOrder(
	_ context.Context,
	_ *orderDomain.OrderDocument,
	_ string,
) result.Result[string] {
	return result.Success(s.reference)
}

// recordedEscalation is one notifier invocation observed by the stub.
type recordedEscalation struct {
	partnerCode   string
	orderID       string
	correlationID string
}

type stubNotifier struct {
	escalations chan recordedEscalation
}

// record drops escalations once the channel is full. The in-memory driver
// redelivers nacked messages forever, so a dead-lettered command keeps
// escalating until the test cancels its context.
func (s *stubNotifier) record(partnerCode, orderID, correlationID string) {
	select {
	case s.escalations <- recordedEscalation{partnerCode, orderID, correlationID}:
	default:
	}
}

func (s *stubNotifier) NotifyOrderFailure(
	_ context.Context,
	partnerCode, orderID, correlationID string,
) result.Result[string] {
	s.record(partnerCode, orderID, correlationID)
	return result.Success("notified")
}

func (s *stubNotifier) NotifyDeadLetter(
	_ context.Context,
	_, partnerCode, orderID, correlationID string,
) result.Result[string] {
	s.record(partnerCode, orderID, correlationID)
	return result.Success("notified")
}

// harness wires the three queues, the blob store and both pipelines the same
// way the application container does, but on mem:// drivers.
type harness struct {
	store           *orderRepository.BlobOrderRepository
	processTopic    *pubsub.Topic
	processPub      *messaging.QueuePublisher
	notifier        *stubNotifier
	details         *stubDetails
	runner          *worker.Runner
	schedulerBudget int
}

func testOrderDetails() orderDomain.OrderDetails {
	return orderDomain.OrderDetails{
		OrderID: "ABC123",
		UserID:  "user-1",
		Recipients: []orderDomain.Recipient{
			{
				ID: "R1",
				OrderedItems: []orderDomain.OrderedItemCount{
					{LineItemID: "L1", Quantity: 3},
				},
			},
		},
		LineItems: []orderDomain.LineItem{
			{
				LineItemID:  "L1",
				ProductCode: "SKU1",
				Description: "greeting card",
				CountInSet:  1,
			},
		},
	}
}

func newHarness(t *testing.T, name string) *harness {
	t.Helper()

	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	openQueue := func(suffix string) (*pubsub.Topic, *pubsub.Subscription) {
		url := fmt.Sprintf("mem://%s-%s", name, suffix)
		topic, err := pubsub.OpenTopic(ctx, url)
		require.NoError(t, err)
		sub, err := pubsub.OpenSubscription(ctx, url)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = sub.Shutdown(ctx)
			_ = topic.Shutdown(ctx)
		})
		return topic, sub
	}

	processTopic, processSub := openQueue("process")
	submitTopic, submitSub := openQueue("submit")
	notifyTopic, notifySub := openQueue("notify")

	pendingBucket, err := blob.OpenBucket(ctx, "mem://")
	require.NoError(t, err)
	completedBucket, err := blob.OpenBucket(ctx, "mem://")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pendingBucket.Close()
		_ = completedBucket.Close()
	})

	store := orderRepository.NewBlobOrderRepository(pendingBucket, completedBucket)

	processPub := messaging.NewQueuePublisher(processTopic, logger)
	submitPub := messaging.NewQueuePublisher(submitTopic, logger)
	notifyPub := messaging.NewQueuePublisher(notifyTopic, logger)
	events := messaging.NewTopicEventPublisher(nil, logger)

	// No in-process retries; the flaky-detail test must go through the
	// out-of-process scheduler instead.
	policy := retry.NewPolicy(retry.Thresholds{MaxAttempts: 0}, rand.New(rand.NewSource(1)))

	details := &stubDetails{details: testOrderDetails()}
	templates := &memTemplateRepo{templates: map[string]string{
		"SKU1": "Rendered:{{.SKU}}:{{.AssetURL}}:{{.TotalQuantity}}",
	}}
	renderer := skuUsecase.NewRenderer(templates, logger)

	processor, err := orderUsecase.NewProcessor(
		details,
		renderer,
		store,
		policy,
		orderUsecase.ProcessorConfig{PartnerSubCode: "SUB1", DefaultServiceLevelAgreement: "SLA-STD"},
		logger,
	)
	require.NoError(t, err)

	submitter, err := orderUsecase.NewSubmitter(&stubProduction{reference: "PROD-REF-1"}, store, policy, logger)
	require.NoError(t, err)

	notifier := &stubNotifier{escalations: make(chan recordedEscalation, 4)}

	// Zero backoff keeps scheduled redeliveries immediately due.
	schedulerBudget := 2
	thresholds := retry.Thresholds{MaxAttempts: schedulerBudget}
	newScheduler := func(pub messaging.CommandPublisher) *messaging.Scheduler {
		s, err := messaging.NewScheduler(
			thresholds,
			rand.New(rand.NewSource(1)),
			func() time.Time { return time.Now().UTC() },
			pub,
			logger,
		)
		require.NoError(t, err)
		return s
	}

	pipelineMetrics := metrics.NewNoOpPipelineMetrics()

	processConsumer := worker.NewConsumer(
		processSub,
		worker.NewProcessOrderHandler(processor, submitPub, events, logger),
		newScheduler(processPub),
		notifyPub,
		pipelineMetrics,
		logger,
	)
	submitConsumer := worker.NewConsumer(
		submitSub,
		worker.NewSubmitOrderHandler(submitter, events, logger),
		newScheduler(submitPub),
		notifyPub,
		pipelineMetrics,
		logger,
	)
	notifyConsumer := worker.NewConsumer(
		notifySub,
		worker.NewNotifyHandler(notifier, events, logger),
		newScheduler(notifyPub),
		nil,
		pipelineMetrics,
		logger,
	)

	return &harness{
		store:           store,
		processTopic:    processTopic,
		processPub:      processPub,
		notifier:        notifier,
		details:         details,
		runner:          worker.NewRunner(processConsumer, submitConsumer, notifyConsumer),
		schedulerBudget: schedulerBudget,
	}
}

func (h *harness) run(t *testing.T, ctx context.Context) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- h.runner.Run(ctx) }()
	t.Cleanup(func() {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("worker runner did not stop")
		}
	})
}

func newProcessOrder(emulation *result.Emulation) messaging.ProcessOrder {
	return messaging.ProcessOrder{
		Meta:      messaging.NewEnvelope("PARTNERX", "ABC123", uuid.Must(uuid.NewV7()).String()),
		Assets:    map[string]string{"L1": "https://assets.example.com/L1.pdf"},
		Emulation: emulation,
	}
}

func waitForCompleted(
	t *testing.T,
	ctx context.Context,
	store *orderRepository.BlobOrderRepository,
) *orderDomain.OrderDocument {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		doc, err := store.GetCompleted(ctx, "PARTNERX", "ABC123")
		if err == nil {
			return doc
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("order never reached completed storage")
	return nil
}

func TestPipelineCompletesOrder(t *testing.T) {
	h := newHarness(t, "happy")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.run(t, ctx)

	cmd := newProcessOrder(nil)
	require.NoError(t, h.processPub.Publish(ctx, cmd))

	doc := waitForCompleted(t, ctx, h.store)

	assert.Equal(t, "PARTNERX", doc.Identity.PartnerCode)
	assert.Equal(t, "SUB1", doc.Identity.PartnerSubCode)
	assert.Equal(t, "ABC123", doc.Identity.PartnerOrderID)
	assert.Equal(t, cmd.Meta.CorrelationID, doc.Identity.TransactionID)

	require.Len(t, doc.LineItems, 1)
	item := doc.LineItems[0]
	assert.Equal(t, "Rendered:SKU1:https://assets.example.com/L1.pdf:3", item.Item)
	assert.Equal(t, "https://assets.example.com/L1.pdf", item.ResourceID)
	assert.Equal(t, "SLA-STD", item.ServiceLevelAgreement)
	assert.Equal(t, 3, item.TotalQuantity)
	assert.Equal(t, 1, item.RecipientCount)

	// The commit point reached, pending storage should be cleaned up.
	require.Eventually(t, func() bool {
		_, err := h.store.GetPending(ctx, "PARTNERX", "ABC123")
		return apperrors.Is(err, apperrors.ErrNotFound)
	}, 5*time.Second, 10*time.Millisecond, "pending entry should be removed after completion")
}

func TestPipelineRetriesTransientFailureOutOfProcess(t *testing.T) {
	h := newHarness(t, "flaky")
	h.details.failBefore = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.run(t, ctx)

	require.NoError(t, h.processPub.Publish(ctx, newProcessOrder(nil)))

	waitForCompleted(t, ctx, h.store)
	assert.Equal(t, int32(2), h.details.calls.Load(), "detail lookup should run once per delivery")
}

func TestPipelineEscalatesFinalFailure(t *testing.T) {
	h := newHarness(t, "fatal")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.run(t, ctx)

	rejected := result.Failure[string]("partner rejected order", result.RecoverabilityFinal)
	cmd := newProcessOrder(&result.Emulation{OrderDetails: &rejected})
	require.NoError(t, h.processPub.Publish(ctx, cmd))

	select {
	case escalation := <-h.notifier.escalations:
		assert.Equal(t, "PARTNERX", escalation.partnerCode)
		assert.Equal(t, "ABC123", escalation.orderID)
		assert.Equal(t, cmd.Meta.CorrelationID, escalation.correlationID)
	case <-time.After(10 * time.Second):
		t.Fatal("fatal failure never reached the notifier")
	}

	// A rejected order must never be staged.
	_, err := h.store.GetPending(ctx, "PARTNERX", "ABC123")
	assert.Error(t, err)
}

func TestPipelineEscalatesWhenRetryBudgetExhausted(t *testing.T) {
	h := newHarness(t, "exhausted")
	// More transient failures than the scheduler budget allows.
	h.details.failBefore = int32(h.schedulerBudget) + 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.run(t, ctx)

	require.NoError(t, h.processPub.Publish(ctx, newProcessOrder(nil)))

	select {
	case escalation := <-h.notifier.escalations:
		assert.Equal(t, "ABC123", escalation.orderID)
	case <-time.After(10 * time.Second):
		t.Fatal("exhausted retries never reached the notifier")
	}

	// Initial delivery plus one redelivery per budgeted retry, at minimum;
	// the in-memory driver keeps redelivering the dead-lettered message
	// until the context is canceled.
	assert.GreaterOrEqual(t, h.details.calls.Load(), int32(h.schedulerBudget)+1)
}
