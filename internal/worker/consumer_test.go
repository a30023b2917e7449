package worker

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gocloud.dev/pubsub"
	"gocloud.dev/pubsub/mempubsub"

	"github.com/allisson/fulfillment/internal/messaging"
	"github.com/allisson/fulfillment/internal/metrics"
	"github.com/allisson/fulfillment/internal/result"
	"github.com/allisson/fulfillment/internal/retry"
)

// fakeHandler records handled commands and returns canned results in order,
// repeating the last one once the list is exhausted.
type fakeHandler struct {
	mu      sync.Mutex
	kind    string
	results []result.Result[string]
	handled []messaging.Command
}

func (h *fakeHandler) Kind() string { return h.kind }

func (h *fakeHandler) Handle(_ context.Context, cmd messaging.Command) result.Result[string] {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, cmd)
	i := len(h.handled) - 1
	if i >= len(h.results) {
		i = len(h.results) - 1
	}
	return h.results[i]
}

func (h *fakeHandler) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func newMemQueue(t *testing.T) (*pubsub.Topic, *pubsub.Subscription) {
	t.Helper()

	topic := mempubsub.NewTopic()
	sub := mempubsub.NewSubscription(topic, time.Minute)
	t.Cleanup(func() {
		ctx := context.Background()
		_ = sub.Shutdown(ctx)
		_ = topic.Shutdown(ctx)
	})
	return topic, sub
}

func newTestScheduler(t *testing.T, maxAttempts int, publisher messaging.CommandPublisher) *messaging.Scheduler {
	t.Helper()

	scheduler, err := messaging.NewScheduler(
		retry.Thresholds{MaxAttempts: maxAttempts, ExponentialBaseSeconds: 1, JitterSeconds: 0},
		rand.New(rand.NewSource(1)),
		func() time.Time { return time.Now().UTC() },
		publisher,
		testLogger(),
	)
	require.NoError(t, err)
	return scheduler
}

func publishCommand(t *testing.T, topic *pubsub.Topic, cmd messaging.Command, notBefore time.Time) {
	t.Helper()

	msg, err := messaging.EncodeCommand(cmd, notBefore)
	require.NoError(t, err)
	require.NoError(t, topic.Send(context.Background(), msg))
}

func receiveMessage(t *testing.T, sub *pubsub.Subscription) *pubsub.Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.Receive(ctx)
	require.NoError(t, err)
	return msg
}

// assertNoDelivery asserts the subscription stays empty for a short window.
func assertNoDelivery(t *testing.T, sub *pubsub.Subscription) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := sub.Receive(ctx)
	assert.Error(t, err)
}

func TestConsumerAcksCompletedCommand(t *testing.T) {
	ctx := context.Background()
	topic, sub := newMemQueue(t)
	handler := &fakeHandler{kind: messaging.KindProcessOrder, results: []result.Result[string]{result.Success("staged")}}
	schedulerPublisher := new(MockCommandPublisher)
	consumer := NewConsumer(
		sub, handler, newTestScheduler(t, 3, schedulerPublisher), nil,
		metrics.NewNoOpPipelineMetrics(), testLogger(),
	)
	cmd := newProcessOrderCmd(nil)

	publishCommand(t, topic, cmd, time.Time{})
	consumer.handleMessage(ctx, receiveMessage(t, sub))

	assert.Equal(t, 1, handler.calls())
	assert.Equal(t, cmd.Meta.ID, handler.handled[0].Envelope().ID)
	schedulerPublisher.AssertNotCalled(t, "PublishAt", mock.Anything, mock.Anything, mock.Anything)
	assertNoDelivery(t, sub)
}

func TestConsumerSchedulesRetriableFailure(t *testing.T) {
	ctx := context.Background()
	topic, sub := newMemQueue(t)
	handler := &fakeHandler{
		kind:    messaging.KindProcessOrder,
		results: []result.Result[string]{result.TransientException[string]()},
	}
	schedulerPublisher := new(MockCommandPublisher)
	notifyPublisher := new(MockCommandPublisher)
	consumer := NewConsumer(
		sub, handler, newTestScheduler(t, 3, schedulerPublisher), notifyPublisher,
		metrics.NewNoOpPipelineMetrics(), testLogger(),
	)

	schedulerPublisher.On("PublishAt", mock.Anything, mock.MatchedBy(func(next messaging.Command) bool {
		return next.Envelope().PreviousAttempts == 1
	}), mock.AnythingOfType("time.Time")).Return(nil)

	publishCommand(t, topic, newProcessOrderCmd(nil), time.Time{})
	consumer.handleMessage(ctx, receiveMessage(t, sub))

	schedulerPublisher.AssertExpectations(t)
	notifyPublisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	assertNoDelivery(t, sub)
}

func TestConsumerEscalatesExhaustedRetryBudget(t *testing.T) {
	ctx := context.Background()
	topic, sub := newMemQueue(t)
	handler := &fakeHandler{
		kind:    messaging.KindProcessOrder,
		results: []result.Result[string]{result.TransientException[string]()},
	}
	schedulerPublisher := new(MockCommandPublisher)
	notifyPublisher := new(MockCommandPublisher)
	consumer := NewConsumer(
		sub, handler, newTestScheduler(t, 3, schedulerPublisher), notifyPublisher,
		metrics.NewNoOpPipelineMetrics(), testLogger(),
	)

	cmd := newProcessOrderCmd(nil)
	cmd.Meta = cmd.Meta.WithAttempts(3)

	notifyPublisher.On("Publish", mock.Anything, mock.MatchedBy(func(notify messaging.Command) bool {
		return notify.Kind() == messaging.KindNotifyOfFatalFailure &&
			notify.Envelope().OrderID == "ABC123" &&
			notify.Envelope().CorrelationID == "corr-1"
	})).Return(nil)

	publishCommand(t, topic, cmd, time.Time{})
	consumer.handleMessage(ctx, receiveMessage(t, sub))

	notifyPublisher.AssertExpectations(t)
	schedulerPublisher.AssertNotCalled(t, "PublishAt", mock.Anything, mock.Anything, mock.Anything)

	// The nacked message goes back to the queue for the broker to dead-letter.
	redelivered := receiveMessage(t, sub)
	redelivered.Ack()
}

func TestConsumerEscalatesFinalFailureWithoutRetry(t *testing.T) {
	ctx := context.Background()
	topic, sub := newMemQueue(t)
	handler := &fakeHandler{
		kind: messaging.KindProcessOrder,
		results: []result.Result[string]{
			result.Failure[string]("order not found upstream", result.RecoverabilityFinal),
		},
	}
	schedulerPublisher := new(MockCommandPublisher)
	notifyPublisher := new(MockCommandPublisher)
	consumer := NewConsumer(
		sub, handler, newTestScheduler(t, 3, schedulerPublisher), notifyPublisher,
		metrics.NewNoOpPipelineMetrics(), testLogger(),
	)

	notifyPublisher.On("Publish", mock.Anything, mock.AnythingOfType("messaging.NotifyOfFatalFailure")).Return(nil)

	publishCommand(t, topic, newProcessOrderCmd(nil), time.Time{})
	consumer.handleMessage(ctx, receiveMessage(t, sub))

	notifyPublisher.AssertExpectations(t)
	schedulerPublisher.AssertNotCalled(t, "PublishAt", mock.Anything, mock.Anything, mock.Anything)

	redelivered := receiveMessage(t, sub)
	redelivered.Ack()
}

func TestConsumerSkipsEscalationCommandWithoutNotifyQueue(t *testing.T) {
	ctx := context.Background()
	topic, sub := newMemQueue(t)
	handler := &fakeHandler{
		kind: messaging.KindNotifyOfFatalFailure,
		results: []result.Result[string]{
			result.Failure[string]("webhook returned status 403", result.RecoverabilityFinal),
		},
	}
	schedulerPublisher := new(MockCommandPublisher)
	consumer := NewConsumer(
		sub, handler, newTestScheduler(t, 3, schedulerPublisher), nil,
		metrics.NewNoOpPipelineMetrics(), testLogger(),
	)

	cmd := messaging.NotifyOfFatalFailure{Meta: messaging.NewEnvelope("PARTNERX", "ABC123", "corr-1")}
	publishCommand(t, topic, cmd, time.Time{})
	consumer.handleMessage(ctx, receiveMessage(t, sub))

	redelivered := receiveMessage(t, sub)
	redelivered.Ack()
}

func TestConsumerDefersNotYetDueDelivery(t *testing.T) {
	ctx := context.Background()
	topic, sub := newMemQueue(t)
	handler := &fakeHandler{kind: messaging.KindProcessOrder, results: []result.Result[string]{result.Success("staged")}}
	schedulerPublisher := new(MockCommandPublisher)
	consumer := NewConsumer(
		sub, handler, newTestScheduler(t, 3, schedulerPublisher), nil,
		metrics.NewNoOpPipelineMetrics(), testLogger(),
	)

	publishCommand(t, topic, newProcessOrderCmd(nil), time.Now().UTC().Add(30*time.Millisecond))

	consumer.handleMessage(ctx, receiveMessage(t, sub))
	assert.Equal(t, 0, handler.calls())

	// After the not-before instant has passed the redelivery is handled.
	consumer.handleMessage(ctx, receiveMessage(t, sub))
	assert.Equal(t, 1, handler.calls())
	assertNoDelivery(t, sub)
}

func TestConsumerRejectsUndecodableDelivery(t *testing.T) {
	ctx := context.Background()
	topic, sub := newMemQueue(t)
	handler := &fakeHandler{kind: messaging.KindProcessOrder, results: []result.Result[string]{result.Success("staged")}}
	schedulerPublisher := new(MockCommandPublisher)
	consumer := NewConsumer(
		sub, handler, newTestScheduler(t, 3, schedulerPublisher), nil,
		metrics.NewNoOpPipelineMetrics(), testLogger(),
	)

	require.NoError(t, topic.Send(context.Background(), &pubsub.Message{
		Body:     []byte("{not json"),
		Metadata: map[string]string{messaging.AttrKind: messaging.KindProcessOrder},
	}))

	consumer.handleMessage(ctx, receiveMessage(t, sub))
	assert.Equal(t, 0, handler.calls())

	redelivered := receiveMessage(t, sub)
	redelivered.Ack()
}

func TestDeadLetterConsumerEscalatesFromMetadata(t *testing.T) {
	ctx := context.Background()
	topic, sub := newMemQueue(t)
	notifier := new(MockNotifier)
	consumer := NewDeadLetterConsumer(sub, notifier, metrics.NewNoOpPipelineMetrics(), testLogger())

	notifier.On("NotifyDeadLetter", mock.Anything, messaging.KindSubmitOrderForProduction, "PARTNERX", "ABC123", "corr-1").
		Return(result.Success("delivered"))

	require.NoError(t, topic.Send(context.Background(), &pubsub.Message{
		Body: []byte("{}"),
		Metadata: map[string]string{
			messaging.AttrKind:          messaging.KindSubmitOrderForProduction,
			messaging.AttrPartnerCode:   "PARTNERX",
			messaging.AttrOrderID:       "ABC123",
			messaging.AttrCorrelationID: "corr-1",
		},
	}))

	consumer.handleMessage(ctx, receiveMessage(t, sub))

	notifier.AssertExpectations(t)
	assertNoDelivery(t, sub)
}

func TestDeadLetterConsumerAcksWhenNotificationFails(t *testing.T) {
	ctx := context.Background()
	topic, sub := newMemQueue(t)
	notifier := new(MockNotifier)
	consumer := NewDeadLetterConsumer(sub, notifier, metrics.NewNoOpPipelineMetrics(), testLogger())

	notifier.On("NotifyDeadLetter", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(result.Failure[string]("webhook returned status 502", result.RecoverabilityRetriable))

	require.NoError(t, topic.Send(context.Background(), &pubsub.Message{
		Body:     []byte("{}"),
		Metadata: map[string]string{messaging.AttrKind: messaging.KindProcessOrder},
	}))

	consumer.handleMessage(ctx, receiveMessage(t, sub))

	// Escalation is best-effort; the message never wedges the queue.
	assertNoDelivery(t, sub)
}

func TestRunnerStopsOnContextCancel(t *testing.T) {
	_, sub := newMemQueue(t)
	handler := &fakeHandler{kind: messaging.KindProcessOrder, results: []result.Result[string]{result.Success("staged")}}
	schedulerPublisher := new(MockCommandPublisher)
	consumer := NewConsumer(
		sub, handler, newTestScheduler(t, 3, schedulerPublisher), nil,
		metrics.NewNoOpPipelineMetrics(), testLogger(),
	)
	runner := NewRunner(consumer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}
}
