package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gocloud.dev/pubsub"

	"github.com/allisson/fulfillment/internal/messaging"
	"github.com/allisson/fulfillment/internal/retry"

	// Register pubsub drivers matched by queue URL scheme.
	_ "gocloud.dev/pubsub/awssnssqs"
	_ "gocloud.dev/pubsub/azuresb"
	_ "gocloud.dev/pubsub/gcppubsub"
	_ "gocloud.dev/pubsub/mempubsub"
	_ "gocloud.dev/pubsub/rabbitpubsub"
)

// initMessaging opens every configured topic and subscription and builds the
// command and event publishers. Topics and subscriptions with empty URLs stay
// nil, which disables the feature they back (events, dead-letter draining).
func (c *Container) initMessaging(ctx context.Context) error {
	c.messagingInit.Do(func() {
		logger := c.Logger()

		openTopic := func(name, url string) *pubsub.Topic {
			if url == "" {
				return nil
			}
			if _, exists := c.initErrors["messaging"]; exists {
				return nil
			}
			topic, err := pubsub.OpenTopic(ctx, url)
			if err != nil {
				c.initErrors["messaging"] = fmt.Errorf("failed to open %s topic: %w", name, err)
				return nil
			}
			return topic
		}

		openSub := func(name, url string) *pubsub.Subscription {
			if url == "" {
				return nil
			}
			if _, exists := c.initErrors["messaging"]; exists {
				return nil
			}
			sub, err := pubsub.OpenSubscription(ctx, url)
			if err != nil {
				c.initErrors["messaging"] = fmt.Errorf("failed to open %s subscription: %w", name, err)
				return nil
			}
			return sub
		}

		c.processOrderTopic = openTopic("process order", c.config.ProcessOrderTopicURL)
		c.submitOrderTopic = openTopic("submit order", c.config.SubmitOrderTopicURL)
		c.notifyTopic = openTopic("notify", c.config.NotifyTopicURL)
		c.eventsTopic = openTopic("events", c.config.EventsTopicURL)
		c.processOrderSub = openSub("process order", c.config.ProcessOrderSubscriptionURL)
		c.submitOrderSub = openSub("submit order", c.config.SubmitOrderSubscriptionURL)
		c.notifySub = openSub("notify", c.config.NotifySubscriptionURL)
		c.deadLetterSub = openSub("dead letter", c.config.DeadLetterSubscriptionURL)

		if _, exists := c.initErrors["messaging"]; exists {
			return
		}

		c.processPublisher = messaging.NewQueuePublisher(c.processOrderTopic, logger)
		c.submitPublisher = messaging.NewQueuePublisher(c.submitOrderTopic, logger)
		c.notifyPublisher = messaging.NewQueuePublisher(c.notifyTopic, logger)
		c.eventPublisher = messaging.NewTopicEventPublisher(c.eventsTopic, logger)
	})
	if err, exists := c.initErrors["messaging"]; exists {
		return err
	}
	return nil
}

// ProcessOrderPublisher returns the publisher for the process-order queue.
func (c *Container) ProcessOrderPublisher(ctx context.Context) (messaging.CommandPublisher, error) {
	if err := c.initMessaging(ctx); err != nil {
		return nil, err
	}
	return c.processPublisher, nil
}

// EventPublisher returns the best-effort pipeline event publisher.
func (c *Container) EventPublisher(ctx context.Context) (messaging.EventPublisher, error) {
	if err := c.initMessaging(ctx); err != nil {
		return nil, err
	}
	return c.eventPublisher, nil
}

// newCommandScheduler builds the out-of-process retry scheduler that
// re-enqueues failed commands onto their own queue. Each scheduler gets its
// own random source; consumers run on separate goroutines and rand.Rand is
// not safe for concurrent use.
func (c *Container) newCommandScheduler(publisher messaging.CommandPublisher) (*messaging.Scheduler, error) {
	thresholds := retry.Thresholds{
		MaxAttempts:            c.config.CommandRetryMaxAttempts,
		ExponentialBaseSeconds: c.config.CommandRetryExponentialSeconds,
		JitterSeconds:          c.config.CommandRetryJitterSeconds,
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	clock := func() time.Time { return time.Now().UTC() }

	return messaging.NewScheduler(thresholds, rng, clock, publisher, c.Logger())
}
