package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/allisson/fulfillment/internal/app"
	"github.com/allisson/fulfillment/internal/config"
	"github.com/allisson/fulfillment/internal/messaging"
)

// RunEnqueueOrder publishes a process-order command for the given order,
// bypassing the HTTP API. Useful for re-driving an order by hand.
// assetsJSON maps line item ids to asset URLs, e.g. '{"L1":"https://..."}'.
func RunEnqueueOrder(ctx context.Context, partnerCode, orderID, assetsJSON string, io IOTuple) error {
	var assets map[string]string
	if err := json.Unmarshal([]byte(assetsJSON), &assets); err != nil {
		return fmt.Errorf("failed to parse assets: %w", err)
	}

	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	publisher, err := container.ProcessOrderPublisher(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize publisher: %w", err)
	}

	correlationID := uuid.Must(uuid.NewV7()).String()
	cmd := messaging.ProcessOrder{
		Meta: messaging.NewEnvelope(
			strings.ToUpper(strings.TrimSpace(partnerCode)),
			strings.ToUpper(strings.TrimSpace(orderID)),
			correlationID,
		),
		Assets: assets,
	}
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	if err := publisher.Publish(ctx, cmd); err != nil {
		return fmt.Errorf("failed to publish command: %w", err)
	}

	events, err := container.EventPublisher(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	events.TryPublish(ctx, messaging.NewEventFrom(cmd, messaging.EventOrderReceived))

	fmt.Fprintf(io.Writer, "order enqueued\n")
	fmt.Fprintf(io.Writer, "  partner code:   %s\n", cmd.Meta.PartnerCode)
	fmt.Fprintf(io.Writer, "  order id:       %s\n", cmd.Meta.OrderID)
	fmt.Fprintf(io.Writer, "  correlation id: %s\n", correlationID)
	return nil
}
