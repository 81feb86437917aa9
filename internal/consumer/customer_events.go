package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"github.com/vhvplatform/go-billing-reminder/internal/metrics"
	"github.com/vhvplatform/go-billing-reminder/internal/scheduler"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/logger"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/rabbitmq"
)

const (
	customerExchange   = "customers"
	customerQueue      = "billing_reminder_customer_events"
	customerRoutingKey = "customer.*"

	restartDelay = 5 * time.Second
)

// EventConsumer reacts to customer lifecycle events: a new customer gets
// a welcome message, a renewal cancels the pending dunning.
type EventConsumer struct {
	client    *rabbitmq.RabbitMQClient
	scheduler *scheduler.Scheduler
	log       *logger.Logger
}

// NewEventConsumer creates a new event consumer
func NewEventConsumer(client *rabbitmq.RabbitMQClient, sched *scheduler.Scheduler, log *logger.Logger) *EventConsumer {
	return &EventConsumer{
		client:    client,
		scheduler: sched,
		log:       log,
	}
}

// Run consumes until the context is cancelled, restarting the channel
// after broker failures.
func (c *EventConsumer) Run(ctx context.Context) {
	for {
		if err := c.consume(ctx); err != nil {
			c.log.Error("consumer stopped", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
			metrics.ConsumerRestarts.Inc()
		}
	}
}

func (c *EventConsumer) consume(ctx context.Context) error {
	c.log.Info("starting event consumer", "queue", customerQueue)

	if err := c.client.DeclareExchange(customerExchange, "topic"); err != nil {
		return err
	}
	if err := c.client.DeclareQueue(customerQueue); err != nil {
		return err
	}
	if err := c.client.BindQueue(customerQueue, customerRoutingKey, customerExchange); err != nil {
		return err
	}

	messages, err := c.client.Consume(customerQueue)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *EventConsumer) handle(ctx context.Context, msg rabbitmq.Message) {
	var event domain.CustomerEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.log.Error("failed to unmarshal event", "routing_key", msg.RoutingKey, "error", err)
		msg.Nack(false, false) // Don't requeue invalid messages
		return
	}

	if err := c.process(ctx, &event); err != nil {
		c.log.Error("failed to process event", "type", event.Type, "customer_id", event.CustomerID, "error", err)
		msg.Nack(false, true) // Requeue for retry
		return
	}

	msg.Ack(false)
	c.log.Info("event processed", "type", event.Type, "tenant_id", event.TenantID, "customer_id", event.CustomerID)
}

func (c *EventConsumer) process(ctx context.Context, event *domain.CustomerEvent) error {
	switch event.Type {
	case domain.EventCustomerCreated:
		return c.scheduler.EnqueueWelcome(ctx, event.TenantID, event.CustomerID)
	case domain.EventCustomerRenewed:
		_, err := c.scheduler.CancelPending(ctx, event.TenantID, event.CustomerID)
		return err
	default:
		c.log.Warn("ignoring unknown event type", "type", event.Type)
		return nil
	}
}
