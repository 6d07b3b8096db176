// Package notify delivers customer-facing events emitted by the billing
// workflow. Dispatch is asynchronous and best-effort: the workflow commits
// first, then fires the event, and a delivery failure is logged and dropped,
// never surfaced or retried into the business transaction.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/washday/laundry-api/internal/domain/customer"
	"github.com/washday/laundry-api/internal/domain/order"
)

// Message is the narrow contract with the delivery backend (email in the
// surrounding system).
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sink delivers a message out-of-band.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// sendTimeout bounds a single delivery attempt.
const sendTimeout = 10 * time.Second

var _ order.Notifier = (*Dispatcher)(nil)

// Dispatcher renders order events into messages and hands them to the sink
// from a detached goroutine.
type Dispatcher struct {
	sink Sink
	lg   *zap.Logger
	wg   sync.WaitGroup
}

// NewDispatcher creates a Dispatcher delivering through the given sink.
func NewDispatcher(sink Sink, lg *zap.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, lg: lg}
}

// OrderCreated notifies the customer that their order was placed.
func (d *Dispatcher) OrderCreated(_ context.Context, o *order.Order, c *customer.Customer) {
	body := fmt.Sprintf(
		"Hello %s,\n\nYour order %s has been created.\n"+
			"Garments: %d\nSubtotal: %s\nDiscount: %s%% (%s)\nTotal: %s\n"+
			"Pickup: %s\nDelivery: %s\nPromised: %s\n",
		displayName(c), o.TrackingCode,
		len(o.Lines),
		o.Receipt.Subtotal.StringFixed(2),
		o.StampedPercent.String(), o.StampedTier,
		o.Receipt.Total.StringFixed(2),
		o.PickupAddress, o.DeliveryAddress,
		o.PromisedAt.Format("2006-01-02"),
	)
	d.dispatch(c.Email, fmt.Sprintf("Order %s created", o.TrackingCode), body)
}

// OrderStateChanged notifies the customer about an admin-driven transition.
func (d *Dispatcher) OrderStateChanged(_ context.Context, o *order.Order, c *customer.Customer, from order.State) {
	var subject, line string
	switch o.State {
	case order.StateInProgress:
		subject = fmt.Sprintf("Order %s in progress", o.TrackingCode)
		line = "Your order is being processed."
	case order.StateCompleted:
		subject = fmt.Sprintf("Order %s ready", o.TrackingCode)
		line = fmt.Sprintf("Good news! Your order is ready and will be delivered to %s.", o.DeliveryAddress)
	case order.StateCancelled:
		subject = fmt.Sprintf("Order %s cancelled", o.TrackingCode)
		line = "Your order has been cancelled."
	default:
		subject = fmt.Sprintf("Order %s update", o.TrackingCode)
		line = fmt.Sprintf("Your order moved from %s to %s.", from, o.State)
	}

	body := fmt.Sprintf("Hello %s,\n\n%s\n", displayName(c), line)
	d.dispatch(c.Email, subject, body)
}

// dispatch sends the message from its own goroutine with a detached context,
// so a slow or failing sink never blocks or fails the caller.
func (d *Dispatcher) dispatch(to, subject, body string) {
	if to == "" {
		d.lg.Debug("Notification skipped, no recipient", zap.String("subject", subject))
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				d.lg.Error("Notification sink panicked", zap.Any("panic", rec))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := d.sink.Send(ctx, Message{To: to, Subject: subject, Body: body}); err != nil {
			d.lg.Warn("Notification delivery failed",
				zap.String("to", to),
				zap.String("subject", subject),
				zap.Error(err),
			)
		}
	}()
}

// Flush blocks until all in-flight deliveries finish. Used on shutdown and
// in tests.
func (d *Dispatcher) Flush() {
	d.wg.Wait()
}

func displayName(c *customer.Customer) string {
	if c.Name != "" {
		return c.Name
	}
	return "customer"
}

// LogSink is the built-in delivery backend: it writes the message to the
// service log. Real email delivery is an external collaborator behind the
// Sink interface.
type LogSink struct {
	lg *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(lg *zap.Logger) *LogSink {
	return &LogSink{lg: lg}
}

// Send logs the message.
func (s *LogSink) Send(_ context.Context, msg Message) error {
	s.lg.Info("Notification",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return nil
}
