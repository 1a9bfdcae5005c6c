// Package notify forwards settlement events to operator channels. A Notifier
// subscribes to the live event bus and dispatches each allowed event to every
// registered sender (Telegram, Discord), so operators hear about resolutions,
// disputes, and cancellations without watching the API.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. It maintains a
// set of allowed event types; Notify only forwards events whose type is in
// the allowed set.
type Notifier struct {
	senders []Sender
	events  map[domain.EventType]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// events whose type appears in the events slice will be forwarded. If events
// is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventType]bool, len(events))
	for _, e := range events {
		allowed[domain.EventType(strings.TrimSpace(e))] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Watch subscribes to the event bus and forwards allowed events until the
// context is cancelled. Sender failures are logged, not fatal.
func (n *Notifier) Watch(ctx context.Context, bus domain.EventBus) error {
	if len(n.senders) == 0 {
		<-ctx.Done()
		return nil
	}

	ch, err := bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("notify: subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if err := n.Notify(ctx, e); err != nil {
				n.logger.WarnContext(ctx, "notification delivery failed",
					slog.String("event", string(e.Type)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Notify sends a notification for the event to all senders if its type is in
// the allowed list. If no events were configured, all events pass.
func (n *Notifier) Notify(ctx context.Context, e domain.Event) error {
	if len(n.events) > 0 && !n.events[e.Type] {
		return nil
	}

	title, message := format(e)
	return n.dispatch(ctx, title, message)
}

// dispatch iterates over all senders and sends the notification. Errors from
// individual senders are collected and returned as a combined error; a single
// sender failure does not prevent delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// format renders an event as a short operator-facing title and message.
func format(e domain.Event) (title, message string) {
	var b strings.Builder
	if e.MarketID != "" {
		fmt.Fprintf(&b, "market %s", e.MarketID)
	}
	if e.OracleID != "" {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "oracle %s", e.OracleID)
	}
	if e.Actor != "" {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "by %s", e.Actor)
	}
	for k, v := range e.Payload {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %v", k, v)
	}

	switch e.Type {
	case domain.EventMarketResolved:
		title = "Market resolved"
	case domain.EventDisputeRaised:
		title = "Dispute raised"
	case domain.EventDisputeResolved:
		title = "Dispute resolved"
	case domain.EventMarketCancelled:
		title = "Market cancelled"
	case domain.EventMarketCreated:
		title = "Market created"
	default:
		title = string(e.Type)
	}
	return title, b.String()
}
