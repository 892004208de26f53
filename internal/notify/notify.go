// Package notify fans back-office events out to connected admin browsers
// and to their web push subscriptions.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukerupert/brightwork/internal/model"
	"github.com/dukerupert/brightwork/internal/push"
	"github.com/dukerupert/brightwork/internal/websocket"
)

// Event describes something an admin should hear about.
type Event struct {
	Entity string
	Action string
	ID     int64
	Title  string
	Body   string
	URL    string
}

type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

type Pusher interface {
	Configured() bool
	Send(ctx context.Context, sub *model.PushSubscription, payload push.Payload) error
}

type SubscriptionStore interface {
	ListAll(ctx context.Context) ([]model.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

type Notifier struct {
	hub    Broadcaster
	pusher Pusher
	subs   SubscriptionStore
	logger *slog.Logger
}

// New builds a Notifier. pusher and subs may be nil to disable web push.
func New(hub Broadcaster, pusher Pusher, subs SubscriptionStore, logger *slog.Logger) *Notifier {
	return &Notifier{hub: hub, pusher: pusher, subs: subs, logger: logger}
}

// Notify is best effort: delivery failures are logged and never returned.
func (n *Notifier) Notify(ctx context.Context, ev Event) {
	if n.hub != nil {
		msg := websocket.NewMessage(ev.Entity, ev.Action, ev.ID, nil)
		msg.Title = ev.Title
		n.hub.Broadcast(msg)
	}

	if n.pusher == nil || n.subs == nil || !n.pusher.Configured() {
		return
	}

	subs, err := n.subs.ListAll(ctx)
	if err != nil {
		n.logger.Error("list push subscriptions", "error", err)
		return
	}

	payload := push.Payload{
		Title: ev.Title,
		Body:  ev.Body,
		URL:   ev.URL,
		Tag:   ev.Entity + "_" + ev.Action,
	}
	for i := range subs {
		sub := &subs[i]
		err := n.pusher.Send(ctx, sub, payload)
		switch {
		case err == nil:
		case errors.Is(err, push.ErrExpired):
			if derr := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); derr != nil {
				n.logger.Error("delete expired subscription", "id", sub.ID, "error", derr)
			} else {
				n.logger.Info("removed expired push subscription", "id", sub.ID, "user_id", sub.UserID)
			}
		default:
			n.logger.Warn("push send failed", "id", sub.ID, "error", err)
		}
	}
}
