package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/kiosk/internal/domain"
)

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PublishStockLow notifies the inventory channel and the channel of the
// product's category, so a department can follow only its own shelves.
func (a *API) PublishStockLow(ctx context.Context, e domain.EventStockLow) error {
	data := toProduct(e.Product)

	var eg errgroup.Group
	for _, ch := range []string{a.channel(), a.channel(string(e.Product.Category))} {
		eg.Go(func() error {
			return a.publishNotification(ctx, ch, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) PublishTopSellersUpdated(ctx context.Context, e domain.EventTopSellersUpdated) error {
	return a.publishNotification(ctx, a.channel(), e.Name(), toTopSellers(e.TopSellers))
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %w", event, err)
	}

	if err := a.redis.Publish(ctx, channel, b).Err(); err != nil {
		return fmt.Errorf("pubsub: publish %s to %s: %w", event, channel, err)
	}

	return nil
}

// channel is <prefix>:inventory, or <prefix>:inventory:<sub> for a sub-channel.
func (a *API) channel(sub ...string) string {
	ch := fmt.Sprintf("%s:inventory", a.prefix)
	for _, s := range sub {
		ch += ":" + s
	}
	return ch
}
