package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/kiosk/internal/domain"
	"github.com/victornm/kiosk/internal/errors"
	"github.com/victornm/kiosk/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
	defaultLimit    = 10
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

// Service keeps a running "top sellers" board: product name ranked by total
// quantity sold.
type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameSaleRecorded, func(ctx context.Context, e event.Event) error {
		return s.RecordSale(ctx, e.(domain.EventSaleRecorded))
	})

	return s
}

type GetTopSellersRequest struct {
	Limit int
}

// GetTopSellers returns up to Limit products with the highest quantity sold.
func (s *Service) GetTopSellers(ctx context.Context, req GetTopSellersRequest) (*domain.TopSellers, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, s.boardKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("get top sellers: %w", err))
	}

	if len(res) == 0 {
		return nil, errors.NotFound("no sales recorded yet")
	}

	entries := make([]domain.TopSellerEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.TopSellerEntry{
			ProductName: z.Member.(string),
			Quantity:    z.Score,
		})
	}

	return &domain.TopSellers{Entries: entries}, nil
}

// RecordSale adds the sold quantity to the product's running total.
func (s *Service) RecordSale(ctx context.Context, e domain.EventSaleRecorded) error {
	sl := e.Sale

	if err := s.redis.ZIncrBy(ctx, s.boardKey(), float64(sl.Quantity), sl.ProductName).Err(); err != nil {
		return fmt.Errorf("update top sellers: %w", err)
	}

	return s.schedulePublish(ctx, sl.Timestamp)
}

// schedulePublish emits at most one ranking.updated per publishInterval: a burst
// of sales at a busy register would otherwise flood subscribers. The first sale
// of a window publishes right away; of the sales that land inside the window,
// one waits for it to close and publishes the board as it is then.
func (s *Service) schedulePublish(ctx context.Context, at time.Time) error {
	ok, err := s.redis.SetNX(ctx, s.publishKey(), at.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if ok {
		return s.publish(ctx)
	}

	ok, err = s.redis.SetNX(ctx, s.pendingKey(), at.UnixMilli(), 2*publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx pending: %w", err)
	}

	if !ok {
		return nil
	}

	wait, err := s.redis.PTTL(ctx, s.publishKey()).Result()
	if err != nil {
		return fmt.Errorf("pttl: %w", err)
	}

	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	// The window is reopened before the pending flag is released, so a sale
	// that still sees the flag is already counted in the board read below.
	if err := s.redis.Set(ctx, s.publishKey(), at.UnixMilli(), publishInterval).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}

	if err := s.redis.Del(ctx, s.pendingKey()).Err(); err != nil {
		return fmt.Errorf("del pending: %w", err)
	}

	return s.publish(ctx)
}

func (s *Service) publish(ctx context.Context) error {
	ts, err := s.GetTopSellers(ctx, GetTopSellersRequest{})
	if err != nil {
		return fmt.Errorf("get top sellers failed: %w", err)
	}

	s.eb.Publish(ctx, domain.EventTopSellersUpdated{
		TopSellers: *ts,
	})

	return nil
}

func (s *Service) boardKey() string {
	return fmt.Sprintf("%s:top-sellers", s.prefix)
}

func (s *Service) publishKey() string {
	return fmt.Sprintf("%s:top-sellers:published", s.prefix)
}

func (s *Service) pendingKey() string {
	return fmt.Sprintf("%s:top-sellers:pending", s.prefix)
}
