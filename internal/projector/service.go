// Package projector consumes the ledger event stream and keeps the Redis
// read model warm: full order records by id and the rendered active-product
// listing. The API serves cache hits without touching the ledger.
package projector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/aliashahi/secure-online-shop/internal/kafka"
	"github.com/aliashahi/secure-online-shop/internal/ledger"
	"github.com/aliashahi/secure-online-shop/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleEvent is mounted as the consumer handler for both event topics.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env ledger.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup on event_id, consumer groups redeliver on rebalance
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	switch env.EventType {
	case ledger.EventProductRegistered, ledger.EventProductActiveSet:
		return s.invalidateListing(ctx)

	case ledger.EventOrderPaid:
		p, err := kafkax.UnwrapPayload[ledger.OrderPaidPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := s.cacheOrder(ctx, p.Order); err != nil {
			return err
		}
		return s.invalidateListing(ctx)

	case ledger.EventOrderCanceled:
		p, err := kafkax.UnwrapPayload[ledger.OrderCanceledPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := s.setCachedStatus(ctx, p.OrderID, ledger.StatusCanceled); err != nil {
			return err
		}
		// cancellation restores stock
		return s.invalidateListing(ctx)

	case ledger.EventOrderShipped:
		p, err := kafkax.UnwrapPayload[ledger.OrderShippedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.setCachedStatus(ctx, p.OrderID, ledger.StatusShipped)

	case ledger.EventOrderDelivered:
		p, err := kafkax.UnwrapPayload[ledger.OrderDeliveredPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.setCachedStatus(ctx, p.OrderID, ledger.StatusDelivered)

	case ledger.EventDisputeOpened:
		p, err := kafkax.UnwrapPayload[ledger.DisputeOpenedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.setCachedStatus(ctx, p.OrderID, ledger.StatusDisputed)

	case ledger.EventDisputeResolved:
		p, err := kafkax.UnwrapPayload[ledger.DisputeResolvedPayload](env.Payload)
		if err != nil {
			return err
		}
		outcome, err := ledger.ParseResolution(p.Outcome)
		if err != nil {
			return err
		}
		if outcome == ledger.ResolutionRefund {
			if err := s.setCachedStatus(ctx, p.OrderID, ledger.StatusCanceled); err != nil {
				return err
			}
			return s.invalidateListing(ctx)
		}
		return s.setCachedStatus(ctx, p.OrderID, ledger.StatusDelivered)
	}

	log.Printf("projector: ignoring event type %q", env.EventType)
	return nil
}

func (s *Service) cacheOrder(ctx context.Context, o ledger.Order) error {
	key := fmt.Sprintf(redisx.KeyOrder, o.ID)
	return s.Redis.Set(ctx, key, kafkax.MustMarshal(o), redisx.TTLOrderCache).Err()
}

// setCachedStatus patches the status on an already-cached order. A cold cache
// is not an error, the API falls back to the ledger.
func (s *Service) setCachedStatus(ctx context.Context, orderID uint64, status ledger.Status) error {
	key := fmt.Sprintf(redisx.KeyOrder, orderID)
	raw, err := s.Redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	var o ledger.Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return err
	}
	o.Status = status
	return s.Redis.Set(ctx, key, kafkax.MustMarshal(o), redisx.TTLOrderCache).Err()
}

func (s *Service) invalidateListing(ctx context.Context) error {
	return s.Redis.Del(ctx, redisx.KeyActiveProducts).Err()
}
