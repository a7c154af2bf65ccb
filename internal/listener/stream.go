package listener

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
)

// StreamListener publishes events to a redis stream so external verifiers can
// tail the billing timeline. A failed XADD propagates and blocks the
// triggering operation.
type StreamListener struct {
	client *redis.Client
	stream string
}

// NewStreamListener creates a redis stream publisher.
func NewStreamListener(client *redis.Client, stream string) *StreamListener {
	return &StreamListener{
		client: client,
		stream: stream,
	}
}

func (s *StreamListener) ServiceRegistered(ctx context.Context, serviceID uint64, provider domain.Address, at epoch.Epoch) error {
	return s.publish(ctx, map[string]interface{}{
		"event":      "service_registered",
		"service_id": strconv.FormatUint(serviceID, 10),
		"provider":   string(provider),
		"epoch":      strconv.FormatUint(uint64(at), 10),
	})
}

func (s *StreamListener) UptimeReported(ctx context.Context, provider domain.Address, online bool, reporter domain.Address, at epoch.Epoch) error {
	return s.publish(ctx, map[string]interface{}{
		"event":    "uptime_reported",
		"provider": string(provider),
		"online":   strconv.FormatBool(online),
		"reporter": string(reporter),
		"epoch":    strconv.FormatUint(uint64(at), 10),
	})
}

func (s *StreamListener) ServiceDeregistered(ctx context.Context, serviceID uint64, provider domain.Address, at epoch.Epoch) error {
	return s.publish(ctx, map[string]interface{}{
		"event":      "service_deregistered",
		"service_id": strconv.FormatUint(serviceID, 10),
		"provider":   string(provider),
		"epoch":      strconv.FormatUint(uint64(at), 10),
	})
}

func (s *StreamListener) publish(ctx context.Context, values map[string]interface{}) error {
	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", s.stream, err)
	}
	return nil
}
